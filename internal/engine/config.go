package engine

import "time"

const (
	defaultCountdownSeconds = 60
	defaultDrawInterval     = 3 * time.Second
	defaultWinMultiplier    = 25
	defaultCartelaCount     = 150
	defaultRetireGrace      = 30 * time.Second
)

// Config controls room timing and payout rules.
type Config struct {
	// Stakes is the set of stake amounts the engine keeps a live room for.
	Stakes []int

	// CountdownSeconds is the selection-phase length; each room ticks once
	// per second from this value down to zero.
	CountdownSeconds int

	// DrawInterval is the cadence of number draws during the drawing phase.
	DrawInterval time.Duration

	// WinMultiplier scales the stake into the win amount.
	WinMultiplier int

	// CartelaCount bounds cartela numbers to 1..CartelaCount per room.
	CartelaCount int

	// RetireGrace is how long a finished room stays queryable before it is
	// dropped from the index.
	RetireGrace time.Duration

	// Seed seeds the draw shuffle RNG. Zero means derive from wall clock.
	Seed int64
}

// DefaultConfig returns the reference configuration: the original platform's
// six stake levels, 60 second selection windows, a draw every 3 seconds and a
// 25x payout.
func DefaultConfig() Config {
	return Config{
		Stakes:           []int{10, 20, 50, 100, 200, 300},
		CountdownSeconds: defaultCountdownSeconds,
		DrawInterval:     defaultDrawInterval,
		WinMultiplier:    defaultWinMultiplier,
		CartelaCount:     defaultCartelaCount,
		RetireGrace:      defaultRetireGrace,
	}
}

// withDefaults fills zero values so a partially populated config is usable.
func (c Config) withDefaults() Config {
	if len(c.Stakes) == 0 {
		c.Stakes = DefaultConfig().Stakes
	}
	if c.CountdownSeconds <= 0 {
		c.CountdownSeconds = defaultCountdownSeconds
	}
	if c.DrawInterval <= 0 {
		c.DrawInterval = defaultDrawInterval
	}
	if c.WinMultiplier <= 0 {
		c.WinMultiplier = defaultWinMultiplier
	}
	if c.CartelaCount <= 0 {
		c.CartelaCount = defaultCartelaCount
	}
	if c.RetireGrace <= 0 {
		c.RetireGrace = defaultRetireGrace
	}
	return c
}
