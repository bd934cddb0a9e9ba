package engine

import "errors"

var (
	// ErrRoomUnavailable indicates a join or claim against a room that does
	// not exist or is no longer in the selection phase.
	ErrRoomUnavailable = errors.New("engine: room unavailable")

	// ErrSlotUnavailable indicates the cartela is already held by another user.
	ErrSlotUnavailable = errors.New("engine: cartela unavailable")

	// ErrInsufficientBalance indicates the user cannot cover the stake.
	ErrInsufficientBalance = errors.New("engine: insufficient balance")

	// ErrInvalidBingoClaim indicates a manual bingo call with no qualifying card.
	ErrInvalidBingoClaim = errors.New("engine: invalid bingo claim")

	// ErrInvalidCartela indicates a cartela number outside the configured range.
	ErrInvalidCartela = errors.New("engine: invalid cartela number")

	// ErrInvalidStake indicates a stake amount not present in the configured
	// stake list. Stakes are client-supplied and validated, never trusted.
	ErrInvalidStake = errors.New("engine: unsupported stake amount")
)

// countdownDone and drawDone stop the quartz ticker loops. They signal normal
// completion, not failure.
var (
	errCountdownDone = errors.New("engine: countdown complete")
	errDrawDone      = errors.New("engine: draw loop complete")
)
