package engine

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/ethiobingo/bingo-engine/internal/randutil"
	"github.com/ethiobingo/bingo-engine/internal/roomid"
	"github.com/ethiobingo/bingo-engine/internal/wallet"
)

// Manager owns every room and the live-room-per-stake index. All room
// lookups and the live index are guarded by mu; each room serialises its own
// state behind its own lock.
type Manager struct {
	cfg       Config
	clock     quartz.Clock
	accounts  wallet.Accounts
	payouts   wallet.Payouts
	broadcast Broadcaster
	logger    zerolog.Logger

	rng   *rand.Rand
	rngMu sync.Mutex

	refundSeq atomic.Int64

	mu          sync.Mutex
	rooms       map[string]*Room
	liveByStake map[int]*Room

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires the engine against its collaborators. The clock is
// injected so tests can drive countdowns and draws deterministically.
func NewManager(logger zerolog.Logger, clock quartz.Clock, accounts wallet.Accounts, payouts wallet.Payouts, broadcast Broadcaster, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:         cfg,
		clock:       clock,
		accounts:    accounts,
		payouts:     payouts,
		broadcast:   broadcast,
		logger:      logger.With().Str("component", "rooms").Logger(),
		rng:         randutil.New(seed),
		rooms:       make(map[string]*Room),
		liveByStake: make(map[int]*Room),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start opens one selection room per configured stake so the first joiner at
// any stake never waits for room creation.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stake := range m.cfg.Stakes {
		m.createRoomLocked(stake)
	}
	m.logger.Info().Ints("stakes", m.cfg.Stakes).Msg("opened initial rooms")
}

// Stop cancels all room schedules and waits for their loops to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Config returns the effective engine configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Room returns a room by id, including recently finished ones still within
// their grace period.
func (m *Manager) Room(roomID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// GetOrCreateRoom returns the live selection room for a stake amount,
// creating one if none is live. Concurrent callers for the same stake get the
// same room. Stake amounts come from clients, so anything outside the
// configured list is rejected rather than given a room.
func (m *Manager) GetOrCreateRoom(stakeAmount int) (*Room, error) {
	if !m.stakeOffered(stakeAmount) {
		return nil, ErrInvalidStake
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if room := m.liveByStake[stakeAmount]; room != nil && room.Status() == StatusSelection {
		return room, nil
	}
	return m.createRoomLocked(stakeAmount), nil
}

// stakeOffered reports whether the stake amount is in the configured list.
func (m *Manager) stakeOffered(stakeAmount int) bool {
	for _, s := range m.cfg.Stakes {
		if s == stakeAmount {
			return true
		}
	}
	return false
}

// JoinStake routes a user into the live room for a stake amount, creating the
// room if needed, and returns the room snapshot for the room-joined reply.
func (m *Manager) JoinStake(stakeAmount int, userID string) (RoomInfo, error) {
	room, err := m.GetOrCreateRoom(stakeAmount)
	if err != nil {
		return RoomInfo{}, err
	}
	room.addUser(userID)
	m.logger.Debug().Str("room_id", room.ID).Str("user_id", userID).Msg("user joined room")
	return room.Info(), nil
}

// Join adds a user to a specific room. Fails with ErrRoomUnavailable when the
// room is unknown or past the selection phase.
func (m *Manager) Join(roomID string, userID string) (RoomInfo, error) {
	room, ok := m.Room(roomID)
	if !ok {
		return RoomInfo{}, ErrRoomUnavailable
	}
	if room.Status() != StatusSelection {
		return RoomInfo{}, ErrRoomUnavailable
	}
	room.addUser(userID)
	return room.Info(), nil
}

// GameState answers a get-game-state query for any known room.
func (m *Manager) GameState(roomID string) (GameStateEvent, error) {
	room, ok := m.Room(roomID)
	if !ok {
		return GameStateEvent{}, ErrRoomUnavailable
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	return GameStateEvent{
		RoomID:       room.ID,
		Status:       room.status,
		TimeLeft:     room.timeLeft,
		StakeAmount:  room.StakeAmount,
		PlayersCount: len(room.users),
	}, nil
}

// createRoomLocked builds a fresh selection room for a stake and starts its
// countdown. Caller holds m.mu.
func (m *Manager) createRoomLocked(stakeAmount int) *Room {
	now := m.clock.Now()
	countdown := m.cfg.CountdownSeconds

	room := &Room{
		ID:          roomid.New(stakeAmount),
		StakeAmount: stakeAmount,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(countdown) * time.Second),
		status:      StatusSelection,
		timeLeft:    countdown,
		users:       make(map[string]bool),
		slots:       make(map[int]*slot),
		cards:       make(map[int]*Card),
		confirmed:   make(map[string][]int),
	}
	room.countdownCtx, room.cancelCountdown = context.WithCancel(m.ctx)

	m.rooms[room.ID] = room
	m.liveByStake[stakeAmount] = room

	m.wg.Add(1)
	go m.runCountdown(room)

	m.logger.Info().
		Str("room_id", room.ID).
		Int("stake", stakeAmount).
		Int("countdown", countdown).
		Msg("room created")
	return room
}

// runCountdown drives the 1-second selection countdown for a room. The quartz
// ticker serialises tick invocations, so a slow tick can never overlap the
// next one.
func (m *Manager) runCountdown(room *Room) {
	defer m.wg.Done()
	waiter := m.clock.TickerFunc(room.countdownCtx, time.Second, func() error {
		return m.tick(room)
	}, "countdown", room.ID)
	if err := waiter.Wait(); err != nil && err != errCountdownDone && room.countdownCtx.Err() == nil {
		m.logger.Error().Err(err).Str("room_id", room.ID).Msg("countdown stopped unexpectedly")
	}
}

// tick applies one countdown decrement. At zero it hands the room to the
// drawing phase and stops the ticker.
func (m *Manager) tick(room *Room) error {
	room.mu.Lock()
	if room.status != StatusSelection {
		room.mu.Unlock()
		return errCountdownDone
	}
	room.timeLeft--
	left := room.timeLeft
	room.mu.Unlock()

	m.broadcast.ToRoom(room.ID, EventTimerUpdate, TimerUpdateEvent{
		RoomID:   room.ID,
		TimeLeft: left,
	})

	if left <= 0 {
		m.startDrawing(room)
		return errCountdownDone
	}
	return nil
}

// startDrawing freezes the room's confirmations, moves it to the drawing
// phase, notifies confirmed players, opens the replacement room for the stake
// and starts the draw loop.
func (m *Manager) startDrawing(room *Room) {
	room.mu.Lock()
	if room.status != StatusSelection {
		room.mu.Unlock()
		return
	}
	room.status = StatusDrawing
	room.drawCtx, room.cancelDraw = context.WithCancel(m.ctx)

	m.rngMu.Lock()
	balls := randutil.ShuffledBalls(m.rng, BallCount)
	m.rngMu.Unlock()
	room.draw = &drawState{remaining: balls, called: make([]int, 0, BallCount)}

	confirmedUsers := make(map[string][]int, len(room.confirmed))
	for userID, cartelas := range room.confirmed {
		if len(cartelas) == 0 {
			continue
		}
		list := make([]int, len(cartelas))
		copy(list, cartelas)
		confirmedUsers[userID] = list
	}
	room.mu.Unlock()

	room.stopCountdown()

	for userID, cartelas := range confirmedUsers {
		m.broadcast.ToUser(userID, EventRedirectToDraw, RedirectToDrawEvent{
			RoomID:            room.ID,
			StakeAmount:       room.StakeAmount,
			ConfirmedCartelas: cartelas,
		})
	}

	// New joiners for this stake must never be blocked by a drawing room.
	m.mu.Lock()
	if m.liveByStake[room.StakeAmount] == room {
		m.createRoomLocked(room.StakeAmount)
	}
	m.mu.Unlock()

	m.broadcast.ToRoom(room.ID, EventGameStart, GameStartEvent{
		RoomID:    room.ID,
		WinAmount: room.StakeAmount * m.cfg.WinMultiplier,
	})

	m.logger.Info().
		Str("room_id", room.ID).
		Int("stake", room.StakeAmount).
		Int("confirmed_users", len(confirmedUsers)).
		Msg("selection closed, drawing started")

	m.wg.Add(1)
	go m.runDraws(room)
}

// retire marks the room finished, cancels its schedules and drops it from the
// index after the grace period so late status queries still resolve.
func (m *Manager) retire(room *Room) {
	room.mu.Lock()
	room.status = StatusFinished
	room.mu.Unlock()

	room.stopCountdown()
	room.stopDraw()

	m.clock.AfterFunc(m.cfg.RetireGrace, func() {
		m.mu.Lock()
		delete(m.rooms, room.ID)
		if m.liveByStake[room.StakeAmount] == room {
			delete(m.liveByStake, room.StakeAmount)
		}
		m.mu.Unlock()
		m.logger.Debug().Str("room_id", room.ID).Msg("room removed")
	}, "retire", room.ID)

	m.logger.Info().Str("room_id", room.ID).Msg("room retired")
}

// displayName derives the public winner name the same way the platform's
// frontend does.
func displayName(userID string) string {
	if len(userID) > 8 {
		userID = userID[:8]
	}
	return fmt.Sprintf("Player %s", userID)
}
