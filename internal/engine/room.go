package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Status is a room's lifecycle phase.
type Status string

const (
	StatusSelection Status = "selection"
	StatusDrawing   Status = "drawing"
	StatusFinished  Status = "finished"
)

// SlotStatus is the claim state of one cartela slot, as seen by a given
// client. The "-by-other" forms match what the frontend renders; the engine
// resolves self/other at broadcast time.
type SlotStatus string

const (
	SlotAvailable        SlotStatus = "available"
	SlotSelectedByOther  SlotStatus = "selected-by-other"
	SlotConfirmedByOther SlotStatus = "confirmed-by-other"
	SlotConfirmedBySelf  SlotStatus = "confirmed-by-self"
)

// slot tracks one cartela claim inside a room instance. Slots are created
// lazily on first selection and never outlive the room.
type slot struct {
	userID    string
	confirmed bool
}

// drawState exists only while a room is drawing. called and remaining always
// partition the shuffled 1..75 sequence.
type drawState struct {
	called    []int
	remaining []int
}

// Room is one timed instance of the selection -> drawing -> finished cycle
// for a stake amount. All mutable fields are guarded by mu; the settled flag
// is separate so settlement can race-check without the lock.
type Room struct {
	ID          string
	StakeAmount int
	CreatedAt   time.Time
	ExpiresAt   time.Time

	mu        sync.Mutex
	status    Status
	timeLeft  int
	users     map[string]bool
	slots     map[int]*slot
	cards     map[int]*Card    // persisted grids, keyed by cartela number
	confirmed map[string][]int // userID -> confirmed cartela numbers, in confirm order
	draw      *drawState

	settled atomic.Bool

	countdownCtx    context.Context
	cancelCountdown context.CancelFunc
	drawCtx         context.Context
	cancelDraw      context.CancelFunc
}

// Info returns a snapshot suitable for a room-joined reply.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		RoomID:      r.ID,
		StakeAmount: r.StakeAmount,
		TimeLeft:    r.timeLeft,
		Status:      r.status,
	}
}

// Status returns the room's current lifecycle phase.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// TimeLeft returns the remaining selection countdown in seconds.
func (r *Room) TimeLeft() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeLeft
}

// CalledNumbers returns the draw sequence so far, oldest first.
func (r *Room) CalledNumbers() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draw == nil {
		return nil
	}
	called := make([]int, len(r.draw.called))
	copy(called, r.draw.called)
	return called
}

// ConfirmedCartelas returns the user's confirmed cartela numbers in confirm
// order.
func (r *Room) ConfirmedCartelas(userID string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cartelas := make([]int, len(r.confirmed[userID]))
	copy(cartelas, r.confirmed[userID])
	return cartelas
}

// Card returns the persisted grid for a confirmed or selected cartela, or nil
// if none was generated in this room instance.
func (r *Room) Card(cartelaNumber int) *Card {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cards[cartelaNumber]
}

// addUser records the user as a participant. Reports whether the user was new.
func (r *Room) addUser(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.users[userID] {
		return false
	}
	r.users[userID] = true
	return true
}

// addUserLocked records the user as a participant. Caller holds r.mu.
func (r *Room) addUserLocked(userID string) {
	r.users[userID] = true
}

// stopCountdown cancels the countdown schedule. Safe to call repeatedly.
func (r *Room) stopCountdown() {
	r.mu.Lock()
	cancel := r.cancelCountdown
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// stopDraw cancels the draw schedule. Safe to call repeatedly.
func (r *Room) stopDraw() {
	r.mu.Lock()
	cancel := r.cancelDraw
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// view resolves a slot's status from a particular viewer's perspective.
func (s *slot) view(viewerID string) SlotStatus {
	switch {
	case s == nil:
		return SlotAvailable
	case s.confirmed && s.userID == viewerID:
		return SlotConfirmedBySelf
	case s.confirmed:
		return SlotConfirmedByOther
	default:
		return SlotSelectedByOther
	}
}
