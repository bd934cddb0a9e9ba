package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ballsFor extracts the called sequence a room's participants saw.
func ballsFor(rec *recorder, roomID string) []BallCalledEvent {
	var out []BallCalledEvent
	for _, e := range rec.ofType(EventBallCalled) {
		if e.Target == roomID {
			out = append(out, e.Payload.(BallCalledEvent))
		}
	}
	return out
}

func TestDrawSequenceUniqueAndInRange(t *testing.T) {
	t.Parallel()
	m, mock, rec, _, _ := testManager(t, Config{Stakes: []int{10}, CountdownSeconds: 30})
	room := startCountdownRoom(t, m, mock, 10)
	reachDrawing(t, m, mock, room)

	advanceIntervals(t, mock, m.cfg.DrawInterval, 10)

	called := room.CalledNumbers()
	require.Len(t, called, 10)

	seen := make(map[int]bool, len(called))
	for _, n := range called {
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, BallCount)
		assert.False(t, seen[n], "number %d drawn twice", n)
		seen[n] = true
	}

	balls := ballsFor(rec, room.ID)
	require.Len(t, balls, 10)
	for i, ball := range balls {
		assert.Equal(t, called[i], ball.Number)
		assert.Equal(t, BallLetter(called[i]), ball.Letter)
	}
}

func TestPoolExhaustionEndsWithoutWinner(t *testing.T) {
	t.Parallel()
	m, mock, rec, _, payouts := testManager(t, Config{Stakes: []int{10}, CountdownSeconds: 30})
	room := startCountdownRoom(t, m, mock, 10)
	reachDrawing(t, m, mock, room)

	room.mu.Lock()
	room.draw.remaining = []int{1, 2}
	room.mu.Unlock()

	advanceIntervals(t, mock, m.cfg.DrawInterval, 3)

	assert.Equal(t, []int{1, 2}, room.CalledNumbers())
	assert.Equal(t, StatusFinished, room.Status())
	assert.Equal(t, 0, payouts.callCount())

	ends := rec.ofType(EventGameEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, GameEndEvent{RoomID: room.ID}, ends[0].Payload)
}

func TestWinnerSettlesDrawAndPays(t *testing.T) {
	t.Parallel()
	m, mock, rec, accounts, payouts := testManager(t, Config{Stakes: []int{10}, CountdownSeconds: 30, WinMultiplier: 25})
	room := startCountdownRoom(t, m, mock, 10)
	accounts.Credit("alice", 10)
	require.NoError(t, m.ConfirmCartela(context.Background(), room.ID, 7, "alice"))

	reachDrawing(t, m, mock, room)

	// Feed the pool so the fourth draw completes card 7's main diagonal
	// (the centre is free).
	grid := room.Card(7).Grid
	room.mu.Lock()
	room.draw.remaining = []int{grid[0][0], grid[1][1], grid[3][3], grid[4][4]}
	room.mu.Unlock()

	advanceIntervals(t, mock, m.cfg.DrawInterval, 4)

	require.Equal(t, 1, payouts.callCount())
	payouts.mu.Lock()
	call := payouts.calls[0]
	payouts.mu.Unlock()
	assert.Equal(t, payoutCall{
		UserID:    "alice",
		Amount:    250,
		Reference: fmt.Sprintf("%s/7", room.ID),
	}, call)

	ends := rec.ofType(EventGameEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, GameEndEvent{
		RoomID:        room.ID,
		WinnerID:      strPtr("alice"),
		WinnerName:    strPtr("Player alice"),
		WinningCardID: 7,
		WinAmount:     250,
	}, ends[0].Payload)

	processed := rec.ofType(EventPayoutProcessed)
	require.Len(t, processed, 1)
	assert.Equal(t, "alice", processed[0].Target)
	assert.Equal(t, PayoutProcessedEvent{
		Success:       true,
		Amount:        250,
		RoomID:        room.ID,
		WinningCardID: 7,
		Message:       "Congratulations! You won 250 ETB!",
	}, processed[0].Payload)

	// Settlement stops the draw loop: no further balls for this room.
	assert.Equal(t, StatusFinished, room.Status())
	advanceIntervals(t, mock, m.cfg.DrawInterval, 2)
	assert.Len(t, ballsFor(rec, room.ID), 4)
}

func TestCallBingo(t *testing.T) {
	t.Parallel()
	m, mock, _, accounts, payouts := testManager(t, Config{Stakes: []int{10}, CountdownSeconds: 30})
	room := startCountdownRoom(t, m, mock, 10)
	accounts.Credit("alice", 10)
	require.NoError(t, m.ConfirmCartela(context.Background(), room.ID, 7, "alice"))

	// Selection-phase and unknown-room claims are rejected outright.
	require.ErrorIs(t, m.CallBingo(room.ID, "alice", []int{7}), ErrRoomUnavailable)
	require.ErrorIs(t, m.CallBingo("room_10_nope", "alice", []int{7}), ErrRoomUnavailable)

	reachDrawing(t, m, mock, room)

	// Nothing called yet, so no pattern can be complete.
	require.ErrorIs(t, m.CallBingo(room.ID, "alice", []int{7}), ErrInvalidBingoClaim)

	grid := room.Card(7).Grid
	room.mu.Lock()
	room.draw.called = []int{grid[0][0], grid[1][1], grid[3][3], grid[4][4]}
	room.mu.Unlock()

	// A completed card someone else owns does not pay the claimant.
	require.ErrorIs(t, m.CallBingo(room.ID, "bob", []int{7}), ErrInvalidBingoClaim)

	require.NoError(t, m.CallBingo(room.ID, "alice", []int{7}))
	require.Equal(t, 1, payouts.callCount())
	assert.Equal(t, StatusFinished, room.Status())
}
