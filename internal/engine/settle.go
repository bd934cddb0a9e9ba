package engine

import (
	"context"
	"fmt"
	"time"
)

// walletCallTimeout bounds outbound wallet calls so a stalled payout service
// cannot hang a room forever.
const walletCallTimeout = 10 * time.Second

// settle pays out the winner and finishes the room. The settled flag makes
// this effectively once per room instance: when two cards complete on the
// same draw, or automatic detection races a manual claim, only the first
// caller proceeds and everyone else returns immediately.
func (m *Manager) settle(room *Room, winnerID string, winningCartela int) {
	if !room.settled.CompareAndSwap(false, true) {
		return
	}
	room.stopDraw()

	winAmount := room.StakeAmount * m.cfg.WinMultiplier
	reference := fmt.Sprintf("%s/%d", room.ID, winningCartela)

	ctx, cancel := context.WithTimeout(m.ctx, walletCallTimeout)
	txn, err := m.payouts.Payout(ctx, winnerID, winAmount, reference)
	cancel()

	if err != nil {
		m.logger.Error().Err(err).
			Str("room_id", room.ID).
			Str("winner_id", winnerID).
			Int("amount", winAmount).
			Msg("payout failed, finishing room anyway")
	} else {
		m.logger.Info().
			Str("room_id", room.ID).
			Str("winner_id", winnerID).
			Int("cartela", winningCartela).
			Int("amount", winAmount).
			Str("transaction", txn).
			Msg("winner paid")
	}

	winnerName := displayName(winnerID)
	m.broadcast.ToRoom(room.ID, EventGameEnd, GameEndEvent{
		RoomID:        room.ID,
		WinnerID:      &winnerID,
		WinnerName:    &winnerName,
		WinningCardID: winningCartela,
		WinAmount:     winAmount,
		PayoutError:   err != nil,
	})

	message := fmt.Sprintf("Congratulations! You won %d ETB!", winAmount)
	if err != nil {
		message = "Your win was recorded but the payout is delayed. Support has been notified."
	}
	m.broadcast.ToUser(winnerID, EventPayoutProcessed, PayoutProcessedEvent{
		Success:       err == nil,
		Amount:        winAmount,
		RoomID:        room.ID,
		WinningCardID: winningCartela,
		Message:       message,
	})

	m.retire(room)
}

// settleNoWinner ends a room whose pool exhausted without a completed card.
// No payout is dispatched.
func (m *Manager) settleNoWinner(room *Room) {
	if !room.settled.CompareAndSwap(false, true) {
		return
	}
	room.stopDraw()

	m.broadcast.ToRoom(room.ID, EventGameEnd, GameEndEvent{
		RoomID: room.ID,
	})

	m.logger.Info().Str("room_id", room.ID).Msg("pool exhausted, no winner")
	m.retire(room)
}
