package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethiobingo/bingo-engine/internal/wallet"
)

// SelectCartela places a provisional claim on a cartela. First request wins;
// a slot already held by another user rejects with ErrSlotUnavailable, and a
// repeat select by the holder is a no-op.
func (m *Manager) SelectCartela(roomID string, cartelaNumber int, userID string) error {
	room, err := m.selectionRoom(roomID)
	if err != nil {
		return err
	}
	if cartelaNumber < 1 || cartelaNumber > m.cfg.CartelaCount {
		return ErrInvalidCartela
	}

	room.mu.Lock()
	if room.status != StatusSelection {
		room.mu.Unlock()
		return ErrRoomUnavailable
	}
	if s := room.slots[cartelaNumber]; s != nil {
		held := s.userID != userID
		room.mu.Unlock()
		if held {
			return ErrSlotUnavailable
		}
		return nil
	}
	room.slots[cartelaNumber] = &slot{userID: userID}
	room.mu.Unlock()

	m.broadcast.ToRoomExcept(roomID, userID, EventCartelaStatusChanged, CartelaStatusEvent{
		CartelaNumber: cartelaNumber,
		Status:        SlotSelectedByOther,
		UserID:        userID,
	})

	m.logger.Debug().
		Str("room_id", roomID).
		Str("user_id", userID).
		Int("cartela", cartelaNumber).
		Msg("cartela selected")
	return nil
}

// ConfirmCartela turns a claim into a paid, terminal hold: the stake is
// deducted from the user's balance and the cartela's card grid is generated
// and persisted for win evaluation. Confirming an unclaimed slot directly
// (without a prior select) is allowed; the select step only exists to warn
// other clients early.
func (m *Manager) ConfirmCartela(ctx context.Context, roomID string, cartelaNumber int, userID string) error {
	room, err := m.selectionRoom(roomID)
	if err != nil {
		return err
	}
	if cartelaNumber < 1 || cartelaNumber > m.cfg.CartelaCount {
		return ErrInvalidCartela
	}

	// Claim (or re-assert) the slot before touching the balance, so a race
	// loser fails fast without a wallet call.
	room.mu.Lock()
	if room.status != StatusSelection {
		room.mu.Unlock()
		return ErrRoomUnavailable
	}
	s := room.slots[cartelaNumber]
	switch {
	case s == nil:
		s = &slot{userID: userID}
		room.slots[cartelaNumber] = s
	case s.userID != userID:
		room.mu.Unlock()
		return ErrSlotUnavailable
	case s.confirmed:
		room.mu.Unlock()
		return nil
	}
	room.mu.Unlock()

	if err := m.accounts.Deduct(ctx, userID, room.StakeAmount); err != nil {
		// Deduction failed: give the slot back unless it was confirmed in
		// the meantime (it cannot be, only this user holds it).
		m.releaseSlot(room, cartelaNumber, userID, false)
		if errors.Is(err, wallet.ErrInsufficientFunds) || errors.Is(err, wallet.ErrUnknownUser) {
			return ErrInsufficientBalance
		}
		m.logger.Error().Err(err).Str("user_id", userID).Msg("stake deduction failed")
		return err
	}

	// The lock was dropped for the wallet call, so the claim must be
	// re-verified before it turns terminal. Anything that invalidated it in
	// the meantime gets the stake back.
	room.mu.Lock()
	switch {
	case room.status != StatusSelection:
		// Selection closed while the wallet call was in flight; the room
		// can no longer include the card.
		room.mu.Unlock()
		m.refundStake(userID, room.StakeAmount, room.ID, cartelaNumber)
		return ErrRoomUnavailable
	case room.slots[cartelaNumber] != s:
		// The claim was released (deselect or disconnect sweep) and the
		// slot may belong to someone else now.
		room.mu.Unlock()
		m.refundStake(userID, room.StakeAmount, room.ID, cartelaNumber)
		return ErrSlotUnavailable
	case s.confirmed:
		// A concurrent confirm by the same user already paid for this slot.
		room.mu.Unlock()
		m.refundStake(userID, room.StakeAmount, room.ID, cartelaNumber)
		return nil
	}
	s.confirmed = true
	room.confirmed[userID] = append(room.confirmed[userID], cartelaNumber)
	if room.cards[cartelaNumber] == nil {
		room.cards[cartelaNumber] = NewCard(room.ID, cartelaNumber)
	}
	room.addUserLocked(userID)
	room.mu.Unlock()

	m.broadcast.ToRoomExcept(roomID, userID, EventCartelaStatusChanged, CartelaStatusEvent{
		CartelaNumber: cartelaNumber,
		Status:        SlotConfirmedByOther,
		UserID:        userID,
	})
	m.broadcast.ToUser(userID, EventCartelaOwnConfirmed, CartelaOwnConfirmedEvent{
		CartelaNumber: cartelaNumber,
		Status:        SlotConfirmedBySelf,
	})

	m.logger.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Int("cartela", cartelaNumber).
		Int("stake", room.StakeAmount).
		Msg("cartela confirmed")
	return nil
}

// ReleaseCartela frees a slot the user selected but never confirmed.
// Confirmed slots are terminal and cannot be released.
func (m *Manager) ReleaseCartela(roomID string, cartelaNumber int, userID string) error {
	room, ok := m.Room(roomID)
	if !ok {
		return ErrRoomUnavailable
	}
	if !m.releaseSlot(room, cartelaNumber, userID, true) {
		return ErrSlotUnavailable
	}
	return nil
}

// ReleaseUserSelections frees every slot the user holds in selected (not
// confirmed) state. Invoked when a client disconnects mid-selection.
func (m *Manager) ReleaseUserSelections(roomID string, userID string) {
	room, ok := m.Room(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	var freed []int
	for number, s := range room.slots {
		if s.userID == userID && !s.confirmed {
			delete(room.slots, number)
			freed = append(freed, number)
		}
	}
	room.mu.Unlock()

	sort.Ints(freed)
	for _, number := range freed {
		m.broadcast.ToRoom(roomID, EventCartelaStatusChanged, CartelaStatusEvent{
			CartelaNumber: number,
			Status:        SlotAvailable,
		})
	}

	if len(freed) > 0 {
		m.logger.Debug().
			Str("room_id", roomID).
			Str("user_id", userID).
			Ints("cartelas", freed).
			Msg("released selections on disconnect")
	}
}

// Snapshot reports every claimed cartela in the room from the viewer's
// perspective, for late joiners reconciling their grid.
func (m *Manager) Snapshot(roomID string, viewerID string) ([]CartelaSnapshotEntry, error) {
	room, ok := m.Room(roomID)
	if !ok {
		return nil, ErrRoomUnavailable
	}

	room.mu.Lock()
	entries := make([]CartelaSnapshotEntry, 0, len(room.slots))
	for number, s := range room.slots {
		entries = append(entries, CartelaSnapshotEntry{
			CartelaNumber: number,
			Status:        s.view(viewerID),
			UserID:        s.userID,
		})
	}
	room.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CartelaNumber < entries[j].CartelaNumber
	})
	return entries, nil
}

// releaseSlot removes the user's unconfirmed claim on a cartela and, when
// broadcast is set, announces the slot available again. Reports whether a
// claim was actually released.
func (m *Manager) releaseSlot(room *Room, cartelaNumber int, userID string, announce bool) bool {
	room.mu.Lock()
	s := room.slots[cartelaNumber]
	if s == nil || s.userID != userID || s.confirmed {
		room.mu.Unlock()
		return false
	}
	delete(room.slots, cartelaNumber)
	room.mu.Unlock()

	if announce {
		m.broadcast.ToRoom(room.ID, EventCartelaStatusChanged, CartelaStatusEvent{
			CartelaNumber: cartelaNumber,
			Status:        SlotAvailable,
		})
	}
	return true
}

// refundStake returns a deducted stake after a confirmation could not be
// completed. Uses the payout collaborator so the credit lands on the ledger.
// Each refund event gets its own reference: two users (or one user twice) can
// legitimately be refunded for the same cartela in one room instance.
func (m *Manager) refundStake(userID string, amount int, roomID string, cartelaNumber int) {
	ctx, cancel := context.WithTimeout(m.ctx, walletCallTimeout)
	defer cancel()
	reference := fmt.Sprintf("refund/%s/%d/%s/%d", roomID, cartelaNumber, userID, m.refundSeq.Add(1))
	if _, err := m.payouts.Payout(ctx, userID, amount, reference); err != nil {
		m.logger.Error().Err(err).
			Str("user_id", userID).
			Str("room_id", roomID).
			Int("amount", amount).
			Msg("stake refund failed")
	}
}

// selectionRoom resolves a room that is expected to be accepting claims.
func (m *Manager) selectionRoom(roomID string) (*Room, error) {
	room, ok := m.Room(roomID)
	if !ok {
		return nil, ErrRoomUnavailable
	}
	return room, nil
}
