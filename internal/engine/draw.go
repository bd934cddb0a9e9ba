package engine

import "sort"

// runDraws releases one number per draw interval until a winner is found, the
// pool is exhausted or the room is cancelled. The quartz ticker serialises
// draws, so the called sequence grows strictly one number at a time.
func (m *Manager) runDraws(room *Room) {
	defer m.wg.Done()
	waiter := m.clock.TickerFunc(room.drawCtx, m.cfg.DrawInterval, func() error {
		return m.drawOnce(room)
	}, "draw", room.ID)
	if err := waiter.Wait(); err != nil && err != errDrawDone && room.drawCtx.Err() == nil {
		m.logger.Error().Err(err).Str("room_id", room.ID).Msg("draw loop stopped unexpectedly")
	}
}

// drawOnce pops the next number from the shuffled pool, announces it and
// evaluates every confirmed card against the called set. Win evaluation is
// synchronous with the draw: a winner on this number settles before the next
// number can be released.
func (m *Manager) drawOnce(room *Room) error {
	room.mu.Lock()
	if room.status != StatusDrawing || room.draw == nil {
		room.mu.Unlock()
		return errDrawDone
	}

	if len(room.draw.remaining) == 0 {
		room.mu.Unlock()
		m.settleNoWinner(room)
		return errDrawDone
	}

	number := room.draw.remaining[0]
	room.draw.remaining = room.draw.remaining[1:]
	room.draw.called = append(room.draw.called, number)

	called := make(map[int]bool, len(room.draw.called))
	for _, n := range room.draw.called {
		called[n] = true
	}

	winnerID, winnerCartela, found := findWinnerLocked(room, called)
	room.mu.Unlock()

	m.broadcast.ToRoom(room.ID, EventBallCalled, BallCalledEvent{
		Number: number,
		Letter: BallLetter(number),
		RoomID: room.ID,
	})

	m.logger.Debug().
		Str("room_id", room.ID).
		Str("ball", BallLetter(number)).
		Int("number", number).
		Int("called", len(called)).
		Msg("ball called")

	if found {
		m.settle(room, winnerID, winnerCartela)
		return errDrawDone
	}
	return nil
}

// findWinnerLocked scans every confirmed cartela for a completed pattern.
// Users are visited in sorted order so two cards completing on the same draw
// resolve deterministically. Caller holds room.mu.
func findWinnerLocked(room *Room, called map[int]bool) (string, int, bool) {
	userIDs := make([]string, 0, len(room.confirmed))
	for userID := range room.confirmed {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	for _, userID := range userIDs {
		for _, cartela := range room.confirmed[userID] {
			card := room.cards[cartela]
			if card == nil {
				// Grid was never persisted; regenerate deterministically.
				card = NewCard(room.ID, cartela)
				room.cards[cartela] = card
			}
			if card.HasBingo(called) {
				return userID, cartela, true
			}
		}
	}
	return "", 0, false
}

// CallBingo is the manual claim path: the player asserts one of their
// confirmed cards has a completed pattern. A valid claim settles the room the
// same way automatic detection does.
func (m *Manager) CallBingo(roomID string, userID string, cardIDs []int) error {
	room, ok := m.Room(roomID)
	if !ok {
		return ErrRoomUnavailable
	}

	room.mu.Lock()
	if room.status != StatusDrawing || room.draw == nil {
		room.mu.Unlock()
		return ErrRoomUnavailable
	}

	called := make(map[int]bool, len(room.draw.called))
	for _, n := range room.draw.called {
		called[n] = true
	}

	owned := make(map[int]bool, len(room.confirmed[userID]))
	for _, cartela := range room.confirmed[userID] {
		owned[cartela] = true
	}

	winningCard := 0
	for _, cardID := range cardIDs {
		if !owned[cardID] {
			continue
		}
		card := room.cards[cardID]
		if card == nil {
			card = NewCard(room.ID, cardID)
			room.cards[cardID] = card
		}
		if card.HasBingo(called) {
			winningCard = cardID
			break
		}
	}
	room.mu.Unlock()

	if winningCard == 0 {
		m.logger.Debug().
			Str("room_id", roomID).
			Str("user_id", userID).
			Ints("cards", cardIDs).
			Msg("rejected bingo claim")
		return ErrInvalidBingoClaim
	}

	m.settle(room, userID, winningCard)
	return nil
}
