package engine

// Event type constants for everything the engine publishes. The gateway wraps
// these in its wire envelope; the engine never sees transport connections.
const (
	EventRoomJoined           = "room-joined"
	EventTimerUpdate          = "timer-update"
	EventCartelaStatusChanged = "cartela-status-changed"
	EventCartelaOwnConfirmed  = "cartela-own-confirmed"
	EventCartelaStatuses      = "cartela-statuses"
	EventRedirectToDraw       = "redirect-to-draw"
	EventGameStart            = "game-start"
	EventBallCalled           = "ball-called"
	EventGameEnd              = "game-end"
	EventPayoutProcessed      = "payout-processed"
	EventGameState            = "game-state"
)

// Broadcaster is the engine's fan-out port. The WebSocket gateway implements
// it; tests substitute a recorder.
type Broadcaster interface {
	// ToRoom delivers an event to every participant of a room.
	ToRoom(roomID string, event string, payload any)

	// ToRoomExcept delivers an event to every participant of a room other
	// than the named user.
	ToRoomExcept(roomID string, exceptUserID string, event string, payload any)

	// ToUser delivers an event to a single user, on whichever connection
	// currently maps to them.
	ToUser(userID string, event string, payload any)
}

// RoomInfo is the engine's answer to a join request.
type RoomInfo struct {
	RoomID      string `json:"roomId"`
	StakeAmount int    `json:"stakeAmount"`
	TimeLeft    int    `json:"timeLeft"`
	Status      Status `json:"status"`
}

// TimerUpdateEvent announces one countdown tick.
type TimerUpdateEvent struct {
	RoomID   string `json:"roomId"`
	TimeLeft int    `json:"timeLeft"`
}

// CartelaStatusEvent announces a single slot transition to other participants.
type CartelaStatusEvent struct {
	CartelaNumber int        `json:"cartelaNumber"`
	Status        SlotStatus `json:"status"`
	UserID        string     `json:"userId,omitempty"`
}

// CartelaOwnConfirmedEvent acknowledges a confirmation to the acting user.
type CartelaOwnConfirmedEvent struct {
	CartelaNumber int        `json:"cartelaNumber"`
	Status        SlotStatus `json:"status"`
}

// CartelaSnapshotEntry is one row of a full registry snapshot.
type CartelaSnapshotEntry struct {
	CartelaNumber int        `json:"cartelaNumber"`
	Status        SlotStatus `json:"status"`
	UserID        string     `json:"userId,omitempty"`
}

// RedirectToDrawEvent is delivered to each user holding at least one confirmed
// cartela when selection ends.
type RedirectToDrawEvent struct {
	RoomID            string `json:"roomId"`
	StakeAmount       int    `json:"stakeAmount"`
	ConfirmedCartelas []int  `json:"confirmedCartelas"`
}

// GameStartEvent announces the start of the drawing phase.
type GameStartEvent struct {
	RoomID    string `json:"roomId"`
	WinAmount int    `json:"winAmount"`
}

// BallCalledEvent announces one drawn number.
type BallCalledEvent struct {
	Number int    `json:"number"`
	Letter string `json:"letter"`
	RoomID string `json:"roomId"`
}

// GameEndEvent announces the outcome of a room instance. WinnerID and
// WinnerName serialise as explicit nulls when the pool exhausted with no
// winner; clients key on winnerId being null.
type GameEndEvent struct {
	RoomID        string  `json:"roomId"`
	WinnerID      *string `json:"winnerId"`
	WinnerName    *string `json:"winnerName"`
	WinningCardID int     `json:"winningCardId,omitempty"`
	WinAmount     int     `json:"winAmount,omitempty"`
	PayoutError   bool    `json:"payoutError,omitempty"`
}

// PayoutProcessedEvent is delivered to the winner once the payout call
// resolves.
type PayoutProcessedEvent struct {
	Success       bool   `json:"success"`
	Amount        int    `json:"amount"`
	RoomID        string `json:"roomId"`
	WinningCardID int    `json:"winningCardId"`
	Message       string `json:"message"`
}

// GameStateEvent answers a get-game-state query.
type GameStateEvent struct {
	RoomID       string `json:"roomId"`
	Status       Status `json:"status"`
	TimeLeft     int    `json:"timeLeft"`
	StakeAmount  int    `json:"stakeAmount"`
	PlayersCount int    `json:"playersCount"`
}
