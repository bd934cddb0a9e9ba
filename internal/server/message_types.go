package server

// Note: engine events (timer-update, ball-called, etc.) are defined in
// internal/engine/events.go and are forwarded as WebSocket messages under the
// same type names.

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
// These are used for client-server communication protocol
const (
	// Client to server messages
	MessageTypeIdentify           MessageType = "identify"
	MessageTypeJoinRoom           MessageType = "join-room"
	MessageTypeSelectCartela      MessageType = "select-cartela"
	MessageTypeConfirmCartela     MessageType = "confirm-cartela"
	MessageTypeDeselectCartela    MessageType = "deselect-cartela"
	MessageTypeGetCartelaStatuses MessageType = "get-cartela-statuses"
	MessageTypeCallBingo          MessageType = "call-bingo"
	MessageTypeGetGameState       MessageType = "get-game-state"

	// Server to client messages
	MessageTypeIdentified   MessageType = "identified"
	MessageTypeError        MessageType = "error"
	MessageTypeBingoInvalid MessageType = "bingo-invalid"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
