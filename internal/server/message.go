package server

import (
	"encoding/json"
	"time"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type IdentifyData struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
}

type JoinRoomData struct {
	StakeAmount int    `json:"stakeAmount,omitempty"`
	RoomID      string `json:"roomId,omitempty"`
}

type CartelaActionData struct {
	RoomID        string `json:"roomId"`
	CartelaNumber int    `json:"cartelaNumber"`
}

type GetCartelaStatusesData struct {
	RoomID string `json:"roomId"`
}

type CallBingoData struct {
	RoomID  string `json:"roomId"`
	CardIDs []int  `json:"cardIds"`
}

type GetGameStateData struct {
	RoomID string `json:"roomId"`
}

// Server → Client Messages

type IdentifiedData struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BingoInvalidData struct {
	Message string `json:"message"`
}
