package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/ethiobingo/bingo-engine/internal/engine"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	userID    string
	roomID    string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	server    *Server
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
		server: server,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// SetUser associates this connection with a user
func (c *Connection) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// GetUser returns the associated user ID
func (c *Connection) GetUser() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// SetRoom associates this connection with a room
func (c *Connection) SetRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

// GetRoom returns the associated room ID
func (c *Connection) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "user", c.GetUser())

	if msg.Type != MessageTypeIdentify && c.server.rooms == nil {
		c.sendError("service_unavailable", "Game service not available")
		return
	}

	switch msg.Type {
	case MessageTypeIdentify:
		var data IdentifyData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse identify data")
			return
		}
		c.handleIdentify(data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypeSelectCartela:
		var data CartelaActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse select cartela data")
			return
		}
		c.handleSelectCartela(data)

	case MessageTypeConfirmCartela:
		var data CartelaActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse confirm cartela data")
			return
		}
		c.handleConfirmCartela(data)

	case MessageTypeDeselectCartela:
		var data CartelaActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse deselect cartela data")
			return
		}
		c.handleDeselectCartela(data)

	case MessageTypeGetCartelaStatuses:
		var data GetCartelaStatusesData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse cartela statuses request")
			return
		}
		c.handleGetCartelaStatuses(data)

	case MessageTypeCallBingo:
		var data CallBingoData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse call bingo data")
			return
		}
		c.handleCallBingo(data)

	case MessageTypeGetGameState:
		var data GetGameStateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse game state request")
			return
		}
		c.handleGetGameState(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg) // Ignore send errors during error handling
}

// sendEngineError maps an engine error onto a client error code
func (c *Connection) sendEngineError(err error) {
	switch {
	case errors.Is(err, engine.ErrRoomUnavailable):
		c.sendError("room_unavailable", "Room is not accepting this action")
	case errors.Is(err, engine.ErrSlotUnavailable):
		c.sendError("slot_unavailable", "Cartela is already taken")
	case errors.Is(err, engine.ErrInsufficientBalance):
		c.sendError("insufficient_balance", "Insufficient balance to confirm this cartela")
	case errors.Is(err, engine.ErrInvalidCartela):
		c.sendError("invalid_cartela", "Cartela number out of range")
	case errors.Is(err, engine.ErrInvalidStake):
		c.sendError("invalid_stake", "Stake amount not offered")
	case errors.Is(err, engine.ErrInvalidBingoClaim):
		c.sendError("invalid_bingo_claim", "No completed pattern on the claimed cards")
	default:
		c.sendError("internal_error", "Action failed, please retry")
	}
}

// identified reports whether the connection has a trusted user mapping yet
func (c *Connection) identified() (string, bool) {
	userID := c.GetUser()
	return userID, userID != ""
}

func (c *Connection) handleIdentify(data IdentifyData) {
	c.logger.Info("Identify request", "userId", data.UserID)

	// The session service upstream already resolved the connection to a
	// stable user id; the gateway trusts it.
	if data.UserID == "" {
		c.sendError("invalid_identify", "User id required")
		return
	}

	c.SetUser(data.UserID)

	response, _ := NewMessage(MessageTypeIdentified, IdentifiedData{
		Success: true,
		UserID:  data.UserID,
	})
	_ = c.SendMessage(response) // Ignore send errors
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	c.logger.Info("Join room request", "stake", data.StakeAmount, "roomId", data.RoomID, "user", c.GetUser())

	userID, ok := c.identified()
	if !ok {
		c.sendError("not_identified", "Must identify first")
		return
	}

	var info engine.RoomInfo
	var err error
	if data.RoomID != "" {
		info, err = c.server.rooms.Join(data.RoomID, userID)
	} else {
		info, err = c.server.rooms.JoinStake(data.StakeAmount, userID)
	}
	if err != nil {
		c.sendEngineError(err)
		return
	}

	c.SetRoom(info.RoomID)

	response, _ := NewMessage(MessageType(engine.EventRoomJoined), info)
	_ = c.SendMessage(response) // Ignore send errors
}

func (c *Connection) handleSelectCartela(data CartelaActionData) {
	userID, ok := c.identified()
	if !ok {
		c.sendError("not_identified", "Must identify first")
		return
	}

	if err := c.server.rooms.SelectCartela(data.RoomID, data.CartelaNumber, userID); err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handleConfirmCartela(data CartelaActionData) {
	userID, ok := c.identified()
	if !ok {
		c.sendError("not_identified", "Must identify first")
		return
	}

	if err := c.server.rooms.ConfirmCartela(c.ctx, data.RoomID, data.CartelaNumber, userID); err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handleDeselectCartela(data CartelaActionData) {
	userID, ok := c.identified()
	if !ok {
		c.sendError("not_identified", "Must identify first")
		return
	}

	if err := c.server.rooms.ReleaseCartela(data.RoomID, data.CartelaNumber, userID); err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handleGetCartelaStatuses(data GetCartelaStatusesData) {
	userID, ok := c.identified()
	if !ok {
		c.sendError("not_identified", "Must identify first")
		return
	}

	statuses, err := c.server.rooms.Snapshot(data.RoomID, userID)
	if err != nil {
		c.sendEngineError(err)
		return
	}

	response, _ := NewMessage(MessageType(engine.EventCartelaStatuses), statuses)
	_ = c.SendMessage(response) // Ignore send errors
}

func (c *Connection) handleCallBingo(data CallBingoData) {
	userID, ok := c.identified()
	if !ok {
		c.sendError("not_identified", "Must identify first")
		return
	}

	c.logger.Info("Bingo called", "user", userID, "roomId", data.RoomID, "cards", data.CardIDs)

	err := c.server.rooms.CallBingo(data.RoomID, userID, data.CardIDs)
	if errors.Is(err, engine.ErrInvalidBingoClaim) || errors.Is(err, engine.ErrRoomUnavailable) {
		response, _ := NewMessage(MessageTypeBingoInvalid, BingoInvalidData{
			Message: "Invalid bingo call or game not in progress",
		})
		_ = c.SendMessage(response) // Ignore send errors
		return
	}
	if err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handleGetGameState(data GetGameStateData) {
	state, err := c.server.rooms.GameState(data.RoomID)
	if err != nil {
		c.sendEngineError(err)
		return
	}

	response, _ := NewMessage(MessageType(engine.EventGameState), state)
	_ = c.SendMessage(response) // Ignore send errors
}
