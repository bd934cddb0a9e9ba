package server

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/ethiobingo/bingo-engine/internal/engine"
	"github.com/ethiobingo/bingo-engine/internal/wallet"
)

func newTestServer() *Server {
	return NewServer("127.0.0.1:0", log.New(io.Discard))
}

// newTestConn registers a connection directly with the hub, bypassing the
// WebSocket upgrade. Messages accumulate on the send channel instead of
// being written to a socket.
func newTestConn(s *Server, userID, roomID string, buffer int) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Connection{
		send:   make(chan *Message, buffer),
		logger: log.New(io.Discard),
		ctx:    ctx,
		cancel: cancel,
		server: s,
	}
	conn.SetUser(userID)
	conn.SetRoom(roomID)

	s.mu.Lock()
	s.connections[conn] = true
	s.mu.Unlock()

	return conn
}

// receivedTypes drains every buffered outbound message and returns the types
// in delivery order.
func receivedTypes(c *Connection) []MessageType {
	var types []MessageType
	for {
		select {
		case msg := <-c.send:
			types = append(types, msg.Type)
		default:
			return types
		}
	}
}

func mustMessage(t *testing.T, messageType MessageType, data interface{}) *Message {
	t.Helper()
	msg, err := NewMessage(messageType, data)
	if err != nil {
		t.Fatalf("failed to build %s message: %v", messageType, err)
	}
	return msg
}

// expectError reads the next outbound message and asserts it carries the
// given error code.
func expectError(t *testing.T, c *Connection, code string) {
	t.Helper()

	var msg *Message
	select {
	case msg = <-c.send:
	default:
		t.Fatalf("expected an error message with code %q, got none", code)
	}

	if msg.Type != MessageTypeError {
		t.Fatalf("expected error message, got %s", msg.Type)
	}

	var data ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to parse error payload: %v", err)
	}
	if data.Code != code {
		t.Errorf("expected error code %q, got %q (%s)", code, data.Code, data.Message)
	}
}

func TestBroadcastRouting(t *testing.T) {
	s := newTestServer()

	alice := newTestConn(s, "alice", "room-a", 8)
	bob := newTestConn(s, "bob", "room-a", 8)
	carol := newTestConn(s, "carol", "room-b", 8)

	s.ToRoom("room-a", engine.EventTimerUpdate, struct{}{})
	s.ToRoomExcept("room-a", "alice", engine.EventCartelaStatusChanged, struct{}{})
	s.ToUser("carol", engine.EventGameStart, struct{}{})

	aliceTypes := receivedTypes(alice)
	if len(aliceTypes) != 1 || aliceTypes[0] != MessageType(engine.EventTimerUpdate) {
		t.Errorf("alice should only see the room broadcast, got %v", aliceTypes)
	}

	bobTypes := receivedTypes(bob)
	if len(bobTypes) != 2 ||
		bobTypes[0] != MessageType(engine.EventTimerUpdate) ||
		bobTypes[1] != MessageType(engine.EventCartelaStatusChanged) {
		t.Errorf("bob should see both room broadcasts, got %v", bobTypes)
	}

	carolTypes := receivedTypes(carol)
	if len(carolTypes) != 1 || carolTypes[0] != MessageType(engine.EventGameStart) {
		t.Errorf("carol should only see her direct message, got %v", carolTypes)
	}
}

func TestBroadcastSkipsFailedConnection(t *testing.T) {
	s := newTestServer()

	alice := newTestConn(s, "alice", "room-a", 8)
	bob := newTestConn(s, "bob", "room-a", 8)

	// A connection whose context is gone and whose buffer is full: delivery
	// to it fails, and the failure must not block the healthy peers.
	dead := newTestConn(s, "mallory", "room-a", 0)
	dead.cancel()

	s.ToRoom("room-a", engine.EventBallCalled, struct{}{})

	for _, conn := range []*Connection{alice, bob} {
		types := receivedTypes(conn)
		if len(types) != 1 || types[0] != MessageType(engine.EventBallCalled) {
			t.Errorf("%s should receive the broadcast, got %v", conn.GetUser(), types)
		}
	}
	if types := receivedTypes(dead); len(types) != 0 {
		t.Errorf("failed connection should receive nothing, got %v", types)
	}
}

func newTestGateway(t *testing.T) *Server {
	t.Helper()

	s := newTestServer()
	w := wallet.NewMemoryWallet()
	m := engine.NewManager(zerolog.Nop(), quartz.NewMock(t), w, w, s, engine.Config{
		Stakes:           []int{10},
		CountdownSeconds: 60,
	})
	t.Cleanup(m.Stop)
	s.SetRoomManager(m)
	return s
}

func TestConnectionDispatch(t *testing.T) {
	s := newTestGateway(t)
	conn := newTestConn(s, "", "", 16)

	// Game actions are rejected until the connection has identified.
	conn.handleMessage(mustMessage(t, MessageTypeJoinRoom, JoinRoomData{StakeAmount: 10}))
	expectError(t, conn, "not_identified")

	conn.handleMessage(mustMessage(t, MessageTypeIdentify, IdentifyData{UserID: "alice"}))
	select {
	case msg := <-conn.send:
		if msg.Type != MessageTypeIdentified {
			t.Fatalf("expected identified response, got %s", msg.Type)
		}
	default:
		t.Fatal("expected identified response, got none")
	}
	if conn.GetUser() != "alice" {
		t.Errorf("expected connection bound to alice, got %q", conn.GetUser())
	}

	conn.handleMessage(mustMessage(t, MessageTypeJoinRoom, JoinRoomData{StakeAmount: 10}))
	select {
	case msg := <-conn.send:
		if msg.Type != MessageType(engine.EventRoomJoined) {
			t.Fatalf("expected room-joined response, got %s", msg.Type)
		}
	default:
		t.Fatal("expected room-joined response, got none")
	}
	if conn.GetRoom() == "" {
		t.Error("expected connection bound to the joined room")
	}

	// Stakes the engine does not offer are rejected at the gateway.
	conn.handleMessage(mustMessage(t, MessageTypeJoinRoom, JoinRoomData{StakeAmount: -100}))
	expectError(t, conn, "invalid_stake")

	conn.handleMessage(&Message{Type: "warp"})
	expectError(t, conn, "unknown_message_type")
}

func TestDispatchWithoutRoomManager(t *testing.T) {
	s := newTestServer()
	conn := newTestConn(s, "", "", 4)

	// Identify still works so the client gets a proper error afterwards.
	conn.handleMessage(mustMessage(t, MessageTypeIdentify, IdentifyData{UserID: "alice"}))
	select {
	case msg := <-conn.send:
		if msg.Type != MessageTypeIdentified {
			t.Fatalf("expected identified response, got %s", msg.Type)
		}
	default:
		t.Fatal("expected identified response, got none")
	}

	conn.handleMessage(mustMessage(t, MessageTypeGetGameState, GetGameStateData{RoomID: "room_10_x"}))
	expectError(t, conn, "service_unavailable")
}
