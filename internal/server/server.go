package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/ethiobingo/bingo-engine/internal/engine"
)

// Server represents the WebSocket gateway
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	rooms       *engine.Manager
}

// NewServer creates a new WebSocket gateway
func NewServer(addr string, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				// In production, implement proper origin checking
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetRoomManager wires the engine the gateway routes events into
func (s *Server) SetRoomManager(rooms *engine.Manager) {
	s.rooms = rooms
}

// Start starts the WebSocket gateway
func (s *Server) Start() error {
	go s.run()

	// Create a dedicated mux for this server instance
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.logger.Info("Starting WebSocket gateway", "addr", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

// Stop stops the WebSocket gateway
func (s *Server) Stop() error {
	s.cancel()

	// Close all connections
	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
	s.mu.Unlock()

	return nil
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, ok := s.connections[conn]
			if ok {
				delete(s.connections, conn)
			}
			total := len(s.connections)
			s.mu.Unlock()

			if ok {
				// Free any cartelas the user selected but never paid for
				userID := conn.GetUser()
				roomID := conn.GetRoom()
				if userID != "" && roomID != "" && s.rooms != nil {
					s.logger.Info("Releasing selections for disconnected user", "user", userID, "room", roomID)
					s.rooms.ReleaseUserSelections(roomID, userID)
				}

				_ = conn.Close() // Ignore close errors during unregistration
			}
			s.logger.Info("Client disconnected", "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s)
	s.register <- client
	client.Start()

	// Connection cleanup is handled by the connection itself
	go func() {
		<-client.ctx.Done()
		s.unregister <- client
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

// ToRoom implements engine.Broadcaster by fanning an event out to every
// connection attached to the room.
func (s *Server) ToRoom(roomID string, event string, payload any) {
	s.broadcastRoom(roomID, "", event, payload)
}

// ToRoomExcept implements engine.Broadcaster for actor-excluded broadcasts.
func (s *Server) ToRoomExcept(roomID string, exceptUserID string, event string, payload any) {
	s.broadcastRoom(roomID, exceptUserID, event, payload)
}

func (s *Server) broadcastRoom(roomID, exceptUserID, event string, payload any) {
	msg, err := NewMessage(MessageType(event), payload)
	if err != nil {
		s.logger.Error("Failed to create broadcast message", "event", event, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if conn.GetRoom() != roomID {
			continue
		}
		if exceptUserID != "" && conn.GetUser() == exceptUserID {
			continue
		}
		// A failed delivery to one connection never blocks the others
		if err := conn.SendMessage(msg); err != nil {
			s.logger.Error("Failed to send message to client", "error", err, "user", conn.GetUser())
		} else {
			count++
		}
	}

	s.logger.Debug("Broadcasted message to room", "roomId", roomID, "type", event, "recipients", count)
}

// ToUser implements engine.Broadcaster by delivering an event to every
// connection the user currently holds.
func (s *Server) ToUser(userID string, event string, payload any) {
	msg, err := NewMessage(MessageType(event), payload)
	if err != nil {
		s.logger.Error("Failed to create user message", "event", event, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for conn := range s.connections {
		if conn.GetUser() == userID {
			if err := conn.SendMessage(msg); err != nil {
				s.logger.Error("Failed to send message to user", "error", err, "user", userID)
			}
		}
	}
}

// GetConnectedUsers returns a list of identified user IDs
func (s *Server) GetConnectedUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []string
	for conn := range s.connections {
		if userID := conn.GetUser(); userID != "" {
			users = append(users, userID)
		}
	}

	return users
}

// GetRoomUsers returns a list of user IDs connected to a specific room
func (s *Server) GetRoomUsers(roomID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []string
	for conn := range s.connections {
		if conn.GetRoom() == roomID && conn.GetUser() != "" {
			users = append(users, conn.GetUser())
		}
	}

	return users
}
