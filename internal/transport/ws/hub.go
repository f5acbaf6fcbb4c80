package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"quizwrap/internal/logger"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client message types
const (
	MsgFocusLost    MessageType = "focus_lost" // inbound
	MsgGetState     MessageType = "get_state"  // inbound
	MsgFocusCount   MessageType = "focus_count"
	MsgSessionState MessageType = "session_state"
	MsgError        MessageType = "error"
)

// Instructor message types
const (
	MsgRecordAdded    MessageType = "record_added"
	MsgRecordsCleared MessageType = "records_cleared"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub manages WebSocket connections for quiz clients and instructors
type Hub struct {
	clientConns     map[string]*Connection // clientID -> latest conn
	instructorConns map[*Connection]struct{}

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	disconnect chan string
	broadcast  chan *BroadcastMessage
}

// Connection represents a WebSocket connection
type Connection struct {
	ClientID     string // Empty for instructor connections
	IsInstructor bool
	Send         chan []byte
	Hub          *Hub
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	ClientID      string
	ToInstructors bool
	Message       *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		clientConns:     make(map[string]*Connection),
		instructorConns: make(map[*Connection]struct{}),
		register:        make(chan *Connection),
		unregister:      make(chan *Connection),
		disconnect:      make(chan string),
		broadcast:       make(chan *BroadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if conn.IsInstructor {
				h.instructorConns[conn] = struct{}{}
				logger.Log.Info("instructor connected", zap.Int("instructors", len(h.instructorConns)))
			} else {
				// a second tab for the same client replaces the first
				if old, ok := h.clientConns[conn.ClientID]; ok {
					close(old.Send)
				}
				h.clientConns[conn.ClientID] = conn
				logger.Log.Debug("client connected", zap.String("clientId", conn.ClientID))
			}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conn.IsInstructor {
				if _, ok := h.instructorConns[conn]; ok {
					delete(h.instructorConns, conn)
					close(conn.Send)
					logger.Log.Info("instructor disconnected")
				}
			} else if existing, ok := h.clientConns[conn.ClientID]; ok && existing == conn {
				delete(h.clientConns, conn.ClientID)
				close(conn.Send)
				logger.Log.Debug("client disconnected", zap.String("clientId", conn.ClientID))
			}
			h.mu.Unlock()

		case clientID := <-h.disconnect:
			h.mu.Lock()
			if conn, ok := h.clientConns[clientID]; ok {
				delete(h.clientConns, clientID)
				close(conn.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)

			if msg.ToInstructors {
				for conn := range h.instructorConns {
					select {
					case conn.Send <- data:
					default:
						// Drop message if buffer full
					}
				}
			} else if conn, ok := h.clientConns[msg.ClientID]; ok {
				select {
				case conn.Send <- data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// SendToClient sends a message to one quiz client (implements service.Broadcaster)
func (h *Hub) SendToClient(clientID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		ClientID: clientID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// BroadcastToInstructors sends a message to every instructor feed (implements service.Broadcaster)
func (h *Hub) BroadcastToInstructors(msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		ToInstructors: true,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// DisconnectClient closes the socket of a destroyed client context (implements service.Broadcaster)
func (h *Hub) DisconnectClient(clientID string) {
	h.disconnect <- clientID
}

// Counts reports the number of live client and instructor sockets
func (h *Hub) Counts() (clients, instructors int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientConns), len(h.instructorConns)
}
