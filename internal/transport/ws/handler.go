package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quizwrap/internal/logger"
	"quizwrap/internal/model"
	"quizwrap/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// inbound pacing per socket; Wait delays bursts, nothing is dropped
	inboundRate  = 20
	inboundBurst = 40
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	authSvc    *service.AuthService
	sessionSvc *service.SessionService
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, authSvc *service.AuthService, sessionSvc *service.SessionService) *Handler {
	return &Handler{
		hub:        hub,
		authSvc:    authSvc,
		sessionSvc: sessionSvc,
	}
}

type focusLostPayload struct {
	Source model.FocusSource `json:"source"`
}

// StudentWS handles GET /v1/ws/session
func (h *Handler) StudentWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateClientToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	state, err := h.sessionSvc.Get(r.Context(), claims.ClientID)
	if errors.Is(err, model.ErrSessionNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &Connection{
		ClientID: claims.ClientID,
		Send:     make(chan []byte, 256),
		Hub:      h.hub,
	}
	h.hub.Register(conn)

	// the page renders only server counts, so send the current one right away
	h.hub.SendToClient(conn.ClientID, string(MsgSessionState), state)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn, h.handleClientMessage)
}

// InstructorWS handles GET /v1/ws/instructor
func (h *Handler) InstructorWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ValidateInstructorToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &Connection{
		IsInstructor: true,
		Send:         make(chan []byte, 256),
		Hub:          h.hub,
	}
	h.hub.Register(conn)
	logger.Log.Info("instructor feed opened", zap.String("instructorId", claims.InstructorID))

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn, nil)
}

func (h *Handler) handleClientMessage(ctx context.Context, conn *Connection, msg *Message) {
	switch msg.Type {
	case MsgFocusLost:
		var p focusLostPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				h.sendError(conn, "invalid payload")
				return
			}
		}
		if p.Source == "" {
			p.Source = model.FocusBlur
		}
		// the service pushes focus_count back through the hub
		if _, err := h.sessionSvc.RecordFocusLoss(ctx, conn.ClientID, p.Source); err != nil {
			h.sendError(conn, err.Error())
		}

	case MsgGetState:
		state, err := h.sessionSvc.Get(ctx, conn.ClientID)
		if err != nil {
			h.sendError(conn, err.Error())
			return
		}
		h.hub.SendToClient(conn.ClientID, string(MsgSessionState), state)

	default:
		h.sendError(conn, "unknown message type")
	}
}

func (h *Handler) sendError(conn *Connection, message string) {
	h.hub.SendToClient(conn.ClientID, string(MsgError), map[string]string{"error": message})
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection, handle func(context.Context, *Connection, *Message)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(inboundRate), inboundBurst)

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("websocket read error", zap.Error(err))
			}
			break
		}
		if handle == nil {
			// instructor feed is push only
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, "malformed message")
			continue
		}
		handle(ctx, conn, &msg)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
