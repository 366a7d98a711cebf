package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsEvent is the wire format pushed to websocket clients.
type wsEvent struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// WebSocketHandler pushes task lifecycle events to connected clients so the
// UI can react to pipeline progress without polling GET /api/tasks/{id}.
type WebSocketHandler struct {
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex
	logger      arbor.ILogger
}

// NewWebSocketHandler creates the handler and subscribes it to the task
// event stream.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger) (*WebSocketHandler, error) {
	h := &WebSocketHandler{
		clients:     make(map[*websocket.Conn]bool),
		clientMutex: make(map[*websocket.Conn]*sync.Mutex),
		logger:      logger,
	}

	for _, eventType := range []interfaces.EventType{interfaces.EventTaskStateChanged, interfaces.EventSegmentCreated} {
		if err := eventService.Subscribe(eventType, h.handleEvent); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// HandleWebSocket upgrades the connection and keeps it registered until the
// client disconnects.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().
		Int("client_count", clientCount).
		Msg("WebSocket client connected")

	// Read loop exists only to detect disconnects; clients do not send
	// messages.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	h.broadcast(wsEvent{
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Payload:   event.Payload,
	})
	return nil
}

func (h *WebSocketHandler) broadcast(event wsEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.mu.RLock()
		mu, ok := h.clientMutex[conn]
		h.mu.RUnlock()
		if !ok {
			continue
		}

		mu.Lock()
		err := conn.WriteJSON(event)
		mu.Unlock()

		if err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, removing client")
			h.removeClient(conn)
		}
	}
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientMutex = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()
}
