// Package livereporter ships one illustrative Reporter/Output pair (spec.md
// §6 names reporters/outputs as external collaborators the core never
// implements itself): a websocket hub that streams lifecycle events to
// connected dashboards in real time. It is grounded in the teacher's
// cmd/server/handlers/silence_ws.go and dashboard_ws.go hub-plus-broadcast
// pattern, generalized from silence-specific events to callwatch's lifecycle
// Event stream.
package livereporter

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wireEvent is the JSON representation of a monitoring.Event sent to
// websocket clients. Only the fields relevant to Kind are populated, the
// same "only relevant fields set" discipline monitoring.Event itself uses.
type wireEvent struct {
	Kind      string            `json:"kind"`
	ClassType string            `json:"class_type,omitempty"`
	Method    string            `json:"method,omitempty"`
	FlowID    string            `json:"flow_id,omitempty"`
	Level     int               `json:"level,omitempty"`
	ElapsedMS float64           `json:"elapsed_ms,omitempty"`
	Message   string            `json:"message,omitempty"`
	Category  string            `json:"category,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	GapStart  time.Time         `json:"gap_start,omitempty"`
	GapEnd    time.Time         `json:"gap_end,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// hub manages websocket connections and broadcasts wireEvents to all of
// them, in the teacher's WebSocketHub register/unregister/broadcast-channel
// shape.
type hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan wireEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	logger     *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan wireEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
}

// run drives the hub's event loop until ctx is cancelled, closing every
// connection on exit.
func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("livereporter client registered", "total_clients", count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				go h.sendTo(conn, ev)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *hub) sendTo(conn *websocket.Conn, ev wireEvent) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.Debug("livereporter write failed, unregistering", "error", err)
		select {
		case h.unregister <- conn:
		default:
		}
	}
}

// publish queues ev for broadcast, dropping it if the broadcast channel is
// full rather than blocking the event consumer that calls it.
func (h *hub) publish(ev wireEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("livereporter broadcast channel full, dropping event", "kind", ev.Kind)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
}

// handleWebSocket upgrades the HTTP request and registers the connection.
func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("livereporter upgrade failed", "error", err)
		return
	}
	h.register <- conn
	go h.readPump(conn)
}

// readPump keeps the connection alive with ping/pong; clients are not
// expected to send data.
func (h *hub) readPump(conn *websocket.Conn) {
	defer func() { h.unregister <- conn }()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// activeConnections reports the current client count, for health checks.
func (h *hub) activeConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
