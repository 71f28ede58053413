package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/estelar/internal/app"
	"github.com/gorilla/websocket"
)

// eventInterval is the state broadcast period, about 15 FPS.
const eventInterval = 66 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local page
	},
}

// StateSource provides the snapshots broadcast to clients.
type StateSource interface {
	State() app.State
}

// EventsHandler broadcasts the session state via WebSocket.
type EventsHandler struct {
	source  StateSource
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewEventsHandler creates a handler and starts its broadcast loop.
func NewEventsHandler(source StateSource) *EventsHandler {
	h := &EventsHandler{
		source:  source,
		clients: make(map[*websocket.Conn]bool),
		stopCh:  make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Reads only detect the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast loop and disconnects every client.
func (h *EventsHandler) Close() {
	h.once.Do(func() {
		close(h.stopCh)
		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.mu.Unlock()
	})
}

func (h *EventsHandler) broadcast() {
	ticker := time.NewTicker(eventInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		msg, err := json.Marshal(h.source.State())
		if err != nil {
			log.Printf("encode state: %v", err)
			continue
		}

		h.mu.RLock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			conn.WriteMessage(websocket.TextMessage, msg)
		}
		h.mu.RUnlock()
	}
}
