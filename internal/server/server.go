// Package server provides the HTTP surface of Estelar: the rendered universe
// as MJPEG, the live state over WebSocket and the phrase journal.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/estelar/internal/app"
	"github.com/ayusman/estelar/internal/config"
	"github.com/ayusman/estelar/internal/server/api"
)

//go:embed web
var webFS embed.FS

// Config holds the server configuration.
type Config struct {
	// App is the running session. Without it only health and static files are served.
	App *app.App
	// StaticDir overrides the embedded page when set.
	StaticDir string
	// StreamFPS is the frame rate of /api/universe.
	StreamFPS int
}

// Server represents the HTTP server for the Estelar application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler

	// done is closed by Shutdown to end long-lived streams.
	done     chan struct{}
	doneOnce sync.Once

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	if cfg.StreamFPS <= 0 {
		cfg.StreamFPS = config.DefaultStreamFPS
	}
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		done:   make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.Handle("/api/tracking", api.NewTrackingHandler(a))
		s.mux.Handle("/api/universe", NewUniverseHandler(a, s.config.StreamFPS, s.done))
		s.mux.Handle("/api/camera", NewCameraHandler(a, s.done))

		s.events = NewEventsHandler(a)
		s.mux.Handle("/api/events", s.events)

		if st := a.Store(); st != nil {
			phrases := api.NewPhrasesHandler(st)
			s.mux.Handle("/api/phrases", phrases)
			s.mux.Handle("/api/phrases/", phrases)
		}
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
		return
	}
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	s.mux.Handle("/", http.FileServer(http.FS(sub)))
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	writeJSON(w, response)
}

// handleState handles GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.config.App.State())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the given address. It returns nil
// after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		l.Close()
		return nil
	default:
	}
	s.http = &http.Server{Handler: s}
	srv := s.http
	s.mu.Unlock()

	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown ends the MJPEG and event streams, stops accepting connections and
// waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.doneOnce.Do(func() { close(s.done) })
	s.mu.Unlock()
	if s.events != nil {
		s.events.Close()
	}

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
