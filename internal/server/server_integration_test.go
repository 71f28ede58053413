package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/estelar/internal/app"
	"github.com/ayusman/estelar/internal/gesture"
	"github.com/ayusman/estelar/internal/store"
	"github.com/gorilla/websocket"
)

// waitForCount polls the journal until it holds want phrases.
func waitForCount(t *testing.T, s *store.Store, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, err := s.Phrases().Count(); err == nil && n >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("journal never reached %d phrases", want)
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}

func TestAPI_EventsBroadcastState(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping websocket test in short mode")
	}

	a := newTestApp(t, false)
	srv := newTestServer(t, a)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	a.SetGesture(gesture.Closed)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		var state app.State
		if err := json.Unmarshal(msg, &state); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if state.Gesture == gesture.Closed {
			if !state.PhraseVisible && !state.PhrasePending {
				t.Error("a closed hand should have a phrase pending or visible")
			}
			return
		}
	}
}

func TestAPI_EventsCloseDisconnects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping websocket test in short mode")
	}

	h := NewEventsHandler(newTestApp(t, false))
	ts := httptest.NewServer(h)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for h.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", h.Clients())
	}

	h.Close()
	h.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestAPI_UniverseStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping render stream test in short mode")
	}

	a := newTestApp(t, false)
	a.StartRenderLoop(60)
	srv := newTestServer(t, a)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/universe", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/universe error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %q, want multipart/x-mixed-replace", ct)
	}

	r := bufio.NewReader(resp.Body)
	parts := 0
	for parts < 2 {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "Content-Type: image/jpeg") {
			parts++
		}
	}
}

func TestServer_ShutdownEndsStreams(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping render stream test in short mode")
	}

	a := newTestApp(t, false)
	srv := newTestServer(t, a)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/api/universe")
	if err != nil {
		t.Fatalf("GET /api/universe error = %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "Content-Type: image/jpeg") {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() with an open stream error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Shutdown() took %s, want the stream to end promptly", elapsed)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil after Shutdown", err)
		}
	case <-time.After(time.Second):
		t.Error("Serve() did not return after Shutdown")
	}
}

func TestServer_ServeAfterShutdown(t *testing.T) {
	srv := New(Config{})
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := srv.Serve(l); err != nil {
		t.Errorf("Serve() after Shutdown error = %v, want nil", err)
	}
}
