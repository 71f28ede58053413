package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ayusman/estelar/internal/store"
)

// newTestStore creates a journal in a temporary directory.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func seedPhrases(t *testing.T, s *store.Store, texts ...string) {
	t.Helper()
	sess, err := s.Sessions().Start(100, 10)
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	for _, text := range texts {
		if err := s.Phrases().Create(&store.Phrase{SessionID: sess.ID, Text: text, Source: "remote"}); err != nil {
			t.Fatalf("failed to create phrase: %v", err)
		}
	}
}

func TestPhrasesHandler_List(t *testing.T) {
	s := newTestStore(t)
	seedPhrases(t, s, "uno", "dos", "tres")
	handler := NewPhrasesHandler(s)

	tests := []struct {
		name      string
		url       string
		wantCode  int
		wantCount int
		wantFirst string
	}{
		{name: "default limit", url: "/api/phrases", wantCode: http.StatusOK, wantCount: 3, wantFirst: "tres"},
		{name: "explicit limit", url: "/api/phrases?limit=2", wantCode: http.StatusOK, wantCount: 2, wantFirst: "tres"},
		{name: "trailing slash", url: "/api/phrases/", wantCode: http.StatusOK, wantCount: 3, wantFirst: "tres"},
		{name: "bad limit", url: "/api/phrases?limit=abc", wantCode: http.StatusBadRequest},
		{name: "negative limit", url: "/api/phrases?limit=-1", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp listPhrasesResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Count != tt.wantCount || len(resp.Phrases) != tt.wantCount {
				t.Errorf("count = %d (%d phrases), want %d", resp.Count, len(resp.Phrases), tt.wantCount)
			}
			if resp.Total != 3 {
				t.Errorf("total = %d, want 3", resp.Total)
			}
			if resp.Phrases[0].Text != tt.wantFirst {
				t.Errorf("first phrase = %q, want %q", resp.Phrases[0].Text, tt.wantFirst)
			}
		})
	}
}

func TestPhrasesHandler_EmptyList(t *testing.T) {
	handler := NewPhrasesHandler(newTestStore(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/phrases", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"phrases":[]`) {
		t.Errorf("empty journal should encode an empty array, got %s", rec.Body.String())
	}
}

func TestPhrasesHandler_Latest(t *testing.T) {
	s := newTestStore(t)
	handler := NewPhrasesHandler(s)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/phrases/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 on empty journal, got %d", rec.Code)
	}

	seedPhrases(t, s, "primera", "última")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/phrases/latest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var p store.Phrase
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if p.Text != "última" {
		t.Errorf("latest = %q, want última", p.Text)
	}
}

func TestPhrasesHandler_Errors(t *testing.T) {
	handler := NewPhrasesHandler(newTestStore(t))

	tests := []struct {
		method   string
		url      string
		wantCode int
	}{
		{http.MethodPost, "/api/phrases", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/phrases/latest", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/phrases/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.url, nil))

		if rec.Code != tt.wantCode {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.url, tt.wantCode, rec.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
			t.Errorf("%s %s: expected JSON error body", tt.method, tt.url)
		}
	}
}

type fakeToggler struct {
	mu      sync.Mutex
	enabled bool
}

func (f *fakeToggler) SetEnabled(v bool) { f.mu.Lock(); f.enabled = v; f.mu.Unlock() }
func (f *fakeToggler) IsEnabled() bool   { f.mu.Lock(); defer f.mu.Unlock(); return f.enabled }

func TestTrackingHandler(t *testing.T) {
	target := &fakeToggler{enabled: true}
	handler := NewTrackingHandler(target)

	tests := []struct {
		name        string
		method      string
		body        string
		wantCode    int
		wantEnabled bool
	}{
		{name: "get", method: http.MethodGet, wantCode: http.StatusOK, wantEnabled: true},
		{name: "disable", method: http.MethodPut, body: `{"enabled":false}`, wantCode: http.StatusOK, wantEnabled: false},
		{name: "enable via post", method: http.MethodPost, body: `{"enabled":true}`, wantCode: http.StatusOK, wantEnabled: true},
		{name: "missing field", method: http.MethodPut, body: `{}`, wantCode: http.StatusBadRequest, wantEnabled: true},
		{name: "invalid json", method: http.MethodPut, body: `{`, wantCode: http.StatusBadRequest, wantEnabled: true},
		{name: "delete", method: http.MethodDelete, wantCode: http.StatusMethodNotAllowed, wantEnabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/tracking", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if target.IsEnabled() != tt.wantEnabled {
				t.Errorf("enabled = %v, want %v", target.IsEnabled(), tt.wantEnabled)
			}
		})
	}
}
