package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/estelar/internal/store"
)

// DefaultPhraseLimit caps GET /api/phrases when no limit is given.
const DefaultPhraseLimit = 50

// PhrasesHandler serves the phrase journal.
type PhrasesHandler struct {
	store *store.Store
}

// NewPhrasesHandler creates a handler over the journal.
func NewPhrasesHandler(s *store.Store) *PhrasesHandler {
	return &PhrasesHandler{store: s}
}

type listPhrasesResponse struct {
	Phrases []*store.Phrase `json:"phrases"`
	Count   int             `json:"count"`
	Total   int             `json:"total"`
}

// ServeHTTP routes /api/phrases and /api/phrases/latest.
func (h *PhrasesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/phrases"), "/")
	switch path {
	case "":
		h.list(w, r)
	case "/latest":
		h.latest(w)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// list handles GET /api/phrases?limit=N, newest first.
func (h *PhrasesHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultPhraseLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	phrases, err := h.store.Phrases().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list phrases")
		return
	}
	total, err := h.store.Phrases().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count phrases")
		return
	}

	if phrases == nil {
		phrases = []*store.Phrase{}
	}
	writeJSON(w, http.StatusOK, listPhrasesResponse{Phrases: phrases, Count: len(phrases), Total: total})
}

// latest handles GET /api/phrases/latest.
func (h *PhrasesHandler) latest(w http.ResponseWriter) {
	p, err := h.store.Phrases().Latest()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No phrases yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get phrase")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
