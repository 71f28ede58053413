package api

import (
	"encoding/json"
	"net/http"
)

// Toggler switches hand tracking on and off.
type Toggler interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// TrackingHandler serves GET and PUT /api/tracking.
type TrackingHandler struct {
	target Toggler
}

// NewTrackingHandler creates a handler for t.
func NewTrackingHandler(t Toggler) *TrackingHandler {
	return &TrackingHandler{target: t}
}

type trackingBody struct {
	Enabled *bool `json:"enabled"`
}

type trackingResponse struct {
	Enabled bool `json:"enabled"`
}

func (h *TrackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, trackingResponse{Enabled: h.target.IsEnabled()})
	case http.MethodPut, http.MethodPost:
		var body trackingBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if body.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		h.target.SetEnabled(*body.Enabled)
		writeJSON(w, http.StatusOK, trackingResponse{Enabled: h.target.IsEnabled()})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
