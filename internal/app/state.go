package app

import (
	"github.com/ayusman/estelar/internal/field"
	"github.com/ayusman/estelar/internal/gesture"
	"github.com/ayusman/estelar/internal/phrase"
	"github.com/ayusman/estelar/internal/render"
)

// Tracking describes the gesture source.
type Tracking string

const (
	TrackingLoading     Tracking = "loading"
	TrackingActive      Tracking = "active"
	TrackingCameraError Tracking = "camera-error"
	TrackingUnavailable Tracking = "unavailable"
)

// State is a snapshot of everything the presentation reacts to.
type State struct {
	Gesture       gesture.State  `json:"gesture"`
	Phrase        string         `json:"phrase"`
	PhraseSource  phrase.Source  `json:"phrase_source,omitempty"`
	PhraseVisible bool           `json:"phrase_visible"`
	PhrasePending bool           `json:"phrase_pending"`
	Reveals       int            `json:"reveals"`
	Tracking      Tracking       `json:"tracking"`
	Enabled       bool           `json:"enabled"`
	Hands         int            `json:"hands"`
	Message       string         `json:"message,omitempty"`
	Rotation      field.Rotation `json:"rotation"`
	Frames        uint64         `json:"frames"`
	Particles     int            `json:"particles"`
	TextPoints    int            `json:"text_points"`
	SessionID     string         `json:"session_id,omitempty"`
}

// State returns a consistent snapshot of the session.
func (a *App) State() State {
	a.mu.RLock()
	s := State{
		Gesture:       a.gesture.Load(),
		Phrase:        a.phrase.current.Text,
		PhraseSource:  a.phrase.current.Source,
		PhraseVisible: a.phrase.visible,
		PhrasePending: a.phrase.pending,
		Reveals:       a.phrase.reveals,
		Tracking:      a.tracking,
		Enabled:       a.enabled,
		Hands:         a.hands,
	}
	if a.session != nil {
		s.SessionID = a.session.ID
	}
	a.mu.RUnlock()

	s.Message = trackingMessage(s.Tracking)
	s.Rotation = a.field.Rotation()
	s.Frames = a.field.Frames()
	s.Particles = a.field.Len()
	s.TextPoints = a.field.MaskLen()
	return s
}

// Status converts the state into what the render overlays need.
func (s State) Status() render.Status {
	return render.Status{
		Gesture:       s.Gesture,
		Phrase:        s.Phrase,
		PhraseVisible: s.PhraseVisible,
		Notice:        s.Message,
	}
}

func trackingMessage(t Tracking) string {
	switch t {
	case TrackingLoading:
		return LoadingMessage
	case TrackingCameraError, TrackingUnavailable:
		return CameraErrorMessage
	default:
		return ""
	}
}

func (a *App) setTracking(t Tracking) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracking = t
}
