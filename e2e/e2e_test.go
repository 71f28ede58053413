package e2e

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/estelar/internal/app"
	"github.com/ayusman/estelar/internal/capture"
	"github.com/ayusman/estelar/internal/config"
	"github.com/ayusman/estelar/internal/detector"
	"github.com/ayusman/estelar/internal/gesture"
	"github.com/ayusman/estelar/internal/phrase"
	"github.com/ayusman/estelar/internal/server"
	"github.com/ayusman/estelar/internal/store"
	"gocv.io/x/gocv"
)

// scriptedGenerator answers every prompt with the same phrase.
type scriptedGenerator struct{ text string }

func (g scriptedGenerator) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	return g.text, nil
}

// movingFrames alternates a dark frame and a bright block so motion gating
// keeps the pipeline at the active rate.
func movingFrames(t *testing.T) []*gocv.Mat {
	t.Helper()
	a := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	b := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&b, image.Rect(160, 120, 480, 360), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return []*gocv.Mat{&a, &b}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func getState(t *testing.T, client *http.Client, url string) app.State {
	t.Helper()
	resp, err := client.Get(url + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state error = %v", err)
	}
	defer resp.Body.Close()

	var st app.State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func TestE2E_RevealWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "journal.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	settings := config.DefaultConfig()
	settings.Field.Particles = 1500
	settings.Render.Width = 160
	settings.Render.Height = 90

	cam := capture.NewMockCamera(movingFrames(t), true)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

	const secret = "Eres el universo entero"
	application := app.New(app.Config{
		Settings: settings,
		Camera:   cam,
		Detector: det,
		Phrases:  phrase.NewService(scriptedGenerator{text: "  " + secret + "\n"}, phrase.Config{}),
		Store:    s,
		Rand:     rand.New(rand.NewPCG(42, 42)),
	})
	defer application.Stop()

	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	application.StartRenderLoop(120)

	srv := server.New(server.Config{App: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	client := ts.Client()

	t.Run("OpenHandShowsInstructions", func(t *testing.T) {
		waitFor(t, "detector calls", func() bool { return det.Calls() > 0 })

		st := getState(t, client, ts.URL)
		if st.Gesture != gesture.Open {
			t.Errorf("gesture = %s, want OPEN", st.Gesture)
		}
		if st.Tracking != app.TrackingActive {
			t.Errorf("tracking = %s, want active", st.Tracking)
		}
		if st.PhraseVisible {
			t.Error("no phrase should be visible with an open hand")
		}
	})

	t.Run("FistRevealsPhrase", func(t *testing.T) {
		det.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})

		waitFor(t, "phrase", func() bool { return getState(t, client, ts.URL).PhraseVisible })

		st := getState(t, client, ts.URL)
		if st.Gesture != gesture.Closed {
			t.Errorf("gesture = %s, want CLOSED", st.Gesture)
		}
		if st.Phrase != secret {
			t.Errorf("phrase = %q, want %q", st.Phrase, secret)
		}
		if st.PhraseSource != phrase.SourceRemote {
			t.Errorf("source = %s, want remote", st.PhraseSource)
		}
	})

	t.Run("FieldFormsText", func(t *testing.T) {
		f := application.Field()
		waitFor(t, "convergence", func() bool {
			for i := 0; i < f.MaskLen(); i += 50 {
				if f.Position(i).Sub(f.Target(i)).Len() > 0.5 {
					return false
				}
			}
			return true
		})
	})

	t.Run("JournalListsReveal", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/phrases")
		if err != nil {
			t.Fatalf("GET /api/phrases error = %v", err)
		}
		defer resp.Body.Close()

		var listed struct {
			Phrases []store.Phrase `json:"phrases"`
			Total   int            `json:"total"`
		}
		json.NewDecoder(resp.Body).Decode(&listed)

		if listed.Total != 1 || len(listed.Phrases) != 1 {
			t.Fatalf("journal total = %d, want 1", listed.Total)
		}
		if listed.Phrases[0].Text != secret {
			t.Errorf("journaled phrase = %q, want %q", listed.Phrases[0].Text, secret)
		}
	})

	t.Run("OpeningHidesPhrase", func(t *testing.T) {
		det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

		waitFor(t, "open hand", func() bool { return getState(t, client, ts.URL).Gesture == gesture.Open })

		st := getState(t, client, ts.URL)
		if st.PhraseVisible {
			t.Error("phrase should hide when the hand opens")
		}
		if st.Reveals != 1 {
			t.Errorf("reveals = %d, want 1", st.Reveals)
		}
	})

	t.Run("GestureEventsJournaled", func(t *testing.T) {
		events, err := s.Events().ListBySession(getState(t, client, ts.URL).SessionID)
		if err != nil {
			t.Fatalf("ListBySession() error = %v", err)
		}
		if len(events) < 2 {
			t.Fatalf("events = %d, want at least CLOSED and OPEN", len(events))
		}
		if events[0].Gesture != "CLOSED" || events[1].Gesture != "OPEN" {
			t.Errorf("first events = %s, %s; want CLOSED, OPEN", events[0].Gesture, events[1].Gesture)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("health check error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after the reveal cycle")
		}
		resp.Body.Close()
	})
}

func TestE2E_WithoutCamera(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	settings := config.DefaultConfig()
	settings.Field.Particles = 500
	settings.Camera.Disabled = true

	application := app.New(app.Config{
		Settings: settings,
		Phrases:  phrase.NewService(phrase.Unavailable{Err: phrase.ErrMissingAPIKey}, phrase.Config{}),
	})
	defer application.Stop()

	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	srv := server.New(server.Config{App: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	st := getState(t, ts.Client(), ts.URL)
	if st.Tracking != app.TrackingUnavailable {
		t.Errorf("tracking = %s, want unavailable", st.Tracking)
	}
	if st.Message != app.CameraErrorMessage {
		t.Errorf("message = %q, want the camera notice", st.Message)
	}

	// A manual fist still reveals, and a missing key falls back.
	application.SetGesture(gesture.Closed)
	waitFor(t, "fallback phrase", func() bool { return application.State().PhraseVisible })

	if got := application.State().Phrase; got != phrase.FallbackError {
		t.Errorf("phrase = %q, want the error fallback", got)
	}
}
