package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/estelar/internal/capture"
	"github.com/ayusman/estelar/internal/config"
	"github.com/ayusman/estelar/internal/detector"
	"github.com/ayusman/estelar/internal/gesture"
	"github.com/ayusman/estelar/internal/phrase"
	"github.com/ayusman/estelar/internal/store"
)

// fakePhraser answers immediately, or waits for release/cancellation when blocking.
type fakePhraser struct {
	mu        sync.Mutex
	result    phrase.Result
	block     bool
	release   chan phrase.Result
	calls     int
	cancelled int
}

func (f *fakePhraser) Phrase(ctx context.Context) phrase.Result {
	f.mu.Lock()
	f.calls++
	block, release, result := f.block, f.release, f.result
	f.mu.Unlock()

	if !block {
		return result
	}
	select {
	case r := <-release:
		return r
	case <-ctx.Done():
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
		return phrase.Result{Text: phrase.FallbackError, Source: phrase.SourceFallbackError}
	}
}

func (f *fakePhraser) counts() (calls, cancelled int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.cancelled
}

type fakeChime struct {
	mu                sync.Mutex
	reveals, disperse int
}

func (c *fakeChime) Reveal()   { c.mu.Lock(); c.reveals++; c.mu.Unlock() }
func (c *fakeChime) Disperse() { c.mu.Lock(); c.disperse++; c.mu.Unlock() }

func testSettings() *config.Config {
	s := config.DefaultConfig()
	s.Field.Particles = 400
	s.Camera.Disabled = true
	return s
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	if cfg.Settings == nil {
		cfg.Settings = testSettings()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(1, 1))
	}
	a := New(cfg)
	t.Cleanup(a.Stop)
	return a
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew_BuildsField(t *testing.T) {
	a := newTestApp(t, Config{Phrases: &fakePhraser{}})

	st := a.State()
	if st.Particles != 400 {
		t.Errorf("Particles = %d, want 400", st.Particles)
	}
	if st.TextPoints == 0 || st.TextPoints > 400 {
		t.Errorf("TextPoints = %d, want in (0, 400]", st.TextPoints)
	}
	if st.Gesture != gesture.Open {
		t.Errorf("initial gesture = %s, want OPEN", st.Gesture)
	}
	if st.Tracking != TrackingLoading || st.Message != LoadingMessage {
		t.Errorf("initial tracking = %s %q, want loading", st.Tracking, st.Message)
	}
}

func TestSetGesture_ClosingRevealsPhrase(t *testing.T) {
	ph := &fakePhraser{result: phrase.Result{Text: "Brillas más que la luna.", Source: phrase.SourceRemote}}
	chime := &fakeChime{}
	a := newTestApp(t, Config{Phrases: ph, Chime: chime})

	a.SetGesture(gesture.Closed)
	waitFor(t, "phrase", func() bool { return a.State().PhraseVisible })

	st := a.State()
	if st.Phrase != "Brillas más que la luna." || st.PhraseSource != phrase.SourceRemote {
		t.Errorf("phrase = %q (%s)", st.Phrase, st.PhraseSource)
	}
	if st.PhrasePending {
		t.Error("phrase should no longer be pending")
	}

	// Holding the fist does not ask again.
	a.SetGesture(gesture.Closed)
	a.SetGesture(gesture.Closed)
	if calls, _ := ph.counts(); calls != 1 {
		t.Errorf("phrase requested %d times, want 1", calls)
	}

	a.SetGesture(gesture.Open)
	st = a.State()
	if st.PhraseVisible {
		t.Error("phrase should hide when the hand opens")
	}
	if st.Phrase != "Brillas más que la luna." {
		t.Error("opening should keep the last phrase text")
	}

	chime.mu.Lock()
	defer chime.mu.Unlock()
	if chime.reveals != 1 || chime.disperse != 1 {
		t.Errorf("chime reveals=%d disperse=%d, want 1/1", chime.reveals, chime.disperse)
	}
}

func TestSetGesture_OpeningCancelsRequest(t *testing.T) {
	ph := &fakePhraser{block: true, release: make(chan phrase.Result)}
	a := newTestApp(t, Config{Phrases: ph})

	a.SetGesture(gesture.Closed)
	waitFor(t, "request", func() bool { c, _ := ph.counts(); return c == 1 })
	if !a.State().PhrasePending {
		t.Error("phrase should be pending while the request runs")
	}

	a.SetGesture(gesture.Open)
	waitFor(t, "cancellation", func() bool { _, c := ph.counts(); return c == 1 })

	st := a.State()
	if st.PhraseVisible || st.Phrase != "" || st.Reveals != 0 {
		t.Errorf("cancelled request leaked into state: %+v", st)
	}
}

func TestSetGesture_DropsStaleResult(t *testing.T) {
	release := make(chan phrase.Result)
	ph := &fakePhraser{block: true, release: release}
	a := newTestApp(t, Config{Phrases: ph})

	a.SetGesture(gesture.Closed)
	waitFor(t, "first request", func() bool { c, _ := ph.counts(); return c == 1 })

	// A new fist supersedes the first request.
	a.SetGesture(gesture.Open)
	waitFor(t, "first cancelled", func() bool { _, c := ph.counts(); return c == 1 })
	a.SetGesture(gesture.Closed)
	waitFor(t, "second request", func() bool { c, _ := ph.counts(); return c == 2 })

	release <- phrase.Result{Text: "segunda", Source: phrase.SourceRemote}
	waitFor(t, "second phrase", func() bool { return a.State().PhraseVisible })

	if got := a.State().Phrase; got != "segunda" {
		t.Errorf("phrase = %q, want segunda", got)
	}
}

func TestDeliverPhrase_IgnoresOldGeneration(t *testing.T) {
	a := newTestApp(t, Config{Phrases: &fakePhraser{}})
	a.gesture.Store(gesture.Closed)

	a.mu.Lock()
	a.phrase.generation = 5
	a.mu.Unlock()

	a.deliverPhrase(4, phrase.Result{Text: "vieja", Source: phrase.SourceRemote})
	if a.State().PhraseVisible {
		t.Error("old generation result should be dropped")
	}

	a.deliverPhrase(5, phrase.Result{Text: "nueva", Source: phrase.SourceRemote})
	if st := a.State(); !st.PhraseVisible || st.Phrase != "nueva" {
		t.Errorf("current generation result not shown: %+v", st)
	}
}

func TestStart_WithoutTracking(t *testing.T) {
	a := newTestApp(t, Config{Phrases: &fakePhraser{}})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st := a.State()
	if st.Tracking != TrackingUnavailable || st.Message != CameraErrorMessage {
		t.Errorf("tracking = %s %q", st.Tracking, st.Message)
	}
	if err := a.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestStart_CameraDenied(t *testing.T) {
	cam := capture.NewMockCamera(nil, true)
	denied := errors.New("permission denied")
	cam.SetOpenError(denied)
	det := detector.NewMockDetector()

	a := newTestApp(t, Config{Camera: cam, Detector: det, Phrases: &fakePhraser{}})

	if err := a.Start(); !errors.Is(err, denied) {
		t.Fatalf("Start() error = %v, want %v", err, denied)
	}

	st := a.State()
	if st.Tracking != TrackingCameraError {
		t.Errorf("Tracking = %s, want %s", st.Tracking, TrackingCameraError)
	}
	if st.Message != CameraErrorMessage {
		t.Errorf("Message = %q", st.Message)
	}
	if st.Gesture != gesture.Open {
		t.Errorf("Gesture = %s, want OPEN", st.Gesture)
	}

	// The field keeps animating without a camera.
	a.StartRenderLoop(200)
	waitFor(t, "frames", func() bool { return a.State().Frames > 5 })
}

func TestStop_Idempotent(t *testing.T) {
	cam := capture.NewMockCamera(nil, true)
	det := detector.NewMockDetector()
	a := New(Config{Settings: testSettings(), Camera: cam, Detector: det, Phrases: &fakePhraser{}})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	a.StartRenderLoop(120)

	a.Stop()
	a.Stop()

	if !det.Closed() {
		t.Error("detector should be closed")
	}
	if cam.IsOpen() || cam.Closes() != 1 {
		t.Errorf("camera open=%v closes=%d, want closed once", cam.IsOpen(), cam.Closes())
	}
	if err := a.Start(); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop error = %v, want ErrStopped", err)
	}

	frames := a.State().Frames
	time.Sleep(50 * time.Millisecond)
	if a.State().Frames != frames {
		t.Error("render loop still running after Stop")
	}
}

func TestStop_CancelsPendingPhrase(t *testing.T) {
	ph := &fakePhraser{block: true, release: make(chan phrase.Result)}
	a := New(Config{Settings: testSettings(), Phrases: ph})

	a.SetGesture(gesture.Closed)
	waitFor(t, "request", func() bool { c, _ := ph.counts(); return c == 1 })

	done := make(chan struct{})
	go func() {
		a.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on the pending phrase request")
	}
	if _, cancelled := ph.counts(); cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", cancelled)
	}
}

func TestSetEnabled(t *testing.T) {
	a := newTestApp(t, Config{Phrases: &fakePhraser{}})

	a.SetGesture(gesture.Closed)
	a.SetEnabled(false)

	if a.IsEnabled() {
		t.Error("IsEnabled() = true after disabling")
	}
	if a.Gesture() != gesture.Open {
		t.Error("disabling tracking should release the fist")
	}
	if a.State().Enabled {
		t.Error("state should report tracking disabled")
	}
}

func TestStep_FollowsGesture(t *testing.T) {
	a := newTestApp(t, Config{Phrases: &fakePhraser{}})
	f := a.Field()
	now := time.Unix(100, 0)

	a.SetGesture(gesture.Closed)
	for i := 0; i < 400; i++ {
		a.Step(now)
	}

	for i := 0; i < f.MaskLen(); i++ {
		if d := f.Position(i).Sub(f.Target(i)).Len(); d > 1e-6 {
			t.Fatalf("particle %d is %g from its letter", i, d)
		}
	}
}

func TestJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	ph := &fakePhraser{result: phrase.Result{Text: "Eres mi universo entero.", Source: phrase.SourceFallbackEmpty}}
	a := New(Config{Settings: testSettings(), Phrases: ph, Store: st})
	sessionID := a.State().SessionID
	if sessionID == "" {
		t.Fatal("journal session not started")
	}

	a.SetGesture(gesture.Closed)
	waitFor(t, "phrase", func() bool { return a.State().PhraseVisible })
	a.SetGesture(gesture.Open)
	a.SetEnabled(false)
	a.Stop()

	st, err = store.New(dbPath)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer st.Close()

	phrases, err := st.Phrases().List(0)
	if err != nil || len(phrases) != 1 {
		t.Fatalf("phrases = %v, %v; want 1", phrases, err)
	}
	if phrases[0].Source != string(phrase.SourceFallbackEmpty) || phrases[0].SessionID != sessionID {
		t.Errorf("journaled phrase = %+v", phrases[0])
	}

	events, _ := st.Events().ListBySession(sessionID)
	if len(events) != 2 || events[0].Gesture != "CLOSED" || events[1].Gesture != "OPEN" {
		t.Errorf("events = %+v", events)
	}

	sess, err := st.Sessions().GetByID(sessionID)
	if err != nil || sess.EndedAt == nil {
		t.Errorf("session not ended: %+v, %v", sess, err)
	}
	if st.Settings().Bool(trackingSetting, true) {
		t.Error("tracking toggle not persisted")
	}
}
