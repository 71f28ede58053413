// Package app wires the gesture source, the particle field and the phrase
// service into one visual session.
package app

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ayusman/estelar/internal/capture"
	"github.com/ayusman/estelar/internal/config"
	"github.com/ayusman/estelar/internal/detector"
	"github.com/ayusman/estelar/internal/field"
	"github.com/ayusman/estelar/internal/gesture"
	"github.com/ayusman/estelar/internal/phrase"
	"github.com/ayusman/estelar/internal/store"
	"github.com/ayusman/estelar/internal/textmask"
)

// Pipeline timing constants.
const (
	// IdleFPS is the camera rate while nothing moves.
	IdleFPS = 5
	// ActiveFPS is the camera rate while hands are being tracked.
	ActiveFPS = 15
	// IdleTimeout is how long without motion before dropping back to IdleFPS.
	IdleTimeout = 2 * time.Second
)

// Messages shown in place of tracking.
const (
	CameraErrorMessage = "Por favor permite el acceso a la cámara para interactuar con el universo."
	LoadingMessage     = "Cargando tracking..."
)

// ErrAlreadyStarted is returned by Start on a running app.
var ErrAlreadyStarted = errors.New("app already started")

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("app stopped")

// Phraser produces the phrase for a reveal. *phrase.Service implements it.
type Phraser interface {
	Phrase(ctx context.Context) phrase.Result
}

// Chime plays audio cues on gesture edges.
type Chime interface {
	Reveal()
	Disperse()
}

// Config holds the collaborators of an App. Nil collaborators are built from
// Settings, except Store and Chime which stay disabled.
type Config struct {
	Settings *config.Config
	Camera   capture.Camera
	Detector detector.Detector
	Phrases  Phraser
	Store    *store.Store
	Chime    Chime
	Rand     *rand.Rand
}

// App owns one visual session.
type App struct {
	config     Config
	settings   *config.Config
	camera     capture.Camera
	motion     *capture.MotionDetector
	detector   detector.Detector
	classifier *detector.Classifier
	field      *field.Field
	phrases    Phraser

	gesture gesture.Cell

	mu        sync.RWMutex
	tracking  Tracking
	enabled   bool
	hands     int
	preview   []byte
	session   *store.Session
	started   bool
	stopped   bool
	rendering bool

	phrase phraseState

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds the field and the gesture source. It does not touch the camera.
func New(cfg Config) *App {
	settings := cfg.Settings
	if settings == nil {
		settings = config.DefaultConfig()
	}

	opts := textmask.Options{
		Width:     settings.Text.Width,
		Height:    settings.Text.Height,
		FontSize:  settings.Text.FontSize,
		Stride:    settings.Text.Stride,
		Scale:     settings.Text.Scale,
		Threshold: settings.Text.Threshold,
	}
	mask := textmask.Generate(settings.Text.Text, opts)

	rng := cfg.Rand
	if rng == nil && settings.Field.Seed != 0 {
		rng = rand.New(rand.NewPCG(settings.Field.Seed, settings.Field.Seed))
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:     cfg,
		settings:   settings,
		camera:     cfg.Camera,
		detector:   cfg.Detector,
		motion:     capture.NewMotionDetector(settings.Camera.MotionThreshold),
		classifier: detector.NewClassifier(settings.Detector.FistThreshold),
		field:      field.New(settings.Field.Particles, mask, field.Options{Rand: rng}),
		phrases:    cfg.Phrases,
		tracking:   TrackingLoading,
		enabled:    true,
		ctx:        ctx,
		cancel:     cancel,
	}
	log.Printf("Field ready: %d particles, %d text points", a.field.Len(), a.field.MaskLen())

	if a.camera == nil && !settings.Camera.Disabled {
		a.camera = capture.NewCamera(capture.Config{
			DeviceID: settings.Camera.DeviceID,
			Width:    settings.Camera.Width,
			Height:   settings.Camera.Height,
		})
	}

	if a.detector == nil && !settings.Camera.Disabled {
		mp, err := detector.NewMediaPipeDetector(detector.Config{
			MaxHands:        settings.Detector.MaxHands,
			MinConfidence:   settings.Detector.MinConfidence,
			MinTrackingConf: settings.Detector.MinTrackingConf,
		})
		if err != nil {
			log.Printf("MediaPipe not available (%v), hand tracking disabled", err)
		} else {
			a.detector = mp
			log.Println("Using MediaPipe hand detection")
		}
	}

	if a.phrases == nil {
		a.phrases = phrase.New(ctx, settings.Phrase.ServiceConfig())
	}

	if cfg.Store != nil {
		settingsRepo := cfg.Store.Settings()
		a.enabled = settingsRepo.Bool(trackingSetting, true)
		sess, err := cfg.Store.Sessions().Start(a.field.Len(), a.field.MaskLen())
		if err != nil {
			log.Printf("Failed to start journal session: %v", err)
		} else {
			a.session = sess
		}
	}

	return a
}

const trackingSetting = "tracking_enabled"

// Start opens the camera and starts the detection loop. A camera that
// cannot be opened is reported in the state and returned; the field keeps
// running with the gesture held OPEN.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return ErrStopped
	}
	if a.started {
		return ErrAlreadyStarted
	}
	a.started = true

	if a.camera == nil || a.detector == nil {
		a.tracking = TrackingUnavailable
		log.Println("Hand tracking unavailable; gesture stays OPEN")
		return nil
	}

	if err := a.camera.Open(); err != nil {
		a.tracking = TrackingCameraError
		log.Printf("Camera error: %v", err)
		return err
	}
	a.camera.SetFPS(IdleFPS)
	a.tracking = TrackingActive

	a.stopCh = make(chan struct{})
	a.wg.Add(1)
	go a.runPipeline(a.stopCh)

	log.Println("Detection pipeline started")
	return nil
}

// StartRenderLoop steps the field at fps on its own goroutine. The window
// viewer does not use it and calls Step from its game loop instead.
func (a *App) StartRenderLoop(fps int) {
	if fps <= 0 {
		fps = config.DefaultFPS
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped || a.rendering {
		return
	}
	a.rendering = true

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()
		for {
			select {
			case <-a.ctx.Done():
				return
			case now := <-ticker.C:
				a.Step(now)
			}
		}
	}()
}

// Step advances the field one frame under the current gesture.
func (a *App) Step(now time.Time) {
	a.field.Step(a.gesture.Load(), now)
}

// Stop tears the session down: detection loop, camera, detector helper,
// render loop, pending phrase request and journal. Safe to call twice.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()

	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}
	}
	a.motion.Close()
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	if st := a.config.Store; st != nil {
		if a.session != nil {
			if err := st.Sessions().End(a.session.ID); err != nil {
				log.Printf("Failed to end journal session: %v", err)
			}
		}
		if err := st.Close(); err != nil {
			log.Printf("Error closing journal: %v", err)
		}
	}

	log.Println("Session stopped")
}

// SetEnabled turns hand tracking on or off. Disabling releases the fist.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	if st := a.config.Store; st != nil {
		if err := st.Settings().SetBool(trackingSetting, enabled); err != nil {
			log.Printf("Failed to save tracking setting: %v", err)
		}
	}
	if !enabled {
		a.SetGesture(gesture.Open)
	}
}

// IsEnabled reports whether hand tracking is on.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Gesture returns the current gesture.
func (a *App) Gesture() gesture.State {
	return a.gesture.Load()
}

// SetGesture publishes g and reacts to the edge it crosses. It is called by
// the detection loop; tests and the tray call it directly.
func (a *App) SetGesture(g gesture.State) {
	prev := a.gesture.Store(g)
	edge := gesture.EdgeBetween(prev, g)
	if edge == gesture.NoEdge {
		return
	}

	log.Printf("Gesture %s", g)
	a.journalEvent(g)

	switch edge {
	case gesture.Closing:
		a.requestPhrase()
		if a.config.Chime != nil {
			a.config.Chime.Reveal()
		}
	case gesture.Opening:
		a.dismissPhrase()
		if a.config.Chime != nil {
			a.config.Chime.Disperse()
		}
	}
}

// Field returns the particle field.
func (a *App) Field() *field.Field {
	return a.field
}

// Settings returns the configuration the app was built with.
func (a *App) Settings() *config.Config {
	return a.settings
}

// Store returns the journal, or nil when journaling is off.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// CameraPreview returns the latest camera frame as JPEG, or nil.
func (a *App) CameraPreview() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.preview
}

func (a *App) journalEvent(g gesture.State) {
	st := a.config.Store
	if st == nil || a.session == nil {
		return
	}
	if err := st.Events().Record(a.session.ID, g.String()); err != nil {
		log.Printf("Failed to journal gesture: %v", err)
	}
}
