package render

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ayusman/estelar/internal/field"
	"github.com/ayusman/estelar/internal/gesture"
)

// Status is what the overlays react to.
type Status struct {
	Gesture       gesture.State
	Phrase        string
	PhraseVisible bool
	// Notice is a one-line message such as a camera error or loading hint.
	Notice string
}

// Options configures a Scene.
type Options struct {
	Width     int
	Height    int
	FOV       float64
	CameraZ   float64
	PointSize float64
	Rand      *rand.Rand
}

// Scene composes the field, hearts and text overlays into one frame.
type Scene struct {
	mu           sync.Mutex
	points       *Points
	overlay      *Overlay
	hearts       *Hearts
	instructions *Fader
	phrase       *Fader
	img          *image.RGBA
	heartBuf     []HeartFrame
	last         time.Time
}

// NewScene creates a scene for a Width x Height viewport.
func NewScene(opts Options) (*Scene, error) {
	overlay, err := NewOverlay(opts.Height)
	if err != nil {
		return nil, err
	}
	return &Scene{
		points:       NewPoints(NewCamera(opts.FOV, opts.CameraZ, opts.Width, opts.Height), opts.PointSize),
		overlay:      overlay,
		hearts:       NewHearts(opts.Rand),
		instructions: NewFader(1, InstructionsFade),
		phrase:       NewFader(0, PhraseFade),
		img:          image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}, nil
}

// Resize changes the output size. Fonts keep the size they were created with.
func (s *Scene) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if b := s.img.Bounds(); b.Dx() == width && b.Dy() == height {
		return
	}
	s.points.Camera.Resize(width, height)
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Size returns the output size.
func (s *Scene) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Update advances the fades and the heart layer to now.
func (s *Scene) Update(st Status, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update(st, now)
}

func (s *Scene) update(st Status, now time.Time) {
	var dt float32
	if !s.last.IsZero() {
		dt = float32(now.Sub(s.last).Seconds())
	}
	s.last = now

	if st.Gesture == gesture.Closed {
		s.instructions.Set(0)
		s.hearts.Show(now)
	} else {
		s.instructions.Set(1)
		s.hearts.Hide()
	}
	if st.PhraseVisible {
		s.phrase.Set(1)
	} else {
		s.phrase.Set(0)
	}
	s.instructions.Update(dt)
	s.phrase.Update(dt)
}

// Render updates the scene and draws a full frame. The returned image is
// reused by the next Render call.
func (s *Scene) Render(f *field.Field, st Status, now time.Time) *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.update(st, now)

	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	if f != nil {
		s.points.DrawField(s.img, f)
	}

	b := s.img.Bounds()
	s.heartBuf = s.hearts.Frame(now, b.Dx(), b.Dy(), s.heartBuf)
	s.overlay.DrawHearts(s.img, s.heartBuf)
	s.overlay.DrawInstructions(s.img, float64(s.instructions.Value()))
	s.overlay.DrawPhrase(s.img, st.Phrase, float64(s.phrase.Value()))
	s.overlay.DrawNotice(s.img, st.Notice)
	return s.img
}

// Alphas returns the instruction and phrase opacities.
func (s *Scene) Alphas() (instructions, phrase float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instructions.Value(), s.phrase.Value()
}

// Close releases font resources.
func (s *Scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.Close()
}
