// Package field holds the particle starfield and advances it toward either
// its free-floating origins or the text-shape targets.
package field

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ayusman/estelar/internal/gesture"
	"github.com/ayusman/estelar/internal/textmask"
)

// Motion constants.
const (
	// BlendClosed is the fraction of the remaining distance covered per frame while the fist is closed.
	BlendClosed = 0.08
	// BlendOpen is the fraction covered per frame while the hand is open.
	BlendOpen = 0.03
	// RotationDecay pulls both rotation axes toward zero while closed.
	RotationDecay = 0.05
	// SpinY is added to the Y rotation every frame.
	SpinY = 0.0005
	// TiltX is added to the X rotation every frame while open.
	TiltX = 0.0002
	// DriftAmplitude scales the per-frame origin wobble while open.
	DriftAmplitude = 0.002
	// DriftRate converts wall-clock milliseconds into drift phase.
	DriftRate = 0.001

	// OriginExtent is the side of the cube initial positions are drawn from.
	OriginExtent = 60
	// BackgroundExtent is the X/Y side of the volume unmatched particles settle in.
	BackgroundExtent = 80
	// BackgroundDepth is the depth every background target lies strictly below.
	BackgroundDepth = -29
	// TextJitter is the depth spread of letter targets.
	TextJitter = 0.5
)

// Vec3 is a point in field space.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v minus o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Len returns the Euclidean length of v.
func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Color is a linear RGB triple in [0, 1].
type Color struct {
	R, G, B float32
}

// Vertex is a rendered particle: its current position and color.
type Vertex struct {
	Pos   Vec3
	Color Color
}

// Rotation is the field orientation in radians.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Options configures field construction.
type Options struct {
	// Rand supplies all randomness. Nil seeds a fresh generator.
	Rand *rand.Rand
}

// Field is a fixed-size particle set stored as parallel slices.
// Step is expected to be called by a single render loop; readers may run
// concurrently.
type Field struct {
	mu       sync.RWMutex
	rng      *rand.Rand
	current  []Vec3
	origin   []Vec3
	target   []Vec3
	colors   []Color
	maskLen  int
	rotation Rotation
	frames   uint64
}

// New builds a field of n particles. The first min(n, len(mask)) particles
// take the mask points as targets; the rest drift behind the text.
func New(n int, mask []textmask.Point, opts Options) *Field {
	if n < 0 {
		n = 0
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	f := &Field{
		rng:     rng,
		current: make([]Vec3, n),
		origin:  make([]Vec3, n),
		target:  make([]Vec3, n),
		colors:  make([]Color, n),
		maskLen: min(n, len(mask)),
	}

	for i := 0; i < n; i++ {
		p := Vec3{
			X: f.centered(OriginExtent),
			Y: f.centered(OriginExtent),
			Z: f.centered(OriginExtent),
		}
		f.current[i] = p
		f.origin[i] = p

		if i < f.maskLen {
			f.target[i] = Vec3{X: mask[i].X, Y: mask[i].Y, Z: f.centered(TextJitter)}
		} else {
			f.target[i] = Vec3{
				X: f.centered(BackgroundExtent),
				Y: f.centered(BackgroundExtent),
				Z: -30 - rng.Float64()*20,
			}
		}

		f.colors[i] = Color{
			R: 0.8 + rng.Float32()*0.2,
			G: 0.8 + rng.Float32()*0.2,
			B: 0.9 + rng.Float32()*0.1,
		}
	}
	return f
}

// centered returns a uniform sample in [-extent/2, extent/2).
func (f *Field) centered(extent float64) float64 {
	return (f.rng.Float64() - 0.5) * extent
}

// BlendFactor returns the per-frame interpolation fraction for g.
func BlendFactor(g gesture.State) float64 {
	if g == gesture.Closed {
		return BlendClosed
	}
	return BlendOpen
}

// Step advances every particle one frame under gesture g. now keys the
// ambient drift of the origins while open. The blend is per frame, not per
// second, so convergence speed follows the frame rate.
func (f *Field) Step(g gesture.State, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	blend := BlendFactor(g)
	closed := g == gesture.Closed
	phase := float64(now.UnixMilli()) * DriftRate

	for i := range f.current {
		dest := f.origin[i]
		if closed {
			dest = f.target[i]
		}

		c := &f.current[i]
		c.X += (dest.X - c.X) * blend
		c.Y += (dest.Y - c.Y) * blend
		c.Z += (dest.Z - c.Z) * blend

		if !closed {
			o := &f.origin[i]
			o.X += math.Sin(phase+float64(i)) * DriftAmplitude
			o.Y += math.Cos(phase+float64(i)) * DriftAmplitude
		}
	}

	f.rotation.Y += SpinY
	if closed {
		f.rotation.X += (0 - f.rotation.X) * RotationDecay
		f.rotation.Y += (0 - f.rotation.Y) * RotationDecay
	} else {
		f.rotation.X += TiltX
	}
	f.frames++
}

// Len returns the particle count.
func (f *Field) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.current)
}

// MaskLen returns how many particles carry a text-shape target.
func (f *Field) MaskLen() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.maskLen
}

// Frames returns the number of completed Step calls.
func (f *Field) Frames() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frames
}

// Rotation returns the accumulated field rotation.
func (f *Field) Rotation() Rotation {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rotation
}

// Position returns the current position of particle i.
func (f *Field) Position(i int) Vec3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current[i]
}

// Origin returns the free-floating home particle i returns to while the hand is open.
func (f *Field) Origin(i int) Vec3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.origin[i]
}

// Target returns the point particle i moves toward while the hand is closed.
func (f *Field) Target(i int) Vec3 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.target[i]
}

// Color returns the color of particle i.
func (f *Field) Color(i int) Color {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.colors[i]
}

// Snapshot copies current positions and colors into dst, growing it as
// needed, and returns the filled slice along with the rotation at that instant.
func (f *Field) Snapshot(dst []Vertex) ([]Vertex, Rotation) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if cap(dst) < len(f.current) {
		dst = make([]Vertex, len(f.current))
	}
	dst = dst[:len(f.current)]
	for i := range f.current {
		dst[i] = Vertex{Pos: f.current[i], Color: f.colors[i]}
	}
	return dst, f.rotation
}
