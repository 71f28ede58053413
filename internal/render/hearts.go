package render

import (
	"math/rand/v2"
	"time"
)

// Heart animation constants.
const (
	HeartCount    = 15
	HeartRise     = 100 // pixels over one cycle
	HeartMaxDelay = 5 * time.Second
	HeartMinLife  = 3 * time.Second
	HeartMaxLife  = 8 * time.Second
	heartPeak     = 0.8
	heartFadeIn   = 0.2
)

// Heart is one floating heart. X and Y are fractions of the viewport.
type Heart struct {
	X, Y     float64
	Delay    time.Duration
	Duration time.Duration
}

// HeartFrame is a heart at a given instant.
type HeartFrame struct {
	X, Y  float64 // pixels
	Scale float64
	Alpha float64
}

// Hearts is the decorative layer shown while the fist is closed. Every
// Show scatters a new set.
type Hearts struct {
	rng     *rand.Rand
	items   []Heart
	started time.Time
	visible bool
}

// NewHearts creates a hidden heart layer; rng may be nil.
func NewHearts(rng *rand.Rand) *Hearts {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Hearts{rng: rng}
}

// Show scatters HeartCount hearts starting at now. Calling Show while
// visible keeps the current set.
func (h *Hearts) Show(now time.Time) {
	if h.visible {
		return
	}
	h.items = h.items[:0]
	for i := 0; i < HeartCount; i++ {
		h.items = append(h.items, Heart{
			X:        h.rng.Float64(),
			Y:        h.rng.Float64(),
			Delay:    time.Duration(h.rng.Int64N(int64(HeartMaxDelay))),
			Duration: HeartMinLife + time.Duration(h.rng.Int64N(int64(HeartMaxLife-HeartMinLife))),
		})
	}
	h.started = now
	h.visible = true
}

func (h *Hearts) Hide() { h.visible = false }

func (h *Hearts) Visible() bool { return h.visible }

// Items returns the current heart set.
func (h *Hearts) Items() []Heart { return h.items }

// Frame returns the hearts that are on screen at now, in a width x height viewport.
func (h *Hearts) Frame(now time.Time, width, height int, dst []HeartFrame) []HeartFrame {
	dst = dst[:0]
	if !h.visible {
		return dst
	}
	for _, it := range h.items {
		t, ok := cycle(now.Sub(h.started), it)
		if !ok {
			continue
		}
		dst = append(dst, HeartFrame{
			X:     it.X * float64(width),
			Y:     it.Y*float64(height) - HeartRise*t,
			Scale: 1 + 0.5*t,
			Alpha: heartAlpha(t),
		})
	}
	return dst
}

// cycle returns the progress in [0, 1) of a looping heart, or false before its delay.
func cycle(elapsed time.Duration, it Heart) (float64, bool) {
	elapsed -= it.Delay
	if elapsed < 0 || it.Duration <= 0 {
		return 0, false
	}
	return float64(elapsed%it.Duration) / float64(it.Duration), true
}

func heartAlpha(t float64) float64 {
	if t < heartFadeIn {
		return heartPeak * t / heartFadeIn
	}
	return heartPeak * (1 - t) / (1 - heartFadeIn)
}
