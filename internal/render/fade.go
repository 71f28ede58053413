package render

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Fade durations in seconds.
const (
	InstructionsFade = 1.0
	PhraseFade       = 0.7
)

// Fader eases a value toward a target, restarting whenever the target changes.
type Fader struct {
	value    float32
	target   float32
	duration float32
	tween    *gween.Tween
}

// NewFader starts at value and takes duration seconds per transition.
func NewFader(value, duration float32) *Fader {
	return &Fader{value: value, target: value, duration: duration}
}

// Set changes the target. A no-op when the target is unchanged.
func (f *Fader) Set(target float32) {
	if target == f.target {
		return
	}
	f.target = target
	f.tween = gween.New(f.value, target, f.duration, ease.OutQuad)
}

// Update advances by dt seconds and returns the current value.
func (f *Fader) Update(dt float32) float32 {
	if f.tween == nil {
		return f.value
	}
	v, done := f.tween.Update(dt)
	f.value = v
	if done {
		f.value = f.target
		f.tween = nil
	}
	return f.value
}

func (f *Fader) Value() float32 { return f.value }

func (f *Fader) Target() float32 { return f.target }
