// Package chime plays the short synthesized cues that accompany the reveal.
package chime

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Notes of the reveal arpeggio (A major, rising) and the dispersal (falling).
var (
	RevealNotes   = []float64{440.00, 554.37, 659.25, 880.00}
	DisperseNotes = []float64{659.25, 554.37, 440.00}
)

// Player manages the speaker and plays cues through a mixer.
type Player struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	volume      float64
	initialized bool
}

// NewPlayer creates a Player. Nothing is played until Initialize succeeds.
func NewPlayer(volume float64) *Player {
	if volume <= 0 || volume > 1 {
		volume = 0.3
	}
	return &Player{mixer: &beep.Mixer{}, volume: volume}
}

// Initialize opens the audio device.
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(p.mixer)
	p.initialized = true
	return nil
}

// Close silences everything and releases the device.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	speaker.Lock()
	p.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	p.initialized = false
}

// Reveal plays the rising arpeggio.
func (p *Player) Reveal() {
	p.play(NewArpeggio(sampleRate, RevealNotes, 120*time.Millisecond, 900*time.Millisecond, p.volume))
}

// Disperse plays the falling arpeggio at half volume.
func (p *Player) Disperse() {
	p.play(NewArpeggio(sampleRate, DisperseNotes, 90*time.Millisecond, 600*time.Millisecond, p.volume/2))
}

func (p *Player) play(s beep.Streamer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	speaker.Lock()
	p.mixer.Add(s)
	speaker.Unlock()
}

// Arpeggio is a finite streamer of bell-like sine notes, each starting a
// fixed step after the previous and decaying exponentially.
type Arpeggio struct {
	sr     beep.SampleRate
	notes  []float64
	step   int
	ring   int
	volume float64
	pos    int
	total  int
}

// NewArpeggio builds an arpeggio of notes spaced step apart, each ringing for ring.
func NewArpeggio(sr beep.SampleRate, notes []float64, step, ring time.Duration, volume float64) *Arpeggio {
	a := &Arpeggio{
		sr:     sr,
		notes:  notes,
		step:   sr.N(step),
		ring:   sr.N(ring),
		volume: volume,
	}
	if len(notes) > 0 {
		a.total = a.step*(len(notes)-1) + a.ring
	}
	return a
}

// Len returns the length of the cue in samples.
func (a *Arpeggio) Len() int { return a.total }

func (a *Arpeggio) Stream(samples [][2]float64) (n int, ok bool) {
	if a.pos >= a.total {
		return 0, false
	}
	for i := range samples {
		if a.pos >= a.total {
			break
		}
		s := a.sample(a.pos)
		samples[i][0] = s
		samples[i][1] = s
		a.pos++
		n++
	}
	return n, true
}

func (a *Arpeggio) sample(pos int) float64 {
	var s float64
	for k, freq := range a.notes {
		local := pos - k*a.step
		if local < 0 || local >= a.ring {
			continue
		}
		t := float64(local) / float64(a.sr)
		env := math.Exp(-5 * float64(local) / float64(a.ring))
		// Short attack avoids a click at note onset.
		env *= math.Min(t/0.005, 1)
		s += env * (math.Sin(2*math.Pi*freq*t) + 0.3*math.Sin(4*math.Pi*freq*t))
	}
	return s * a.volume / 1.3 / math.Max(1, float64(len(a.notes))/2)
}

func (a *Arpeggio) Err() error { return nil }
