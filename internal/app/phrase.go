package app

import (
	"context"
	"log"

	"github.com/ayusman/estelar/internal/gesture"
	"github.com/ayusman/estelar/internal/phrase"
	"github.com/ayusman/estelar/internal/store"
)

// phraseState tracks the current phrase and the request in flight.
// Guarded by App.mu.
type phraseState struct {
	current    phrase.Result
	visible    bool
	pending    bool
	generation uint64
	cancel     context.CancelFunc
	reveals    int
}

// requestPhrase starts one phrase request for the fist that just closed.
func (a *App) requestPhrase() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	if a.phrase.cancel != nil {
		a.phrase.cancel()
	}
	a.phrase.generation++
	gen := a.phrase.generation
	ctx, cancel := context.WithCancel(a.ctx)
	a.phrase.cancel = cancel
	a.phrase.pending = true
	a.phrase.visible = false
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		defer cancel()

		res := a.phrases.Phrase(ctx)
		a.deliverPhrase(gen, res)
	}()
}

// deliverPhrase publishes res unless a later edge has superseded its request.
func (a *App) deliverPhrase(gen uint64, res phrase.Result) {
	a.mu.Lock()
	if gen != a.phrase.generation || a.gesture.Load() != gesture.Closed {
		a.mu.Unlock()
		log.Printf("Discarding stale phrase %q", res.Text)
		return
	}
	a.phrase.current = res
	a.phrase.visible = true
	a.phrase.pending = false
	a.phrase.cancel = nil
	a.phrase.reveals++
	a.mu.Unlock()

	log.Printf("Phrase (%s): %s", res.Source, res.Text)

	if st := a.config.Store; st != nil && a.session != nil {
		p := &store.Phrase{SessionID: a.session.ID, Text: res.Text, Source: string(res.Source)}
		if err := st.Phrases().Create(p); err != nil {
			log.Printf("Failed to journal phrase: %v", err)
		}
	}
}

// dismissPhrase hides the phrase and abandons any request in flight.
func (a *App) dismissPhrase() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.phrase.generation++
	a.phrase.visible = false
	a.phrase.pending = false
	if a.phrase.cancel != nil {
		a.phrase.cancel()
		a.phrase.cancel = nil
	}
}
