// Package tray provides the system tray menu for Estelar.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// maxPhraseTitle caps the length of the last-phrase menu entry.
const maxPhraseTitle = 40

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onOpen   func()
	onQuit   func()
	enabled  bool
	phrase   string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle     *systray.MenuItem
	menuLastPhrase *systray.MenuItem
}

// New creates a new Tray with tracking shown as enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback run when tracking is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback run by "Open Universe...".
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback run by "Quit".
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Estelar")
	systray.SetTooltip("Estelar")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle hand tracking")
	systray.AddSeparator()

	t.menuLastPhrase = systray.AddMenuItem(phraseTitle(t.phrase), "Last revealed phrase")
	t.menuLastPhrase.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Universe...", "Open the universe in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Estelar")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the tracking state and notifies the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetEnabled mirrors a tracking change made elsewhere, without calling OnToggle.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetLastPhrase updates the last phrase display in the menu.
func (t *Tray) SetLastPhrase(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if text == t.phrase {
		return
	}
	t.phrase = text
	if t.menuLastPhrase != nil {
		t.menuLastPhrase.SetTitle(phraseTitle(text))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastPhrase returns the phrase shown in the menu.
func (t *Tray) LastPhrase() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phrase
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Tracking paused"
}

func phraseTitle(text string) string {
	if text == "" {
		return "Last: none"
	}
	r := []rune(text)
	if len(r) > maxPhraseTitle {
		text = string(r[:maxPhraseTitle-1]) + "…"
	}
	return "Last: " + text
}
