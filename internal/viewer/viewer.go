// Package viewer shows the universe in a desktop window.
package viewer

import (
	"image"
	"sync/atomic"
	"time"

	"github.com/ayusman/estelar/internal/app"
	"github.com/ayusman/estelar/internal/gesture"
	"github.com/ayusman/estelar/internal/render"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// WindowTitle is the title of the viewer window.
const WindowTitle = "Estelar"

// Game adapts an App to ebiten's game loop. The loop steps the field, so
// App.StartRenderLoop must not run alongside it.
type Game struct {
	app   *app.App
	scene *render.Scene
	now   func() time.Time

	width, height int
	// manual is true while Space stands in for a fist.
	manual bool
	// quit is set from signal handlers outside the game loop.
	quit atomic.Bool
}

// NewGame creates a game rendering a with the configured camera.
func NewGame(a *app.App) (*Game, error) {
	rc := a.Settings().Render
	scene, err := render.NewScene(render.Options{
		Width:     rc.Width,
		Height:    rc.Height,
		FOV:       rc.FOV,
		CameraZ:   rc.CameraZ,
		PointSize: rc.PointSize,
	})
	if err != nil {
		return nil, err
	}
	return &Game{
		app:    a,
		scene:  scene,
		now:    time.Now,
		width:  rc.Width,
		height: rc.Height,
	}, nil
}

// Update handles the keys and advances the field one frame.
func (g *Game) Update() error {
	if g.quit.Load() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		g.app.SetEnabled(!g.app.IsEnabled())
	}
	g.holdSpace(ebiten.IsKeyPressed(ebiten.KeySpace))

	g.app.Step(g.now())
	return nil
}

// holdSpace lets Space act as a fist when no camera drives the gesture.
func (g *Game) holdSpace(pressed bool) {
	if pressed == g.manual {
		return
	}
	if pressed && g.app.State().Tracking == app.TrackingActive {
		return
	}
	g.manual = pressed
	if pressed {
		g.app.SetGesture(gesture.Closed)
	} else {
		g.app.SetGesture(gesture.Open)
	}
}

// Draw renders the current frame onto screen.
func (g *Game) Draw(screen *ebiten.Image) {
	img := g.frame(screen.Bounds().Size())
	screen.WritePixels(img.Pix)
}

func (g *Game) frame(size image.Point) *image.RGBA {
	if w, h := g.scene.Size(); w != size.X || h != size.Y {
		g.scene.Resize(size.X, size.Y)
	}
	return g.scene.Render(g.app.Field(), g.app.State().Status(), g.now())
}

// Layout follows the window size so the projection keeps its aspect ratio.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 {
		g.width, g.height = outsideWidth, outsideHeight
		g.scene.Resize(outsideWidth, outsideHeight)
	}
	return g.width, g.height
}

// Quit ends the game loop on the next Update. It is safe to call from any goroutine.
func (g *Game) Quit() {
	g.quit.Store(true)
}

// Close releases the scene.
func (g *Game) Close() {
	g.scene.Close()
}

// Run opens the window and blocks until it is closed.
func Run(g *Game) error {
	ebiten.SetWindowTitle(WindowTitle)
	ebiten.SetWindowSize(g.width, g.height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(g.app.Settings().Render.FPS)
	return ebiten.RunGame(g)
}
