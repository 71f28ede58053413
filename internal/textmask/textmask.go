// Package textmask turns a short string into the 2D point set the particle
// field uses as letter targets.
package textmask

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Point is a mask sample in field units, centered on the origin with Y up.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Options controls rasterization and sampling.
type Options struct {
	Width     int
	Height    int
	FontSize  float64
	Stride    float64
	Scale     float64
	Threshold uint8
	// Font is a TrueType/OpenType file; nil selects Go Bold.
	Font []byte
}

// DefaultOptions returns a 400x100 canvas, 80px bold text, a 1.5 sampling
// stride and 20 pixels per field unit.
func DefaultOptions() Options {
	return Options{
		Width:     400,
		Height:    100,
		FontSize:  80,
		Stride:    1.5,
		Scale:     20,
		Threshold: 128,
	}
}

var errEmptyCanvas = errors.New("empty canvas")

// Generate rasterizes text and returns the lit samples in row-major order.
// Failures are logged and yield an empty mask.
func Generate(text string, opts Options) []Point {
	img, err := Rasterize(text, opts)
	if err != nil {
		log.Printf("text mask %q: %v", text, err)
		return nil
	}
	return Sample(img, opts)
}

// Rasterize draws text in white on black, centered on the canvas.
func Rasterize(text string, opts Options) (*image.RGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errEmptyCanvas
	}

	face, err := newFace(opts)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	width := font.MeasureString(face, text)
	m := face.Metrics()
	// Baseline sits so the em box is vertically centered.
	baseline := fixed.I(opts.Height/2) + (m.Ascent-m.Descent)/2

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(opts.Width/2) - width/2, Y: baseline},
	}
	d.DrawString(text)
	return img, nil
}

// Sample walks img on the stride grid and converts every sample whose red
// channel exceeds the threshold into a Point.
func Sample(img *image.RGBA, opts Options) []Point {
	if img == nil || opts.Stride <= 0 || opts.Scale <= 0 {
		return nil
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	var points []Point
	for y := 0.0; y < h; y += opts.Stride {
		for x := 0.0; x < w; x += opts.Stride {
			px := b.Min.X + int(math.Floor(x))
			py := b.Min.Y + int(math.Floor(y))
			if img.RGBAAt(px, py).R <= opts.Threshold {
				continue
			}
			points = append(points, Point{
				X: (x - w/2) / opts.Scale,
				Y: (h/2 - y) / opts.Scale,
			})
		}
	}
	return points
}

func newFace(opts Options) (font.Face, error) {
	data := opts.Font
	if data == nil {
		data = gobold.TTF
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    opts.FontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return face, nil
}

// Bounds returns the extent of the field-space rectangle a mask from opts can cover.
func Bounds(opts Options) (halfW, halfH float64) {
	if opts.Scale <= 0 {
		return 0, 0
	}
	return float64(opts.Width) / 2 / opts.Scale, float64(opts.Height) / 2 / opts.Scale
}
