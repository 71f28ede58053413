package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Overlay copy.
const (
	Title     = "ESTELAR"
	HintLine1 = "El universo guarda un secreto para ti."
	HintLine2 = "Muestra tu mano y ciérrala para revelarlo."
)

var (
	titleColor  = color.NRGBA{R: 255, G: 255, B: 255, A: 230}
	hintColor   = color.NRGBA{R: 251, G: 207, B: 232, A: 178}
	phraseColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	noticeColor = color.NRGBA{R: 255, G: 255, B: 255, A: 160}
	heartColor  = color.NRGBA{R: 236, G: 72, B: 153, A: 77}
)

// Overlay draws the text layers and hearts.
type Overlay struct {
	title  font.Face
	hint   font.Face
	phrase font.Face
	notice font.Face
}

// NewOverlay loads the Go fonts at sizes suited to a viewport of the given height.
func NewOverlay(height int) (*Overlay, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	italic, err := opentype.Parse(goitalic.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse italic font: %w", err)
	}

	unit := math.Max(float64(height)/540, 0.5)
	face := func(f *opentype.Font, size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size * unit,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}

	o := &Overlay{}
	if o.title, err = face(regular, 44); err != nil {
		return nil, err
	}
	if o.hint, err = face(regular, 16); err != nil {
		return nil, err
	}
	if o.phrase, err = face(italic, 28); err != nil {
		return nil, err
	}
	if o.notice, err = face(regular, 13); err != nil {
		return nil, err
	}
	return o, nil
}

// Close releases the font faces.
func (o *Overlay) Close() {
	for _, f := range []font.Face{o.title, o.hint, o.phrase, o.notice} {
		if f != nil {
			f.Close()
		}
	}
}

// DrawInstructions draws the title and hint centered on dst at the given opacity.
func (o *Overlay) DrawInstructions(dst *image.RGBA, alpha float64) {
	if alpha <= 0 {
		return
	}
	b := dst.Bounds()
	cx, cy := b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2

	lh := o.hint.Metrics().Height.Ceil()
	drawCentered(dst, o.title, Title, cx, cy-lh, withAlpha(titleColor, alpha))
	drawCentered(dst, o.hint, HintLine1, cx, cy+lh, withAlpha(hintColor, alpha))
	drawCentered(dst, o.hint, HintLine2, cx, cy+2*lh+lh/4, withAlpha(hintColor, alpha))
}

// DrawPhrase draws text near the bottom, sliding up as it fades in.
func (o *Overlay) DrawPhrase(dst *image.RGBA, text string, alpha float64) {
	if alpha <= 0 || text == "" {
		return
	}
	b := dst.Bounds()
	y := b.Max.Y - b.Dy()/6 + int((1-alpha)*40)
	drawCentered(dst, o.phrase, text, b.Min.X+b.Dx()/2, y, withAlpha(phraseColor, alpha))
}

// DrawNotice draws a status line at the top-left.
func (o *Overlay) DrawNotice(dst *image.RGBA, text string) {
	if text == "" {
		return
	}
	b := dst.Bounds()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(noticeColor),
		Face: o.notice,
		Dot:  fixed.P(b.Min.X+16, b.Min.Y+16+o.notice.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// DrawHearts draws each heart as a filled heart curve.
func (o *Overlay) DrawHearts(dst *image.RGBA, hearts []HeartFrame) {
	for _, h := range hearts {
		fillHeart(dst, h.X, h.Y, 12*h.Scale, withAlpha(heartColor, h.Alpha))
	}
}

func drawCentered(dst *image.RGBA, face font.Face, text string, cx, baselineY int, c color.Color) {
	w := font.MeasureString(face, text)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(cx) - w/2, Y: fixed.I(baselineY)},
	}
	d.DrawString(text)
}

func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * math.Min(math.Max(alpha, 0), 1)))
	return c
}

// fillHeart blends a heart of half-width r centered at (cx, cy) into dst,
// using the curve (x²+y²-1)³ - x²y³ <= 0.
func fillHeart(dst *image.RGBA, cx, cy, r float64, c color.NRGBA) {
	if c.A == 0 || r <= 0 {
		return
	}
	b := dst.Bounds()
	a := uint32(c.A)
	x0, x1 := int(cx-r*1.3), int(cx+r*1.3)+1
	y0, y1 := int(cy-r*1.3), int(cy+r*1.3)+1
	for py := max(y0, b.Min.Y); py < min(y1, b.Max.Y); py++ {
		y := -(float64(py) - cy) / r
		for px := max(x0, b.Min.X); px < min(x1, b.Max.X); px++ {
			x := (float64(px) - cx) / r
			q := x*x + y*y - 1
			if q*q*q-x*x*y*y*y > 0 {
				continue
			}
			i := dst.PixOffset(px, py)
			p := dst.Pix[i : i+4 : i+4]
			p[0] = uint8((uint32(c.R)*a + uint32(p[0])*(255-a)) / 255)
			p[1] = uint8((uint32(c.G)*a + uint32(p[1])*(255-a)) / 255)
			p[2] = uint8((uint32(c.B)*a + uint32(p[2])*(255-a)) / 255)
		}
	}
}
