package render

import (
	"image"
	"math"

	"github.com/ayusman/estelar/internal/field"
)

// Opacity is the alpha each particle contributes under additive blending.
const Opacity = 0.8

// Points rasterizes particles with additive blending.
type Points struct {
	Camera Camera
	Size   float64

	verts []field.Vertex
}

// NewPoints creates a point rasterizer.
func NewPoints(cam Camera, size float64) *Points {
	return &Points{Camera: cam, Size: size}
}

// DrawField snapshots f and draws it into dst.
func (p *Points) DrawField(dst *image.RGBA, f *field.Field) {
	var rot field.Rotation
	p.verts, rot = f.Snapshot(p.verts)
	p.Draw(dst, p.verts, rot)
}

// Draw adds every vertex to dst. Points never occlude each other.
func (p *Points) Draw(dst *image.RGBA, verts []field.Vertex, rot field.Rotation) {
	b := dst.Bounds()
	for _, v := range verts {
		sx, sy, depth, ok := p.Camera.Project(Rotate(v.Pos, rot))
		if !ok {
			continue
		}

		d := p.Camera.PointSize(p.Size, depth)
		r := uint32(float64(v.Color.R) * Opacity * 255)
		g := uint32(float64(v.Color.G) * Opacity * 255)
		bl := uint32(float64(v.Color.B) * Opacity * 255)

		// Sub-pixel points keep their energy by fading instead of vanishing.
		if d < 1 {
			scale := math.Max(d, 0.25)
			r, g, bl = uint32(float64(r)*scale), uint32(float64(g)*scale), uint32(float64(bl)*scale)
			d = 1
		}

		half := d / 2
		x0, x1 := int(math.Floor(sx-half)), int(math.Ceil(sx+half))
		y0, y1 := int(math.Floor(sy-half)), int(math.Ceil(sy+half))
		for y := max(y0, b.Min.Y); y < min(y1, b.Max.Y); y++ {
			for x := max(x0, b.Min.X); x < min(x1, b.Max.X); x++ {
				addPixel(dst, x, y, r, g, bl)
			}
		}
	}
}

func addPixel(dst *image.RGBA, x, y int, r, g, b uint32) {
	i := dst.PixOffset(x, y)
	px := dst.Pix[i : i+4 : i+4]
	px[0] = clampAdd(px[0], r)
	px[1] = clampAdd(px[1], g)
	px[2] = clampAdd(px[2], b)
	px[3] = 255
}

func clampAdd(a uint8, b uint32) uint8 {
	s := uint32(a) + b
	if s > 255 {
		return 255
	}
	return uint8(s)
}
