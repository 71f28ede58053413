// Package render draws the particle field and its overlays into an RGBA frame.
package render

import (
	"math"

	"github.com/ayusman/estelar/internal/field"
)

// Camera is a perspective camera on the +Z axis looking at the origin.
type Camera struct {
	FOV    float64 // vertical field of view in degrees
	Z      float64
	Near   float64
	Far    float64
	Width  int
	Height int

	focal float64
}

// NewCamera returns a camera with the given vertical FOV, distance and viewport.
func NewCamera(fov, z float64, width, height int) Camera {
	c := Camera{FOV: fov, Z: z, Near: 0.1, Far: 1000, Width: width, Height: height}
	c.update()
	return c
}

func (c *Camera) update() {
	c.focal = 1 / math.Tan(c.FOV*math.Pi/360)
}

// Resize changes the viewport; the aspect ratio follows.
func (c *Camera) Resize(width, height int) {
	c.Width, c.Height = width, height
	c.update()
}

// Aspect returns width/height.
func (c Camera) Aspect() float64 {
	if c.Height == 0 {
		return 1
	}
	return float64(c.Width) / float64(c.Height)
}

// Rotate applies the field rotation: Y first, then X.
func Rotate(p field.Vec3, r field.Rotation) field.Vec3 {
	sy, cy := math.Sincos(r.Y)
	x := p.X*cy + p.Z*sy
	z := -p.X*sy + p.Z*cy

	sx, cx := math.Sincos(r.X)
	y := p.Y*cx - z*sx
	z = p.Y*sx + z*cx

	return field.Vec3{X: x, Y: y, Z: z}
}

// Project maps a rotated field point to screen pixels. depth is the distance
// in front of the camera; ok is false when the point is clipped.
func (c Camera) Project(p field.Vec3) (sx, sy, depth float64, ok bool) {
	depth = c.Z - p.Z
	if depth < c.Near || depth > c.Far {
		return 0, 0, depth, false
	}

	ndcX := c.focal / c.Aspect() * p.X / depth
	ndcY := c.focal * p.Y / depth
	if ndcX < -1 || ndcX > 1 || ndcY < -1 || ndcY > 1 {
		return 0, 0, depth, false
	}

	sx = (ndcX + 1) / 2 * float64(c.Width)
	sy = (1 - ndcY) / 2 * float64(c.Height)
	return sx, sy, depth, true
}

// PointSize returns the attenuated on-screen diameter of a point of world
// size size at the given depth.
func (c Camera) PointSize(size, depth float64) float64 {
	if depth <= 0 {
		return 0
	}
	return size * float64(c.Height) / 2 / depth
}
