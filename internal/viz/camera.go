package viz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera is an orthographic view of arena space: it orbits Center by Yaw
// about the vertical axis, then Pitch about the horizontal one.
type Camera struct {
	Center     r3.Vec
	Yaw, Pitch float64
	// Scale is sub-pixels per world unit before Zoom.
	Scale float64
	Zoom  float64
}

func NewCamera() *Camera {
	return &Camera{Scale: 10, Zoom: 1}
}

func (c *Camera) RotateYaw(a float64) { c.Yaw += a }
func (c *Camera) RotatePitch(a float64) {
	c.Pitch = math.Max(-math.Pi/2, math.Min(math.Pi/2, c.Pitch+a))
}
func (c *Camera) ZoomIn()  { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// Fit centers the camera on points and scales them to fill most of a
// w x h dot area.
func (c *Camera) Fit(points []r3.Vec, w, h int) {
	if len(points) == 0 {
		return
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	c.Center = r3.Scale(0.5, r3.Add(lo, hi))

	extent := r3.Sub(hi, lo)
	span := math.Max(extent.X, math.Max(extent.Y, extent.Z))
	if span <= 0 {
		return
	}
	c.Scale = 0.8 * math.Min(float64(w), float64(h)) / span
	c.Zoom = 1
}

// View returns p in camera space: X right, Y up, Z toward the viewer.
func (c *Camera) View(p r3.Vec) r3.Vec {
	q := r3.Sub(p, c.Center)
	if c.Yaw != 0 {
		q = r3.NewRotation(c.Yaw, r3.Vec{Y: 1}).Rotate(q)
	}
	if c.Pitch != 0 {
		q = r3.NewRotation(c.Pitch, r3.Vec{X: 1}).Rotate(q)
	}
	return q
}

// Project maps p onto a w x h dot area. ok is false when the point falls
// outside it.
func (c *Camera) Project(p r3.Vec, w, h int) (x, y int, depth float64, ok bool) {
	v := c.View(p)
	s := c.Scale * c.Zoom
	x = w/2 + int(math.Round(v.X*s))
	y = h/2 - int(math.Round(v.Y*s))
	return x, y, v.Z, x >= 0 && x < w && y >= 0 && y < h
}
