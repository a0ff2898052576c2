package rope

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/dynamo"
)

// Path is a curve sampled by arc length.
type Path interface {
	Length() float64
	// PointAt returns the point at arc length d from the start.
	PointAt(d float64) r3.Vec
	Closed() bool
}

// Polyline is a piecewise linear Path.
type Polyline struct {
	points []r3.Vec
	closed bool
	cum    []float64
}

func NewPolyline(points []r3.Vec, closed bool) *Polyline {
	p := &Polyline{points: append([]r3.Vec(nil), points...), closed: closed}
	if closed && len(points) > 1 {
		p.points = append(p.points, points[0])
	}
	p.cum = make([]float64, len(p.points))
	for i := 1; i < len(p.points); i++ {
		p.cum[i] = p.cum[i-1] + r3.Norm(r3.Sub(p.points[i], p.points[i-1]))
	}
	return p
}

func (p *Polyline) Closed() bool { return p.closed }

func (p *Polyline) Length() float64 {
	if len(p.cum) == 0 {
		return 0
	}
	return p.cum[len(p.cum)-1]
}

func (p *Polyline) PointAt(d float64) r3.Vec {
	switch len(p.points) {
	case 0:
		return r3.Vec{}
	case 1:
		return p.points[0]
	}

	length := p.Length()
	if p.closed && length > 0 {
		d = math.Mod(d, length)
		if d < 0 {
			d += length
		}
	}
	if d <= 0 {
		return p.points[0]
	}
	if d >= length {
		return p.points[len(p.points)-1]
	}

	i := sort.SearchFloat64s(p.cum, d)
	if p.cum[i] == d {
		return p.points[i]
	}
	seg := p.cum[i] - p.cum[i-1]
	return dynamo.Lerp(p.points[i-1], p.points[i], (d-p.cum[i-1])/seg)
}
