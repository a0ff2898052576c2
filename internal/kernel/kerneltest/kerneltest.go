// Package kerneltest provides a recording kernel for tests.
package kerneltest

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/kernel"
)

// Recorder stores everything it is sent and never moves a particle unless
// OnIntegrate is set.
type Recorder struct {
	*kernel.Table

	Fields          *kernel.Fields
	ActiveParticles []int
	Ignored         map[int][]int
	Integrations    int
	Alpha           float64
	Calls           []string

	OnIntegrate func(f *kernel.Fields, dt float64)
}

var _ kernel.Kernel = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{
		Table:   kernel.NewTable(),
		Ignored: make(map[int][]int),
	}
}

func (r *Recorder) log(format string, args ...any) {
	r.Calls = append(r.Calls, fmt.Sprintf(format, args...))
}

func (r *Recorder) Bind(f *kernel.Fields) {
	r.Fields = f
	r.log("bind")
}

func (r *Recorder) SetActiveParticles(indices []int) {
	r.ActiveParticles = append(r.ActiveParticles[:0], indices...)
	r.log("active %d", len(indices))
}

func (r *Recorder) SetIgnoredParticles(particle int, ignored []int) {
	if len(ignored) == 0 {
		delete(r.Ignored, particle)
		return
	}
	r.Ignored[particle] = append([]int(nil), ignored...)
}

func (r *Recorder) InsertConstraints(t kernel.ConstraintType, offset int, records []kernel.Record) {
	r.Table.InsertConstraints(t, offset, records)
	r.log("insert %s %d %d", t, offset, len(records))
}

func (r *Recorder) RemoveConstraints(t kernel.ConstraintType, offset, count int) {
	r.Table.RemoveConstraints(t, offset, count)
	r.log("remove %s %d %d", t, offset, count)
}

func (r *Recorder) Integrate(dt float64) {
	r.Integrations++
	r.log("integrate")
	if r.OnIntegrate != nil && r.Fields != nil {
		r.OnIntegrate(r.Fields, dt)
	}
}

func (r *Recorder) Interpolate(alpha float64) {
	r.Alpha = alpha
	r.log("interpolate")
}

func (r *Recorder) RenderablePositions(dst []r3.Vec) {
	if r.Fields != nil {
		copy(dst, r.Fields.Positions)
	}
}

// IsActive reports whether slot i is in the published active set.
func (r *Recorder) IsActive(i int) bool {
	for _, a := range r.ActiveParticles {
		if a == i {
			return true
		}
	}
	return false
}
