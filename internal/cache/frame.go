package cache

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/dynamo"
)

// Frame is a sparse snapshot: particle slots in ascending order and their
// positions at Time.
type Frame struct {
	Time      float64
	Indices   []int
	Positions []r3.Vec
}

func NewFrame(t float64) *Frame {
	return &Frame{Time: t}
}

// Append adds a particle. Indices must be strictly ascending.
func (f *Frame) Append(index int, p r3.Vec) error {
	if n := len(f.Indices); n > 0 && index <= f.Indices[n-1] {
		return fmt.Errorf("index %d after %d: %w", index, f.Indices[n-1], ErrUnsorted)
	}
	f.Indices = append(f.Indices, index)
	f.Positions = append(f.Positions, p)
	return nil
}

func (f *Frame) Len() int { return len(f.Indices) }

// Position returns the recorded position of a slot.
func (f *Frame) Position(index int) (r3.Vec, bool) {
	i := sort.SearchInts(f.Indices, index)
	if i < len(f.Indices) && f.Indices[i] == index {
		return f.Positions[i], true
	}
	return r3.Vec{}, false
}

func (f *Frame) Clone() *Frame {
	return &Frame{
		Time:      f.Time,
		Indices:   append([]int(nil), f.Indices...),
		Positions: append([]r3.Vec(nil), f.Positions...),
	}
}

// SizeInBytes is the encoded size of the frame.
func (f *Frame) SizeInBytes() int {
	return 8 + 4 + f.Len()*(4+3*4)
}

// Merge interpolates two frames by mu. A slot present in only one frame is
// copied unchanged; a slot present in both is blended.
func Merge(a, b *Frame, mu float64) *Frame {
	out := &Frame{
		Time:      a.Time + (b.Time-a.Time)*mu,
		Indices:   make([]int, 0, max(a.Len(), b.Len())),
		Positions: make([]r3.Vec, 0, max(a.Len(), b.Len())),
	}

	i, j := 0, 0
	for i < a.Len() && j < b.Len() {
		ai, bj := a.Indices[i], b.Indices[j]
		switch {
		case ai < bj:
			out.Indices = append(out.Indices, ai)
			out.Positions = append(out.Positions, a.Positions[i])
			i++
		case bj < ai:
			out.Indices = append(out.Indices, bj)
			out.Positions = append(out.Positions, b.Positions[j])
			j++
		default:
			out.Indices = append(out.Indices, ai)
			out.Positions = append(out.Positions, dynamo.Lerp(a.Positions[i], b.Positions[j], mu))
			i++
			j++
		}
	}
	out.Indices = append(out.Indices, a.Indices[i:]...)
	out.Positions = append(out.Positions, a.Positions[i:]...)
	out.Indices = append(out.Indices, b.Indices[j:]...)
	out.Positions = append(out.Positions, b.Positions[j:]...)
	return out
}
