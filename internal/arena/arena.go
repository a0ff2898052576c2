// Package arena owns the fixed-capacity particle slots shared by every actor.
//
// Slots are handed out first-fit and all-or-nothing. The arena tracks which
// slots are allocated and which of those are active, and republishes the
// active set to the kernel whenever membership changes.
package arena

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/kernel"
)

var ErrInvalidCapacity = errors.New("arena: capacity must be positive")

type Arena struct {
	capacity   int
	allocated  []bool
	active     []bool
	numAlloc   int
	fields     *kernel.Fields
	renderable []r3.Vec
	kernel     kernel.Kernel
}

func New(capacity int, k kernel.Kernel) (*Arena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCapacity, capacity)
	}
	a := &Arena{
		capacity:   capacity,
		allocated:  make([]bool, capacity),
		active:     make([]bool, capacity),
		fields:     kernel.NewFields(capacity),
		renderable: make([]r3.Vec, capacity),
		kernel:     k,
	}
	k.Bind(a.fields)
	a.SyncActive()
	return a, nil
}

func (a *Arena) Capacity() int          { return a.capacity }
func (a *Arena) Fields() *kernel.Fields { return a.fields }
func (a *Arena) Kernel() kernel.Kernel  { return a.kernel }
func (a *Arena) AllocatedCount() int    { return a.numAlloc }
func (a *Arena) FreeCount() int         { return a.capacity - a.numAlloc }

// Renderable is the published, possibly interpolated, position array.
func (a *Arena) Renderable() []r3.Vec { return a.renderable }

// Allocate reserves n slots first-fit. It returns nil, false without
// touching any slot if fewer than n are free.
func (a *Arena) Allocate(n int) ([]int, bool) {
	if n < 0 || n > a.FreeCount() {
		return nil, false
	}

	indices := make([]int, 0, n)
	for i := 0; i < a.capacity && len(indices) < n; i++ {
		if !a.allocated[i] {
			indices = append(indices, i)
		}
	}

	for _, i := range indices {
		a.allocated[i] = true
		a.active[i] = true
	}
	a.numAlloc += n
	a.SyncActive()
	return indices, true
}

// Free releases slots. Already free or out-of-range indices are ignored.
func (a *Arena) Free(indices []int) {
	for _, i := range indices {
		if !a.valid(i) || !a.allocated[i] {
			continue
		}
		a.allocated[i] = false
		a.active[i] = false
		a.numAlloc--
	}
	a.SyncActive()
}

// SetActive changes membership without publishing; call SyncActive after a batch.
// Unallocated slots can never become active.
func (a *Arena) SetActive(i int, on bool) {
	if !a.valid(i) {
		return
	}
	a.active[i] = on && a.allocated[i]
}

// ReplaceActive makes exactly the given allocated slots active and publishes.
func (a *Arena) ReplaceActive(indices []int) {
	for i := range a.active {
		a.active[i] = false
	}
	for _, i := range indices {
		a.SetActive(i, true)
	}
	a.SyncActive()
}

// SyncActive republishes the active set to the kernel.
func (a *Arena) SyncActive() {
	a.kernel.SetActiveParticles(a.ActiveIndices())
}

func (a *Arena) IsAllocated(i int) bool { return a.valid(i) && a.allocated[i] }
func (a *Arena) IsActive(i int) bool    { return a.valid(i) && a.active[i] }

// ActiveIndices returns the active slots in ascending order.
func (a *Arena) ActiveIndices() []int {
	out := make([]int, 0, a.numAlloc)
	for i, on := range a.active {
		if on {
			out = append(out, i)
		}
	}
	return out
}

// ReadRenderable pulls the kernel's renderable positions into the published array.
func (a *Arena) ReadRenderable() {
	a.kernel.RenderablePositions(a.renderable)
}

func (a *Arena) valid(i int) bool {
	return i >= 0 && i < a.capacity
}
