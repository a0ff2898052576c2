// Package cache records sparse particle snapshots and replays them by time.
//
// Frames are kept in time order. A reference table maps each
// ReferenceInterval-wide bucket to the first frame that may fall in it, so
// seeking scans a handful of frames instead of the whole list. Lookups can
// blend the two frames around the query time.
package cache

import (
	"errors"
	"math"
)

const DefaultReferenceInterval = 0.5

var (
	ErrUnsorted           = errors.New("cache: frame indices must be strictly ascending")
	ErrBadMagic           = errors.New("cache: not a particle cache")
	ErrUnsupportedVersion = errors.New("cache: unsupported format version")
	ErrCorrupt            = errors.New("cache: corrupt data")
)

type Cache struct {
	frames     []*Frame
	duration   float64
	interval   float64
	references []int
}

func New(referenceInterval float64) *Cache {
	if referenceInterval <= 0 || math.IsNaN(referenceInterval) {
		referenceInterval = DefaultReferenceInterval
	}
	return &Cache{
		interval:   referenceInterval,
		references: []int{0},
	}
}

func (c *Cache) Duration() float64          { return c.duration }
func (c *Cache) ReferenceInterval() float64 { return c.interval }
func (c *Cache) FrameCount() int            { return len(c.frames) }

// Frame returns the stored frame i. Callers must not modify it.
func (c *Cache) Frame(i int) *Frame { return c.frames[i] }

func (c *Cache) References() []int { return append([]int(nil), c.references...) }

func (c *Cache) Clear() {
	c.frames = nil
	c.duration = 0
	c.references = []int{0}
}

func (c *Cache) SizeInBytes() int {
	n := 0
	for _, f := range c.frames {
		n += f.SizeInBytes()
	}
	return n + 4*len(c.references)
}

func (c *Cache) bucket(t float64) int {
	b := int(t / c.interval)
	if b < 0 {
		return 0
	}
	return b
}

// AddFrame stores f. Frames at or past the current duration are appended;
// an earlier frame replaces the first stored frame at or after its time.
func (c *Cache) AddFrame(f *Frame) {
	if f == nil || math.IsNaN(f.Time) || math.IsInf(f.Time, 0) || f.Time < 0 {
		return
	}

	// Backfill with the same bucketing GetFrame uses to look frames up.
	for b := c.bucket(f.Time); len(c.references) <= b; {
		c.references = append(c.references, len(c.frames))
	}

	if n := len(c.frames); n > 0 && f.Time == c.duration {
		c.frames[n-1] = f
		return
	}
	if f.Time >= c.duration {
		c.frames = append(c.frames, f)
		c.duration = f.Time
		return
	}

	for i := c.reference(f.Time); i < len(c.frames); i++ {
		if c.frames[i].Time >= f.Time {
			c.frames[i] = f
			return
		}
	}
}

func (c *Cache) reference(t float64) int {
	b := min(c.bucket(t), len(c.references)-1)
	return c.references[b]
}

// GetFrame returns a copy of the frame at time t. Times past the duration
// or before zero wrap around it.
func (c *Cache) GetFrame(t float64, interpolate bool) (*Frame, bool) {
	if len(c.frames) == 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return nil, false
	}
	if c.duration <= 0 {
		return c.frames[0].Clone(), true
	}
	if t > c.duration || t < 0 {
		t = math.Mod(t, c.duration)
		if t < 0 {
			t += c.duration
		}
	}

	next := len(c.frames) - 1
	for i := c.reference(t); i < len(c.frames); i++ {
		if c.frames[i].Time >= t {
			next = i
			break
		}
	}

	nf := c.frames[next]
	if !interpolate || next == 0 || nf.Time == t {
		return nf.Clone(), true
	}

	prev := c.frames[next-1]
	span := nf.Time - prev.Time
	if span <= 0 {
		return nf.Clone(), true
	}
	return Merge(prev, nf, (t-prev.Time)/span), true
}
