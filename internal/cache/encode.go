package cache

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	magic   = "PCCH"
	version = 1

	// maxPrealloc bounds allocations driven by counts read from a stream.
	maxPrealloc = 1 << 16
)

type header struct {
	Magic             [4]byte
	Version           uint16
	ReferenceInterval float64
	Duration          float64
	FrameCount        uint32
}

type entry struct {
	Index   uint32
	X, Y, Z float32
}

type countWriter struct {
	w io.Writer
	n int64
}

func (cw *countWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

type countReader struct {
	r io.Reader
	n int64
}

func (cr *countReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// WriteTo encodes the cache little-endian. Positions are stored as float32.
func (c *Cache) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	bw := bufio.NewWriter(cw)

	h := header{
		Version:           version,
		ReferenceInterval: c.interval,
		Duration:          c.duration,
		FrameCount:        uint32(len(c.frames)),
	}
	copy(h.Magic[:], magic)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return cw.n, err
	}

	for _, f := range c.frames {
		if err := binary.Write(bw, binary.LittleEndian, f.Time); err != nil {
			return cw.n, err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(f.Len())); err != nil {
			return cw.n, err
		}
		entries := make([]entry, f.Len())
		for i, idx := range f.Indices {
			p := f.Positions[i]
			entries[i] = entry{Index: uint32(idx), X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
		}
		if err := binary.Write(bw, binary.LittleEndian, entries); err != nil {
			return cw.n, err
		}
	}

	refs := make([]uint32, len(c.references))
	for i, r := range c.references {
		refs[i] = uint32(r)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(refs))); err != nil {
		return cw.n, err
	}
	if err := binary.Write(bw, binary.LittleEndian, refs); err != nil {
		return cw.n, err
	}

	err := bw.Flush()
	return cw.n, err
}

// ReadFrom replaces the cache contents with an encoded stream.
func (c *Cache) ReadFrom(r io.Reader) (int64, error) {
	cr := &countReader{r: r}
	br := bufio.NewReader(cr)

	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return cr.n, fmt.Errorf("read header: %w", err)
	}
	if string(h.Magic[:]) != magic {
		return cr.n, ErrBadMagic
	}
	if h.Version != version {
		return cr.n, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if !(h.ReferenceInterval > 0) {
		return cr.n, fmt.Errorf("%w: reference interval %f", ErrCorrupt, h.ReferenceInterval)
	}

	frames := make([]*Frame, 0, min(int(h.FrameCount), maxPrealloc))
	for i := 0; i < int(h.FrameCount); i++ {
		f, err := readFrame(br)
		if err != nil {
			return cr.n, fmt.Errorf("frame %d: %w", i, err)
		}
		if n := len(frames); n > 0 && f.Time < frames[n-1].Time {
			return cr.n, fmt.Errorf("%w: frame %d out of time order", ErrCorrupt, i)
		}
		frames = append(frames, f)
	}

	var nrefs uint32
	if err := binary.Read(br, binary.LittleEndian, &nrefs); err != nil {
		return cr.n, fmt.Errorf("read references: %w", err)
	}
	if nrefs == 0 {
		return cr.n, fmt.Errorf("%w: empty reference table", ErrCorrupt)
	}
	refs := make([]int, 0, min(int(nrefs), maxPrealloc))
	for i := 0; i < int(nrefs); i++ {
		var ref uint32
		if err := binary.Read(br, binary.LittleEndian, &ref); err != nil {
			return cr.n, fmt.Errorf("read references: %w", err)
		}
		if int(ref) > len(frames) {
			return cr.n, fmt.Errorf("%w: reference %d beyond %d frames", ErrCorrupt, ref, len(frames))
		}
		refs = append(refs, int(ref))
	}

	c.frames = frames
	c.duration = h.Duration
	c.interval = h.ReferenceInterval
	c.references = refs
	return cr.n, nil
}

func readFrame(r io.Reader) (*Frame, error) {
	var t float64
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}

	f := NewFrame(t)
	var e entry
	for i := 0; i < int(n); i++ {
		if err := binary.Read(r, binary.LittleEndian, &e); err != nil {
			return nil, err
		}
		p := r3.Vec{X: float64(e.X), Y: float64(e.Y), Z: float64(e.Z)}
		if err := f.Append(int(e.Index), p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return f, nil
}

// Save writes the cache gzip-compressed.
func (c *Cache) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	if _, err := c.WriteTo(zw); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return file.Close()
}

// Load reads a cache file, compressed or not.
func Load(path string) (*Cache, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	br := bufio.NewReader(file)
	var src io.Reader = br
	if head, err := br.Peek(2); err == nil && head[0] == 0x1f && head[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		src = zr
	}

	c := New(DefaultReferenceInterval)
	if _, err := c.ReadFrom(src); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}
