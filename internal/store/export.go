// Package store exports a frame cache as JSON or CSV.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/cache"
)

type FrameData struct {
	Time      float64      `json:"time"`
	Indices   []int        `json:"indices"`
	Positions [][3]float64 `json:"positions"`
}

type ExportData struct {
	Name              string             `json:"name,omitempty"`
	ReferenceInterval float64            `json:"reference_interval"`
	Duration          float64            `json:"duration"`
	FrameCount        int                `json:"frame_count"`
	Metrics           map[string]float64 `json:"metrics,omitempty"`
	Frames            []FrameData        `json:"frames"`
}

// Sample is one particle of one frame, a CSV row.
type Sample struct {
	Time  float64 `csv:"time"`
	Index int     `csv:"index"`
	X     float64 `csv:"x"`
	Y     float64 `csv:"y"`
	Z     float64 `csv:"z"`
}

func NewFrameData(f *cache.Frame) FrameData {
	fd := FrameData{
		Time:      f.Time,
		Indices:   append([]int(nil), f.Indices...),
		Positions: make([][3]float64, len(f.Positions)),
	}
	for i, p := range f.Positions {
		fd.Positions[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return fd
}

func NewExportData(name string, c *cache.Cache, metrics map[string]float64) ExportData {
	data := ExportData{
		Name:              name,
		ReferenceInterval: c.ReferenceInterval(),
		Duration:          c.Duration(),
		FrameCount:        c.FrameCount(),
		Metrics:           metrics,
		Frames:            make([]FrameData, c.FrameCount()),
	}
	for i := range data.Frames {
		data.Frames[i] = NewFrameData(c.Frame(i))
	}
	return data
}

func WriteJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path, name string, c *cache.Cache, metrics map[string]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, NewExportData(name, c, metrics))
}

func ExportJSONStdout(name string, c *cache.Cache, metrics map[string]float64) error {
	return WriteJSON(os.Stdout, NewExportData(name, c, metrics))
}

// Samples flattens the cache into rows ordered by frame then index.
func Samples(c *cache.Cache) []Sample {
	var out []Sample
	for i := 0; i < c.FrameCount(); i++ {
		f := c.Frame(i)
		for j, idx := range f.Indices {
			p := f.Positions[j]
			out = append(out, Sample{Time: f.Time, Index: idx, X: p.X, Y: p.Y, Z: p.Z})
		}
	}
	return out
}

func WriteCSV(w io.Writer, c *cache.Cache) error {
	samples := Samples(c)
	if len(samples) == 0 {
		_, err := fmt.Fprintln(w, "time,index,x,y,z")
		return err
	}
	return gocsv.Marshal(samples, w)
}

func ExportCSV(path string, c *cache.Cache) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCSV(file, c)
}

// ReadCSV rebuilds a cache from rows written by WriteCSV.
func ReadCSV(r io.Reader, referenceInterval float64) (*cache.Cache, error) {
	var samples []Sample
	if err := gocsv.Unmarshal(r, &samples); err != nil {
		return nil, err
	}

	c := cache.New(referenceInterval)
	var f *cache.Frame
	for _, s := range samples {
		if f == nil || s.Time != f.Time {
			if f != nil {
				c.AddFrame(f)
			}
			f = cache.NewFrame(s.Time)
		}
		if err := f.Append(s.Index, r3.Vec{X: s.X, Y: s.Y, Z: s.Z}); err != nil {
			return nil, fmt.Errorf("time %g: %w", s.Time, err)
		}
	}
	if f != nil {
		c.AddFrame(f)
	}
	return c, nil
}
