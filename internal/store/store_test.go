package store

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/cache"
)

func sampleCache(t *testing.T) *cache.Cache {
	t.Helper()
	c := cache.New(0.5)
	for i, tm := range []float64{0, 0.25, 0.75} {
		f := cache.NewFrame(tm)
		require.NoError(t, f.Append(1, r3.Vec{X: float64(i)}))
		require.NoError(t, f.Append(4, r3.Vec{Y: float64(i), Z: 0.5}))
		c.AddFrame(f)
	}
	return c
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	data := NewExportData("hanging", sampleCache(t), map[string]float64{"energy": 1.5})
	require.NoError(t, WriteJSON(&buf, data))

	var back ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "hanging", back.Name)
	assert.Equal(t, 3, back.FrameCount)
	assert.Equal(t, 0.75, back.Duration)
	assert.Equal(t, 1.5, back.Metrics["energy"])
	require.Len(t, back.Frames, 3)
	assert.Equal(t, []int{1, 4}, back.Frames[2].Indices)
	assert.Equal(t, [3]float64{0, 2, 0.5}, back.Frames[2].Positions[1])
}

func TestCSVRoundTrip(t *testing.T) {
	c := sampleCache(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, c))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "time,index,x,y,z", lines[0])

	back, err := ReadCSV(strings.NewReader(buf.String()), 0.5)
	require.NoError(t, err)
	require.Equal(t, c.FrameCount(), back.FrameCount())
	for i := 0; i < c.FrameCount(); i++ {
		assert.Equal(t, c.Frame(i).Time, back.Frame(i).Time)
		assert.Equal(t, c.Frame(i).Indices, back.Frame(i).Indices)
		assert.Equal(t, c.Frame(i).Positions, back.Frame(i).Positions)
	}
}

func TestCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, cache.New(0.5)))
	assert.Equal(t, "time,index,x,y,z\n", buf.String())
	assert.Empty(t, Samples(cache.New(0.5)))
}
