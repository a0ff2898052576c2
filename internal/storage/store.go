// Package storage keeps each run in its own directory: metadata, the
// configuration, the binary frame cache and a CSV of sampled positions.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/pbdsim/internal/cache"
	"github.com/san-kum/pbdsim/internal/config"
	"github.com/san-kum/pbdsim/internal/sim"
	"github.com/san-kum/pbdsim/internal/store"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	cacheFile    = "cache.pcache"
	samplesFile  = "positions.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	FixedDt   float64            `json:"fixed_dt"`
	FrameRate float64            `json:"frame_rate"`
	Duration  float64            `json:"duration"`
	Capacity  int                `json:"capacity"`
	Ropes     []string           `json:"ropes"`
	Frames    int                `json:"frames"`
	Steps     int                `json:"steps"`
	Cached    int                `json:"cached_frames"`
	Metrics   map[string]float64 `json:"metrics"`
}

func (s *Store) Save(name string, cfg *config.Config, result *sim.Result, c *cache.Cache) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Timestamp: now,
		FixedDt:   cfg.Solver.FixedDt,
		FrameRate: cfg.Solver.FrameRate,
		Duration:  cfg.Solver.Duration,
		Capacity:  cfg.Solver.Capacity,
		Cached:    c.FrameCount(),
		Metrics:   map[string]float64{},
	}
	for _, r := range cfg.Ropes {
		meta.Ropes = append(meta.Ropes, r.Name)
	}
	if result != nil {
		meta.Frames = result.Frames
		meta.Steps = result.Steps
		meta.Metrics = result.Metrics
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	if err := c.Save(filepath.Join(runDir, cacheFile)); err != nil {
		return "", fmt.Errorf("writing cache: %w", err)
	}
	if err := store.ExportCSV(filepath.Join(runDir, samplesFile), c); err != nil {
		return "", fmt.Errorf("writing samples: %w", err)
	}

	return runID, nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

func (s *Store) LoadCache(runID string) (*cache.Cache, error) {
	return cache.Load(filepath.Join(s.baseDir, runID, cacheFile))
}

// LoadSamples reads the CSV positions back into a cache.
func (s *Store) LoadSamples(runID string, referenceInterval float64) (*cache.Cache, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return store.ReadCSV(file, referenceInterval)
}
