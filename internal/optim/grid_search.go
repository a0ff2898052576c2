// Package optim searches config parameters for the run that minimizes a
// metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/pbdsim/internal/config"
	"github.com/san-kum/pbdsim/internal/experiment"
)

var ErrNoResult = errors.New("optim: no parameter combination produced a result")

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	logger     *slog.Logger
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, logger: slog.Default()}
}

func (g *GridSearch) SetLogger(l *slog.Logger) { g.logger = l }

// Search simulates base under every combination of the grid and returns the
// combination with the lowest value of metricName. Combinations that fail to
// validate or build are skipped.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("optim: %d params but %d ranges", len(g.paramNames), len(g.ranges))
	}
	for _, n := range g.paramNames {
		if _, err := base.Param(n); err != nil {
			return nil, 0, err
		}
	}

	best := math.Inf(1)
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), base, metricName, &best, &bestParams)
	if err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, ErrNoResult
	}
	return bestParams, best, nil
}

func (g *GridSearch) evaluate(ctx context.Context, base *config.Config, params map[string]float64, metricName string) (float64, bool) {
	cfg := base.Clone()
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = append(cfg.Metrics, experiment.DefaultMetrics...)
	}
	found := false
	for _, m := range cfg.Metrics {
		found = found || m == metricName
	}
	if !found {
		cfg.Metrics = append(cfg.Metrics, metricName)
	}
	if err := cfg.SetParams(params); err != nil {
		return 0, false
	}

	scene, err := experiment.Build(ctx, cfg, experiment.WithLogger(g.logger))
	if err != nil {
		g.logger.Debug("skipping combination", "params", params, "err", err)
		return 0, false
	}
	defer scene.Close()

	result, err := scene.Simulate(ctx)
	if err != nil {
		g.logger.Debug("combination failed", "params", params, "err", err)
		return 0, false
	}
	val, ok := result.Metrics[metricName]
	return val, ok && !math.IsNaN(val)
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		val, ok := g.evaluate(ctx, base, current, metricName)
		if ok && val < *best {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}
