// Package optim searches scene settings for the best value of a run metric.
package optim

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/native"
)

// Params are the tunable scene settings.
var Params = []string{"dt", "iterations", "substeps", "damping"}

// Apply sets the named setting on sc.
func Apply(sc *config.Scene, name string, v float64) error {
	switch name {
	case "dt":
		sc.Dt = v
	case "iterations":
		sc.Iterations = int(math.Round(v))
	case "substeps":
		sc.Substeps = int(math.Round(v))
	case "damping":
		sc.Damping = v
	default:
		return fmt.Errorf("unknown parameter %q, want one of %v", name, Params)
	}
	return nil
}

// Trial is one evaluated point of the grid.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	log        *zap.Logger
}

func NewGridSearch(params []string, ranges [][]float64, log *zap.Logger) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d parameters but %d ranges", len(params), len(ranges))
	}
	for i, p := range params {
		if !slices.Contains(Params, p) {
			return nil, fmt.Errorf("unknown parameter %q, want one of %v", p, Params)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("parameter %q has no values", p)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GridSearch{paramNames: params, ranges: ranges, log: log}, nil
}

// Search runs base with every combination of values on a fresh engine from
// newEngine and returns the trial with the lowest metric, plus every trial in
// grid order. Trials that fail keep their error and never win.
func (g *GridSearch) Search(
	ctx context.Context,
	base *config.Scene,
	newEngine func() native.Engine,
	metrics func(sc *config.Scene) []sim.Metric,
	metricName string,
) (Trial, []Trial, error) {
	var trials []Trial
	err := g.walk(ctx, 0, make(map[string]float64), func(params map[string]float64) {
		v, err := g.evaluate(ctx, base, params, newEngine, metrics, metricName)
		trials = append(trials, Trial{Params: maps.Clone(params), Value: v, Err: err})
	})
	if err != nil {
		return Trial{}, trials, err
	}

	best := Trial{Value: math.Inf(1)}
	for _, t := range trials {
		if t.Err == nil && t.Value < best.Value {
			best = t
		}
	}
	if best.Params == nil {
		return best, trials, fmt.Errorf("no trial produced %q", metricName)
	}
	return best, trials, nil
}

func (g *GridSearch) walk(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}
	name := g.paramNames[depth]
	for _, v := range g.ranges[depth] {
		current[name] = v
		if err := g.walk(ctx, depth+1, current, visit); err != nil {
			return err
		}
	}
	delete(current, name)
	return nil
}

func (g *GridSearch) evaluate(
	ctx context.Context,
	base *config.Scene,
	params map[string]float64,
	newEngine func() native.Engine,
	metrics func(sc *config.Scene) []sim.Metric,
	metricName string,
) (float64, error) {
	sc := *base
	for name, v := range params {
		if err := Apply(&sc, name, v); err != nil {
			return 0, err
		}
	}
	w, err := scene.Build(newEngine(), &sc, g.log)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	r := sim.New(g.log)
	for _, m := range metrics(&sc) {
		r.AddMetric(m)
	}
	cfg := sim.Config{Dt: sc.Dt, Duration: sc.Duration, SampleEvery: sc.Steps() + 1}
	res, err := r.Run(ctx, w, cfg)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, res.Errors[0]
	}
	v, ok := res.Metrics[metricName]
	if !ok {
		return 0, fmt.Errorf("metric %q not recorded", metricName)
	}
	g.log.Debug("trial", zap.Any("params", params), zap.Float64(metricName, v))
	return v, nil
}
