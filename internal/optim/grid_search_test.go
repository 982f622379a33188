package optim

import (
	"context"
	"testing"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/metrics"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/native/chipmunk"
)

func engine() native.Engine { return chipmunk.New() }

func defaults(sc *config.Scene) []sim.Metric { return metrics.Defaults(sc.Gravity) }

func TestNewGridSearchValidates(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		ranges [][]float64
	}{
		{"mismatch", []string{"dt"}, nil},
		{"unknown", []string{"gravity"}, [][]float64{{1}}},
		{"empty range", []string{"dt"}, [][]float64{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGridSearch(tt.params, tt.ranges, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApply(t *testing.T) {
	sc := config.DefaultScene()
	if err := Apply(sc, "iterations", 19.6); err != nil {
		t.Fatal(err)
	}
	if sc.Iterations != 20 {
		t.Errorf("expected 20 iterations, got %d", sc.Iterations)
	}
	if err := Apply(sc, "gravity", 1); err == nil {
		t.Error("expected unknown parameter error")
	}
}

func TestSearchVisitsGrid(t *testing.T) {
	g, err := NewGridSearch(
		[]string{"iterations", "substeps"},
		[][]float64{{2, 10}, {1, 2, 3}},
		nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	base := config.GetPreset("pendulum")
	base.Duration = 0.2

	best, trials, err := g.Search(context.Background(), base, engine, defaults, "mean_step_ms")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(trials) != 6 {
		t.Fatalf("expected 6 trials, got %d", len(trials))
	}
	if trials[0].Params["iterations"] != 2 || trials[0].Params["substeps"] != 1 {
		t.Errorf("unexpected first trial %v", trials[0].Params)
	}
	if trials[5].Params["iterations"] != 10 || trials[5].Params["substeps"] != 3 {
		t.Errorf("unexpected last trial %v", trials[5].Params)
	}
	for _, tr := range trials {
		if tr.Err != nil {
			t.Errorf("trial %v: %v", tr.Params, tr.Err)
		}
		if tr.Value < best.Value {
			t.Errorf("trial %v beat best %v", tr.Value, best.Value)
		}
	}
	if base.Iterations != config.DefaultIterations {
		t.Error("search modified the base scene")
	}
}

func TestSearchUnknownMetric(t *testing.T) {
	g, err := NewGridSearch([]string{"dt"}, [][]float64{{1.0 / 60}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	base := config.GetPreset("pendulum")
	base.Duration = 0.1

	_, trials, err := g.Search(context.Background(), base, engine, defaults, "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(trials) != 1 || trials[0].Err == nil {
		t.Errorf("expected one failed trial, got %+v", trials)
	}
}

func TestSearchCancelled(t *testing.T) {
	g, err := NewGridSearch([]string{"dt"}, [][]float64{{0.01, 0.02}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := g.Search(ctx, config.GetPreset("pendulum"), engine, defaults, "max_speed"); err == nil {
		t.Error("expected context error")
	}
}
