package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/metrics"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/native/chipmunk"
)

func engine() native.Engine { return chipmunk.New() }

func defaults(sc *config.Scene) []sim.Metric { return metrics.Defaults(sc.Gravity) }

func writeScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	custom := config.GetPreset("ray")
	custom.Name = "custom"
	if err := config.Save(filepath.Join(dir, "custom.yaml"), custom); err != nil {
		t.Fatal(err)
	}
	script := `name: smoke
steps:
  - scene: pendulum
    duration: 0.1
    broadphase: bvh
    save_as: pendulum_bvh
  - scene: custom.yaml
    duration: 0.05
`
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScenario(t *testing.T) {
	s, err := LoadScenario(writeScenario(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	results, err := RunScenario(context.Background(), s, engine, defaults, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(results))
	}
	if results[0].Scene.Name != "pendulum_bvh" || results[0].Scene.Broadphase != "bvh" {
		t.Errorf("overrides not applied: %+v", results[0].Scene)
	}
	if results[1].Scene.Name != "custom" {
		t.Errorf("expected scene file relative to scenario, got %s", results[1].Scene.Name)
	}
	if results[0].Result.StepsTaken != 6 {
		t.Errorf("expected 6 steps, got %d", results[0].Result.StepsTaken)
	}
}

func TestScenarioErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("name: empty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(empty); err == nil {
		t.Error("expected error for a scenario without steps")
	}

	s := &Scenario{Steps: []ScenarioStep{{Scene: "missing.yaml"}}, dir: dir}
	results, err := RunScenario(context.Background(), s, engine, defaults, nil)
	if err == nil || len(results) != 0 {
		t.Errorf("expected step error and no results, got %v, %d", err, len(results))
	}
}

func TestJitterIsDeterministic(t *testing.T) {
	base := config.GetPreset("pendulum")
	a := Jitter(base, 0.1, 7, 3)
	b := Jitter(base, 0.1, 7, 3)
	c := Jitter(base, 0.1, 7, 4)

	for i := range base.Bodies {
		if a.Bodies[i].Position != b.Bodies[i].Position {
			t.Errorf("body %d: same seed gave different positions", i)
		}
		d := a.Bodies[i].Position.Sub(base.Bodies[i].Position)
		if d.X < -0.1 || d.X > 0.1 || d.Y < -0.1 || d.Y > 0.1 {
			t.Errorf("body %d moved %v, beyond the jitter bound", i, d)
		}
	}
	if a.Bodies[0].Position == c.Bodies[0].Position {
		t.Error("different trials gave the same jitter")
	}
	if base.Bodies[0].Position != config.GetPreset("pendulum").Bodies[0].Position {
		t.Error("jitter modified the base scene")
	}
}

func TestRunMonteCarlo(t *testing.T) {
	sc := config.GetPreset("pendulum")
	sc.Duration = 0.1
	results, err := RunMonteCarlo(context.Background(), MonteCarloConfig{
		Scene:        sc,
		Perturbation: 0.05,
		Trials:       4,
		Seed:         1,
	}, engine, nil)
	if err != nil {
		t.Fatalf("monte carlo: %v", err)
	}
	stable, unstable := MonteCarloStats(results)
	if stable != 4 || unstable != 0 {
		t.Errorf("expected 4 stable trials, got %d stable %d unstable", stable, unstable)
	}
	for i, r := range results {
		if r.Trial != i || len(r.Final) != 3 {
			t.Errorf("trial %d: unexpected result %+v", i, r)
		}
	}

	if _, err := RunMonteCarlo(context.Background(), MonteCarloConfig{Scene: sc}, engine, nil); err == nil {
		t.Error("expected error for zero trials")
	}
}
