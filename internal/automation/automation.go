// Package automation runs scripted batches of scenes and randomized trials.
package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/native"
)

// Scenario is a YAML script of scene runs executed in order.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`

	dir string
}

// ScenarioStep names a preset or a scene file relative to the scenario, with
// optional overrides.
type ScenarioStep struct {
	Scene      string  `yaml:"scene"`
	Duration   float64 `yaml:"duration,omitempty"`
	Dt         float64 `yaml:"dt,omitempty"`
	Broadphase string  `yaml:"broadphase,omitempty"`
	SaveAs     string  `yaml:"save_as,omitempty"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	s.dir = filepath.Dir(path)
	return &s, nil
}

// Resolve returns the scene for step i with its overrides applied.
func (s *Scenario) Resolve(i int) (*config.Scene, error) {
	step := s.Steps[i]
	sc := config.GetPreset(step.Scene)
	if sc == nil {
		path := step.Scene
		if !filepath.IsAbs(path) && s.dir != "" {
			path = filepath.Join(s.dir, path)
		}
		var err error
		if sc, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	if step.Duration > 0 {
		sc.Duration = step.Duration
	}
	if step.Dt > 0 {
		sc.Dt = step.Dt
	}
	if step.Broadphase != "" {
		sc.Broadphase = step.Broadphase
	}
	if step.SaveAs != "" {
		sc.Name = step.SaveAs
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("step %d: %w", i+1, err)
	}
	return sc, nil
}

// StepResult is one finished scenario step.
type StepResult struct {
	Scene  *config.Scene
	Result *sim.Result
}

// RunScenario runs every step on a fresh engine. It stops at the first
// failing step and returns the steps finished so far.
func RunScenario(
	ctx context.Context,
	s *Scenario,
	newEngine func() native.Engine,
	metrics func(*config.Scene) []sim.Metric,
	log *zap.Logger,
) ([]StepResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	results := make([]StepResult, 0, len(s.Steps))
	for i := range s.Steps {
		sc, err := s.Resolve(i)
		if err != nil {
			return results, err
		}
		log.Info("scenario step", zap.Int("step", i+1), zap.String("scene", sc.Name))

		res, err := runOnce(ctx, newEngine(), sc, metrics(sc), log)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, StepResult{Scene: sc, Result: res})
	}
	return results, nil
}

func runOnce(ctx context.Context, e native.Engine, sc *config.Scene, metrics []sim.Metric, log *zap.Logger) (*sim.Result, error) {
	w, err := scene.Build(e, sc, log)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	r := sim.New(log)
	for _, m := range metrics {
		r.AddMetric(m)
	}
	return r.Run(ctx, w, sim.Config{Dt: sc.Dt, Duration: sc.Duration, SampleEvery: 1, ValidateState: true})
}

// MonteCarloConfig jitters every dynamic body of Scene by up to Perturbation
// along each axis and runs Trials copies concurrently.
type MonteCarloConfig struct {
	Scene        *config.Scene
	Perturbation float64
	Trials       int
	Seed         uint64
	// Bound is the largest coordinate a stable run may reach. Zero means 1e6.
	Bound float64
}

type MonteCarloResult struct {
	Trial  int
	Final  sim.Frame
	Stable bool
}

// Jitter returns a copy of sc with dynamic body positions perturbed by a
// generator seeded from seed and trial.
func Jitter(sc *config.Scene, amount float64, seed uint64, trial int) *config.Scene {
	rng := rand.New(rand.NewPCG(seed, uint64(trial)))
	out := *sc
	out.Bodies = make([]config.BodyConfig, len(sc.Bodies))
	for i, b := range sc.Bodies {
		if bi, err := b.Init(); err == nil && bi.Kind == native.BodyDynamic {
			b.Position.X += (rng.Float64()*2 - 1) * amount
			b.Position.Y += (rng.Float64()*2 - 1) * amount
		}
		out.Bodies[i] = b
	}
	return &out
}

func RunMonteCarlo(ctx context.Context, cfg MonteCarloConfig, newEngine func() native.Engine, log *zap.Logger) ([]MonteCarloResult, error) {
	if cfg.Trials < 1 {
		return nil, fmt.Errorf("trials must be positive, got %d", cfg.Trials)
	}
	bound := cfg.Bound
	if bound == 0 {
		bound = 1e6
	}

	ens := sim.NewEnsemble(sim.New(log), cfg.Trials, func(idx int) (*scene.World, error) {
		return scene.Build(newEngine(), Jitter(cfg.Scene, cfg.Perturbation, cfg.Seed, idx), log)
	})
	sc := cfg.Scene
	results, err := ens.Run(ctx, sim.Config{Dt: sc.Dt, Duration: sc.Duration, SampleEvery: 1, ValidateState: true})
	if err != nil {
		return nil, err
	}

	out := make([]MonteCarloResult, len(results))
	for i, r := range results {
		mc := MonteCarloResult{Trial: i, Stable: len(r.Errors) == 0}
		if n := len(r.Frames); n > 0 {
			mc.Final = r.Frames[n-1]
			for _, v := range mc.Final.Flatten() {
				if math.Abs(v) > bound {
					mc.Stable = false
					break
				}
			}
		}
		out[i] = mc
	}
	return out, nil
}

func MonteCarloStats(results []MonteCarloResult) (stable, unstable int) {
	for _, r := range results {
		if r.Stable {
			stable++
		} else {
			unstable++
		}
	}
	return
}
