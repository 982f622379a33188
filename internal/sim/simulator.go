package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/nova"
	"go.uber.org/zap"
)

// Runner steps a scene.World and records what happened.
type Runner struct {
	metrics   []Metric
	observers []Observer
	log       *zap.Logger
}

func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		log:       log,
	}
}

func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

// Sample reads every dynamic body of w.
func Sample(w *scene.World) (Frame, error) {
	return sampleInto(w, nil)
}

func sampleInto(w *scene.World, f Frame) (Frame, error) {
	f = f[:0]
	for name, b := range w.DynamicBodies() {
		s, err := sampleBody(name, b)
		if err != nil {
			return nil, err
		}
		f = append(f, s)
	}
	return f, nil
}

func sampleBody(name string, b *nova.RigidBody) (BodyState, error) {
	s := BodyState{Name: name}
	var err error
	if s.Mass, err = b.Mass(); err != nil {
		return s, err
	}
	if s.Position, err = b.Position(); err != nil {
		return s, err
	}
	if s.Angle, err = b.Angle(); err != nil {
		return s, err
	}
	if s.Velocity, err = b.LinearVelocity(); err != nil {
		return s, err
	}
	if s.AngularVelocity, err = b.AngularVelocity(); err != nil {
		return s, err
	}
	return s, nil
}

// Run steps w for cfg.Duration. A cancelled ctx stops between steps and the
// partial result is returned with ctx's error.
func (r *Runner) Run(ctx context.Context, w *scene.World, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(cfg.Duration/cfg.Dt + 0.5)
	every := max(cfg.SampleEvery, 1)
	result := &Result{
		Names:    make([]string, 0),
		Frames:   make([]Frame, 0, steps/every+1),
		Times:    make([]float64, 0, steps/every+1),
		Profiles: make([]nova.Profiler, 0, steps),
		Metrics:  make(map[string]float64),
		Errors:   make([]error, 0),
	}
	for name := range w.DynamicBodies() {
		result.Names = append(result.Names, name)
	}

	for _, m := range r.metrics {
		m.Reset()
	}

	f, err := Sample(w)
	if err != nil {
		return nil, err
	}
	t := 0.0
	result.Frames = append(result.Frames, f)
	result.Times = append(result.Times, t)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		for _, obs := range r.observers {
			obs.OnStep(f, t)
		}

		if err := w.Space.Step(cfg.Dt); err != nil {
			result.Errors = append(result.Errors, SimError{Time: t, Step: i, Message: err.Error()})
			break
		}
		t += cfg.Dt
		result.StepsTaken++
		prof := w.Space.Profiler()
		result.Profiles = append(result.Profiles, prof)

		if f, err = Sample(w); err != nil {
			return result, err
		}
		for _, m := range r.metrics {
			m.Observe(f, prof, t)
		}

		if cfg.ValidateState && !f.IsValid() {
			err := SimError{Time: t, Step: i, Message: "invalid state (NaN/Inf)"}
			result.Errors = append(result.Errors, err)
			r.log.Warn("simulation diverged", zap.Int("step", i), zap.Float64("t", t))
			break
		}

		if (i+1)%every == 0 || i == steps-1 {
			result.Frames = append(result.Frames, f)
			result.Times = append(result.Times, t)
		}
	}

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	r.log.Debug("run finished",
		zap.String("scene", w.Scene.Name),
		zap.Int("steps", result.StepsTaken),
		zap.Int("frames", len(result.Frames)))
	return result, nil
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.SampleEvery < 0 {
		return fmt.Errorf("sample interval must not be negative, got %d", cfg.SampleEvery)
	}
	return nil
}

// RunWithCallback steps w until callback returns false or cfg.Duration
// elapses. The frame passed to callback is only valid during the call.
func (r *Runner) RunWithCallback(ctx context.Context, w *scene.World, cfg Config, callback func(Frame, float64) bool) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	pool := NewFramePool()

	t := 0.0
	for t < cfg.Duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := sampleInto(w, pool.Get())
		if err != nil {
			return err
		}
		cont := callback(f, t)
		pool.Put(f)
		if !cont {
			return nil
		}

		if err := w.Space.Step(cfg.Dt); err != nil {
			return err
		}
		t += cfg.Dt
	}

	return nil
}
