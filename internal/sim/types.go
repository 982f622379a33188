package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/novabind/nova"
)

// BodyState is one sampled body.
type BodyState struct {
	Name            string
	Mass            float64
	Position        nova.Vec2
	Angle           float64
	Velocity        nova.Vec2
	AngularVelocity float64
}

// Frame holds every dynamic body of a world at one instant.
type Frame []BodyState

func (f Frame) Clone() Frame {
	c := make(Frame, len(f))
	copy(c, f)
	return c
}

func (f Frame) IsValid() bool {
	for _, b := range f {
		if !b.Position.IsFinite() || !b.Velocity.IsFinite() ||
			math.IsNaN(b.Angle) || math.IsInf(b.Angle, 0) ||
			math.IsNaN(b.AngularVelocity) || math.IsInf(b.AngularVelocity, 0) {
			return false
		}
	}
	return true
}

// Flatten lays the frame out as x, y, angle, vx, vy, omega per body.
func (f Frame) Flatten() []float64 {
	out := make([]float64, 0, 6*len(f))
	for _, b := range f {
		out = append(out, b.Position.X, b.Position.Y, b.Angle, b.Velocity.X, b.Velocity.Y, b.AngularVelocity)
	}
	return out
}

type Metric interface {
	Name() string
	Observe(f Frame, p nova.Profiler, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(f Frame, t float64)
}

type Config struct {
	Dt       float64
	Duration float64
	// SampleEvery records one frame per this many steps; zero means every step.
	SampleEvery   int
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            1.0 / 60,
		Duration:      5.0,
		SampleEvery:   1,
		ValidateState: true,
	}
}

type Result struct {
	Names      []string
	Frames     []Frame
	Times      []float64
	Profiles   []nova.Profiler
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

// Series returns one column of the flattened frames for body i.
func (r *Result) Series(i, field int) []float64 {
	out := make([]float64, 0, len(r.Frames))
	for _, f := range r.Frames {
		flat := f.Flatten()
		if idx := 6*i + field; idx < len(flat) {
			out = append(out, flat[idx])
		}
	}
	return out
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
