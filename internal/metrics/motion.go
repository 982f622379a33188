package metrics

import (
	"math"

	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/nova"
)

// MaxSpeed is the highest body speed seen during the run.
type MaxSpeed struct {
	max float64
}

func NewMaxSpeed() *MaxSpeed { return &MaxSpeed{} }

func (m *MaxSpeed) Name() string { return "max_speed" }

func (m *MaxSpeed) Observe(f sim.Frame, p nova.Profiler, t float64) {
	for _, b := range f {
		m.max = math.Max(m.max, b.Velocity.Len())
	}
}

func (m *MaxSpeed) Value() float64 { return m.max }
func (m *MaxSpeed) Reset()         { m.max = 0 }

// StepTime is the mean wall time of Space.Step in milliseconds.
type StepTime struct {
	samples int
	total   float64
}

func NewStepTime() *StepTime { return &StepTime{} }

func (s *StepTime) Name() string { return "mean_step_ms" }

func (s *StepTime) Observe(f sim.Frame, p nova.Profiler, t float64) {
	s.total += float64(p.Step.Microseconds()) / 1000
	s.samples++
}

func (s *StepTime) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.total / float64(s.samples)
}

func (s *StepTime) Reset() {
	s.total = 0
	s.samples = 0
}

// Defaults returns the metrics recorded by every run.
func Defaults(gravity nova.Vec2) []sim.Metric {
	return []sim.Metric{
		NewKineticEnergy(),
		NewEnergyDrift(gravity),
		NewMaxSpeed(),
		NewStepTime(),
	}
}
