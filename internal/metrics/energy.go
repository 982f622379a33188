package metrics

import (
	"math"

	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/nova"
)

// KineticEnergy averages the total translational kinetic energy over the run.
type KineticEnergy struct {
	name    string
	samples int
	total   float64
	last    float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) Observe(f sim.Frame, p nova.Profiler, t float64) {
	e.last = Kinetic(f)
	e.total += e.last
	e.samples++
}

func (e *KineticEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

// Last is the energy of the most recent frame.
func (e *KineticEnergy) Last() float64 { return e.last }

func (e *KineticEnergy) Reset() {
	e.total = 0
	e.last = 0
	e.samples = 0
}

func Kinetic(f sim.Frame) float64 {
	ke := 0.0
	for _, b := range f {
		ke += 0.5 * b.Mass * b.Velocity.Len2()
	}
	return ke
}

// Mechanical is kinetic plus potential energy in a uniform gravity field.
func Mechanical(f sim.Frame, gravity nova.Vec2) float64 {
	e := Kinetic(f)
	for _, b := range f {
		e -= b.Mass * gravity.Dot(b.Position)
	}
	return e
}

// EnergyDrift tracks the largest relative change of mechanical energy from
// the first observed frame.
type EnergyDrift struct {
	name          string
	gravity       nova.Vec2
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(gravity nova.Vec2) *EnergyDrift {
	return &EnergyDrift{name: "energy_drift", gravity: gravity}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(f sim.Frame, p nova.Profiler, t float64) {
	energy := Mechanical(f, e.gravity)
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
