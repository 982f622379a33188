package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/novabind/internal/scene"
	"github.com/san-kum/novabind/internal/sim"
	"github.com/san-kum/novabind/nova"
)

// Divergence estimates the mean exponential separation rate of two copies of
// a world whose body named body starts displaced by perturbation along x. A
// positive value indicates sensitive dependence on initial conditions.
func Divergence(build func() (*scene.World, error), body string, perturbation, dt, duration float64) (float64, error) {
	if perturbation <= 0 {
		return 0, fmt.Errorf("perturbation must be positive, got %g", perturbation)
	}
	ref, err := build()
	if err != nil {
		return 0, err
	}
	defer ref.Close()
	pert, err := build()
	if err != nil {
		return 0, err
	}
	defer pert.Close()

	b, ok := pert.Body(body)
	if !ok {
		return 0, fmt.Errorf("no body named %q", body)
	}
	p, err := b.Position()
	if err != nil {
		return 0, err
	}
	if err := b.SetPosition(p.Add(nova.V(perturbation, 0))); err != nil {
		return 0, err
	}

	sumLog := 0.0
	count := 0
	steps := int(duration/dt + 0.5)
	for i := 1; i <= steps; i++ {
		if err := ref.Space.Step(dt); err != nil {
			return 0, err
		}
		if err := pert.Space.Step(dt); err != nil {
			return 0, err
		}
		fa, err := sim.Sample(ref)
		if err != nil {
			return 0, err
		}
		fb, err := sim.Sample(pert)
		if err != nil {
			return 0, err
		}
		if sep := separation(fa, fb); sep > 0 {
			sumLog += math.Log(sep/perturbation) / (float64(i) * dt)
			count++
		}
	}

	if count == 0 {
		return 0, nil
	}
	return sumLog / float64(count), nil
}

func separation(a, b sim.Frame) float64 {
	sum := 0.0
	for i := range min(len(a), len(b)) {
		d := a[i].Position.Sub(b[i].Position)
		sum += d.Len2()
	}
	return math.Sqrt(sum)
}
