package nova

import (
	"runtime"
	"sync/atomic"

	"github.com/san-kum/novabind/native"
)

// DefaultSpringHertz is the stiffness used by a spring distance constraint
// created with a zero Hertz.
const DefaultSpringHertz = 3.0

// Constraint couples up to two bodies. It references the bodies without
// owning them and always releases its own native handle on Close.
type Constraint interface {
	Handle() native.Handle
	// Bodies returns the endpoints; a nil endpoint is anchored to the world.
	Bodies() (a, b *RigidBody)
	Closed() bool
	Close() error

	constraint() *constraintBase
}

type constraintBase struct {
	lt   *lifetime
	a, b *RigidBody

	// space is the Space the constraint was added to, if any.
	space atomic.Pointer[spaceState]
}

func (c *constraintBase) constraint() *constraintBase { return c }

func (c *constraintBase) Handle() native.Handle { return c.lt.handle }

func (c *constraintBase) Bodies() (*RigidBody, *RigidBody) { return c.a, c.b }

func (c *constraintBase) Closed() bool { return c.lt.released.Load() }

// InSpace reports whether the constraint is part of a simulation.
func (c *constraintBase) InSpace() bool { return c.space.Load() != nil }

// init validates the endpoints and allocates the native constraint.
func (c *constraintBase) init(op string, a, b *RigidBody, build func(ha, hb native.Handle) native.ConstraintDef) error {
	if a == nil && b == nil {
		return opError(op, ErrInvalidConstraintEndpoints, native.Null, "")
	}
	var engine native.Engine
	handles := [2]native.Handle{}
	for i, body := range []*RigidBody{a, b} {
		if body == nil {
			continue
		}
		if err := body.st.lt.check(op); err != nil {
			return err
		}
		if engine != nil && body.st.lt.engine != engine {
			return opError(op, ErrInvalidArgument, body.Handle(), "bodies belong to different engines")
		}
		engine = body.st.lt.engine
		handles[i] = body.st.lt.handle
	}
	h, err := engine.CreateConstraint(build(handles[0], handles[1]))
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
	if err != nil || h.IsNull() {
		return initError(op, err)
	}
	c.lt = newLifetime("constraint", engine, h, engine.DestroyConstraint)
	c.a, c.b = a, b
	return nil
}

// close releases the native constraint and drops it from its space.
func (c *constraintBase) close(op string) error {
	sp := c.space.Load()
	if sp != nil {
		sp.mu.Lock()
		defer sp.mu.Unlock()
	}
	if err := c.lt.release(op); err != nil {
		return err
	}
	if sp != nil {
		sp.forget(c)
	}
	return nil
}

// DistanceConstraintDef describes a DistanceConstraint. Anchors are in body
// space, or in world space for a nil endpoint.
type DistanceConstraintDef struct {
	A, B             *RigidBody
	Length           float64
	AnchorA, AnchorB Vec2
	// Spring makes the constraint soft; Hertz and Damping (ratio) tune it.
	Spring  bool
	Hertz   float64
	Damping float64
}

// DistanceConstraint keeps two anchor points a fixed length apart.
type DistanceConstraint struct {
	constraintBase
	def DistanceConstraintDef
}

var _ Constraint = (*DistanceConstraint)(nil)

func NewDistanceConstraint(def DistanceConstraintDef) (*DistanceConstraint, error) {
	const op = "NewDistanceConstraint"
	if def.Spring && def.Hertz == 0 {
		def.Hertz = DefaultSpringHertz
	}
	c := &DistanceConstraint{def: def}
	err := c.init(op, def.A, def.B, func(ha, hb native.Handle) native.ConstraintDef {
		return native.DistanceDef{
			A:       ha,
			B:       hb,
			Length:  def.Length,
			AnchorA: def.AnchorA,
			AnchorB: def.AnchorB,
			Spring:  def.Spring,
			Hertz:   def.Hertz,
			Damping: def.Damping,
		}
	})
	if err != nil {
		return nil, err
	}
	runtime.AddCleanup(c, func(lt *lifetime) { lt.collect() }, c.lt)
	return c, nil
}

func (c *DistanceConstraint) Length() float64 { return c.def.Length }
func (c *DistanceConstraint) Spring() bool    { return c.def.Spring }

// Anchors returns the anchor points as given at construction.
func (c *DistanceConstraint) Anchors() (Vec2, Vec2) { return c.def.AnchorA, c.def.AnchorB }

func (c *DistanceConstraint) Close() error {
	defer runtime.KeepAlive(c)
	return c.close("DistanceConstraint.Close")
}

// HingeConstraintDef describes a HingeConstraint pinned at a world Anchor.
type HingeConstraintDef struct {
	A, B         *RigidBody
	Anchor       Vec2
	EnableLimits bool
	Lower, Upper float64
}

// HingeConstraint lets two bodies rotate about a shared point.
type HingeConstraint struct {
	constraintBase
	def HingeConstraintDef
}

var _ Constraint = (*HingeConstraint)(nil)

func NewHingeConstraint(def HingeConstraintDef) (*HingeConstraint, error) {
	const op = "NewHingeConstraint"
	if def.EnableLimits && def.Lower > def.Upper {
		return nil, opError(op, ErrInvalidArgument, native.Null, "lower limit above upper limit")
	}
	c := &HingeConstraint{def: def}
	err := c.init(op, def.A, def.B, func(ha, hb native.Handle) native.ConstraintDef {
		return native.HingeDef{
			A:            ha,
			B:            hb,
			Anchor:       def.Anchor,
			EnableLimits: def.EnableLimits,
			Lower:        def.Lower,
			Upper:        def.Upper,
		}
	})
	if err != nil {
		return nil, err
	}
	runtime.AddCleanup(c, func(lt *lifetime) { lt.collect() }, c.lt)
	return c, nil
}

func (c *HingeConstraint) Anchor() Vec2 { return c.def.Anchor }

// Limits returns the angle limits and whether they are enforced.
func (c *HingeConstraint) Limits() (lower, upper float64, enabled bool) {
	return c.def.Lower, c.def.Upper, c.def.EnableLimits
}

func (c *HingeConstraint) Close() error {
	defer runtime.KeepAlive(c)
	return c.close("HingeConstraint.Close")
}
