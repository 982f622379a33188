package chipmunk

import (
	"math"
	"slices"

	"github.com/jakecoffman/cp"
	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

// constraint is materialised into cp constraints only while in a space,
// because cp constraints need both bodies and world anchors bind to the
// space's static body.
type constraint struct {
	h     native.Handle
	def   native.ConstraintDef
	a, b  *body
	space *space
	cps   []*cp.Constraint

	// body-local anchors of a hinge, fixed at creation.
	localA, localB cp.Vector
}

func (c *constraint) build(s *space) []*cp.Constraint {
	a, b := s.anchor(c.a), s.anchor(c.b)
	switch d := c.def.(type) {
	case native.DistanceDef:
		if d.Spring {
			k, damp := springCoefficients(d.Hertz, d.Damping, c.a, c.b)
			return []*cp.Constraint{cp.NewDampedSpring(a, b, toCP(d.AnchorA), toCP(d.AnchorB), d.Length, k, damp)}
		}
		return []*cp.Constraint{cp.NewSlideJoint(a, b, toCP(d.AnchorA), toCP(d.AnchorB), d.Length, d.Length)}
	case native.HingeDef:
		out := []*cp.Constraint{cp.NewPivotJoint2(a, b, c.localA, c.localB)}
		if d.EnableLimits {
			out = append(out, cp.NewRotaryLimitJoint(a, b, d.Lower, d.Upper))
		}
		return out
	default:
		return nil
	}
}

// springCoefficients converts a frequency and damping ratio into cp's
// stiffness and damping for the effective mass of the pair.
func springCoefficients(hertz, ratio float64, a, b *body) (float64, float64) {
	m := effectiveMass(a, b)
	omega := 2 * math.Pi * hertz
	return m * omega * omega, 2 * m * ratio * omega
}

func effectiveMass(a, b *body) float64 {
	ma, mb := dynamicMass(a), dynamicMass(b)
	switch {
	case ma > 0 && mb > 0:
		return ma * mb / (ma + mb)
	case ma > 0:
		return ma
	case mb > 0:
		return mb
	}
	return 1
}

func dynamicMass(b *body) float64 {
	if b == nil || b.kind != native.BodyDynamic {
		return 0
	}
	return b.cp.Mass()
}

func (e *Engine) CreateConstraint(def native.ConstraintDef) (native.Handle, error) {
	const op = "CreateConstraint"
	e.mu.Lock()
	defer e.mu.Unlock()

	if def == nil {
		return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "nil constraint definition")
	}
	ha, hb := def.Bodies()
	if ha.IsNull() && hb.IsNull() {
		return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "constraint needs at least one body")
	}
	c := &constraint{def: def}
	var err error
	if !ha.IsNull() {
		if c.a, err = e.lookupBody(op, ha); err != nil {
			return native.Null, err
		}
	}
	if !hb.IsNull() {
		if c.b, err = e.lookupBody(op, hb); err != nil {
			return native.Null, err
		}
	}

	switch d := def.(type) {
	case native.DistanceDef:
		if err := finite(op, native.Null, "distance parameters",
			d.Length, d.AnchorA.X, d.AnchorA.Y, d.AnchorB.X, d.AnchorB.Y, d.Hertz, d.Damping); err != nil {
			return native.Null, err
		}
		if d.Length < 0 {
			return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "length must be non-negative, got %g", d.Length)
		}
		if d.Spring && !(d.Hertz > 0) {
			return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "spring hertz must be positive, got %g", d.Hertz)
		}
	case native.HingeDef:
		if err := finite(op, native.Null, "hinge parameters", d.Anchor.X, d.Anchor.Y, d.Lower, d.Upper); err != nil {
			return native.Null, err
		}
		if d.EnableLimits && d.Lower > d.Upper {
			return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "lower limit %g exceeds upper %g", d.Lower, d.Upper)
		}
		c.localA = localAnchor(c.a, d.Anchor)
		c.localB = localAnchor(c.b, d.Anchor)
	default:
		return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "unsupported constraint %T", def)
	}

	c.h = e.alloc()
	e.constraints[c.h] = c
	e.log.Debug("constraint created", zap.Stringer("handle", c.h), zap.Stringer("a", ha), zap.Stringer("b", hb))
	return c.h, nil
}

func localAnchor(b *body, world native.Vec2) cp.Vector {
	if b == nil {
		return toCP(world)
	}
	return b.cp.WorldToLocal(toCP(world))
}

// DestroyConstraint removes the constraint from its space first, if any.
func (e *Engine) DestroyConstraint(h native.Handle) error {
	const op = "DestroyConstraint"
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.lookupConstraint(op, h)
	if err != nil {
		return err
	}
	if s := c.space; s != nil {
		if err := guard(op, h, func() { s.detachConstraint(c) }); err != nil {
			return err
		}
		s.constraints = slices.DeleteFunc(s.constraints, func(x *constraint) bool { return x == c })
	}
	delete(e.constraints, h)
	e.log.Debug("constraint destroyed", zap.Stringer("handle", h))
	return nil
}
