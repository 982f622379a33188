package chipmunk

import (
	"math"
	"slices"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

type body struct {
	h         native.Handle
	kind      native.BodyKind
	cp        *cp.Body
	material  native.Material
	space     *space
	shapes    []*shape
	destroyed bool

	linearDamping  float64
	angularDamping float64
	// inertia is an explicit moment set by the caller; it survives shape
	// changes. Zero means derived from shapes.
	inertia float64
}

// integrateVelocity replaces cp's default velocity update so each body can
// scale the space damping.
func (b *body) integrateVelocity(cb *cp.Body, gravity cp.Vector, damping, dt float64) {
	start := time.Now()

	ld := math.Pow(damping, b.linearDamping)
	ad := math.Pow(damping, b.angularDamping)
	v := cb.Velocity().Mult(ld).Add(gravity.Add(cb.Force().Mult(1 / cb.Mass())).Mult(dt))
	w := cb.AngularVelocity()*ad + cb.Torque()/cb.Moment()*dt
	cb.SetVelocityVector(v)
	cb.SetAngularVelocity(w)
	cb.SetForce(cp.Vector{})
	cb.SetTorque(0)

	if b.space != nil {
		b.space.trackVelocity(start, time.Now())
	}
}

// fixMass keeps a dynamic body integrable: cp derives mass from shape
// density, which leaves a body without shapes at zero mass.
func (b *body) fixMass() {
	if b.kind != native.BodyDynamic {
		return
	}
	if m := b.cp.Mass(); !(m > 0) || math.IsInf(m, 0) {
		b.cp.SetMass(1)
	}
	if b.inertia > 0 {
		b.cp.SetMoment(b.inertia)
	}
	if i := b.cp.Moment(); !(i > 0) || math.IsInf(i, 0) {
		b.cp.SetMoment(1)
	}
}

func (e *Engine) CreateBody(init native.BodyInit) (native.Handle, error) {
	const op = "CreateBody"
	e.mu.Lock()
	defer e.mu.Unlock()

	if !init.Kind.Valid() {
		return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "unknown body kind %v", init.Kind)
	}
	if err := finite(op, native.Null, "initial state",
		init.Position.X, init.Position.Y, init.Angle,
		init.LinearVelocity.X, init.LinearVelocity.Y, init.AngularVelocity); err != nil {
		return native.Null, err
	}
	m := init.Material
	if m.Density < 0 || m.Friction < 0 || m.Restitution < 0 {
		return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "material values must be non-negative: %+v", m)
	}

	b := &body{
		h:              e.alloc(),
		kind:           init.Kind,
		material:       m,
		linearDamping:  1,
		angularDamping: 1,
	}
	switch init.Kind {
	case native.BodyStatic:
		b.cp = cp.NewStaticBody()
	case native.BodyDynamic:
		b.cp = cp.NewBody(1, 1)
		b.cp.SetVelocityVector(toCP(init.LinearVelocity))
		b.cp.SetAngularVelocity(init.AngularVelocity)
	}
	b.cp.SetPosition(toCP(init.Position))
	b.cp.SetAngle(init.Angle)
	b.cp.UserData = b
	b.cp.SetVelocityUpdateFunc(b.integrateVelocity)

	e.bodies[b.h] = b
	e.log.Debug("body created", zap.Stringer("handle", b.h), zap.Stringer("kind", b.kind))
	return b.h, nil
}

// DestroyBody fails while the body is in a space. Shapes still attached are
// detached, not freed.
func (e *Engine) DestroyBody(h native.Handle) error {
	const op = "DestroyBody"
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if b.space != nil {
		return native.Errorf(op, h, native.ErrInUse, "body is still in space %s", b.space.h)
	}
	for _, sh := range b.shapes {
		b.cp.RemoveShape(sh.cp)
		sh.body, sh.cp = nil, nil
	}
	b.shapes = nil
	b.destroyed = true
	delete(e.bodies, h)
	e.log.Debug("body destroyed", zap.Stringer("handle", h))
	return nil
}

func (e *Engine) BodyAddShape(bh, sh native.Handle) error {
	const op = "BodyAddShape"
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.lookupBody(op, bh)
	if err != nil {
		return err
	}
	s, err := e.lookupShape(op, sh)
	if err != nil {
		return err
	}
	switch {
	case s.body == b:
		return native.Errorf(op, sh, native.ErrAttached, "shape already attached to body %s", bh)
	case s.body != nil:
		return native.Errorf(op, sh, native.ErrAttached, "shape is attached to body %s", s.body.h)
	}

	return guard(op, sh, func() {
		cs := newCPShape(b.cp, s.def)
		cs.SetElasticity(b.material.Restitution)
		cs.SetFriction(b.material.Friction)
		if b.kind == native.BodyDynamic {
			cs.SetDensity(b.material.Density)
		}
		cs.UserData = s
		if b.space != nil {
			b.space.cp.AddShape(cs)
		} else {
			b.cp.AddShape(cs)
		}
		s.cp, s.body = cs, b
		b.shapes = append(b.shapes, s)
		b.fixMass()
	})
}

func (e *Engine) BodyRemoveShape(bh, sh native.Handle) error {
	const op = "BodyRemoveShape"
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.lookupBody(op, bh)
	if err != nil {
		return err
	}
	s, err := e.lookupShape(op, sh)
	if err != nil {
		return err
	}
	if s.body != b {
		return native.Errorf(op, sh, native.ErrNotAttached, "shape is not attached to body %s", bh)
	}
	return guard(op, sh, func() {
		if b.space != nil {
			b.space.cp.RemoveShape(s.cp)
		} else {
			b.cp.RemoveShape(s.cp)
		}
		b.shapes = slices.DeleteFunc(b.shapes, func(x *shape) bool { return x == s })
		s.cp, s.body = nil, nil
		b.fixMass()
	})
}

func (e *Engine) BodyKind(h native.Handle) (native.BodyKind, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyKind", h)
	if err != nil {
		return 0, err
	}
	return b.kind, nil
}

func (e *Engine) BodyPosition(h native.Handle) (native.Vec2, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyPosition", h)
	if err != nil {
		return native.Vec2{}, err
	}
	return fromCP(b.cp.Position()), nil
}

func (e *Engine) SetBodyPosition(h native.Handle, p native.Vec2) error {
	const op = "SetBodyPosition"
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if err := finite(op, h, "position", p.X, p.Y); err != nil {
		return err
	}
	return guard(op, h, func() {
		b.cp.SetPosition(toCP(p))
		if b.space != nil {
			b.space.reindex(b)
		}
	})
}

func (e *Engine) BodyAngle(h native.Handle) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyAngle", h)
	if err != nil {
		return 0, err
	}
	return b.cp.Angle(), nil
}

func (e *Engine) SetBodyAngle(h native.Handle, a float64) error {
	const op = "SetBodyAngle"
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if err := finite(op, h, "angle", a); err != nil {
		return err
	}
	return guard(op, h, func() {
		b.cp.SetAngle(a)
		if b.space != nil {
			b.space.reindex(b)
		}
	})
}

func (e *Engine) BodyLinearVelocity(h native.Handle) (native.Vec2, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyLinearVelocity", h)
	if err != nil {
		return native.Vec2{}, err
	}
	return fromCP(b.cp.Velocity()), nil
}

func (e *Engine) SetBodyLinearVelocity(h native.Handle, v native.Vec2) error {
	const op = "SetBodyLinearVelocity"
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if err := finite(op, h, "velocity", v.X, v.Y); err != nil {
		return err
	}
	b.cp.SetVelocityVector(toCP(v))
	return nil
}

func (e *Engine) BodyAngularVelocity(h native.Handle) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyAngularVelocity", h)
	if err != nil {
		return 0, err
	}
	return b.cp.AngularVelocity(), nil
}

func (e *Engine) SetBodyAngularVelocity(h native.Handle, w float64) error {
	const op = "SetBodyAngularVelocity"
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if err := finite(op, h, "angular velocity", w); err != nil {
		return err
	}
	b.cp.SetAngularVelocity(w)
	return nil
}

func (e *Engine) BodyLinearDampingScale(h native.Handle) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyLinearDampingScale", h)
	if err != nil {
		return 0, err
	}
	return b.linearDamping, nil
}

func (e *Engine) SetBodyLinearDampingScale(h native.Handle, s float64) error {
	const op = "SetBodyLinearDampingScale"
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if err := dampingScale(op, h, s); err != nil {
		return err
	}
	b.linearDamping = s
	return nil
}

func (e *Engine) BodyAngularDampingScale(h native.Handle) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyAngularDampingScale", h)
	if err != nil {
		return 0, err
	}
	return b.angularDamping, nil
}

func (e *Engine) SetBodyAngularDampingScale(h native.Handle, s float64) error {
	const op = "SetBodyAngularDampingScale"
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if err := dampingScale(op, h, s); err != nil {
		return err
	}
	b.angularDamping = s
	return nil
}

func dampingScale(op string, h native.Handle, s float64) error {
	if err := finite(op, h, "damping scale", s); err != nil {
		return err
	}
	if s < 0 {
		return native.Errorf(op, h, native.ErrBadParameter, "damping scale must be non-negative, got %g", s)
	}
	return nil
}

// BodyInertia reports zero for static bodies.
func (e *Engine) BodyInertia(h native.Handle) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyInertia", h)
	if err != nil {
		return 0, err
	}
	if b.kind == native.BodyStatic {
		return 0, nil
	}
	return b.cp.Moment(), nil
}

func (e *Engine) SetBodyInertia(h native.Handle, i float64) error {
	const op = "SetBodyInertia"
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if b.kind == native.BodyStatic {
		return native.Errorf(op, h, native.ErrBadParameter, "static bodies have no inertia")
	}
	if !(i > 0) || math.IsInf(i, 0) {
		return native.Errorf(op, h, native.ErrBadParameter, "inertia must be positive and finite, got %g", i)
	}
	b.inertia = i
	b.cp.SetMoment(i)
	return nil
}

// BodyMass reports zero for static bodies.
func (e *Engine) BodyMass(h native.Handle) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyMass", h)
	if err != nil {
		return 0, err
	}
	if b.kind == native.BodyStatic {
		return 0, nil
	}
	return b.cp.Mass(), nil
}

// BodyAABB bounds all attached shapes. A body without shapes reports a
// degenerate box at its position.
func (e *Engine) BodyAABB(h native.Handle) (native.AABB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody("BodyAABB", h)
	if err != nil {
		return native.AABB{}, err
	}
	if len(b.shapes) == 0 {
		p := fromCP(b.cp.Position())
		return native.AABB{Min: p, Max: p}, nil
	}
	box := fromBB(b.shapes[0].cp.CacheBB())
	for _, s := range b.shapes[1:] {
		box = box.Union(fromBB(s.cp.CacheBB()))
	}
	return box, nil
}

func (e *Engine) BodyApplyForce(h native.Handle, force, point native.Vec2) error {
	const op = "BodyApplyForce"
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.lookupBody(op, h)
	if err != nil {
		return err
	}
	if b.kind == native.BodyStatic {
		return native.Errorf(op, h, native.ErrBadParameter, "cannot apply force to a static body")
	}
	if err := finite(op, h, "force", force.X, force.Y, point.X, point.Y); err != nil {
		return err
	}
	b.cp.ApplyForceAtWorldPoint(toCP(force), toCP(point))
	return nil
}
