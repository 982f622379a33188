package nova

import (
	"errors"
	"iter"
	"runtime"
	"sync"

	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

// RigidBody owns the shapes attached to it and may itself be owned by one
// Space. Accessors read and write the engine directly.
type RigidBody struct {
	st *bodyState

	UserData any
}

// bodyState is the cleanup argument of a RigidBody; it holds the shape
// registry so attached shapes outlive a collected body until it is released.
type bodyState struct {
	lt       *lifetime
	kind     BodyKind
	material Material

	mu     sync.Mutex
	shapes *registry[*Shape]
}

func (b *RigidBody) life() *lifetime { return b.st.lt }

// NewRigidBody allocates a body from def.
func NewRigidBody(engine native.Engine, def BodyDef) (*RigidBody, error) {
	const op = "NewRigidBody"
	if engine == nil {
		return nil, opError(op, ErrInvalidArgument, native.Null, "nil engine")
	}
	if !def.Kind.Valid() {
		return nil, opError(op, ErrInvalidArgument, native.Null, "unknown body kind "+def.Kind.String())
	}
	h, err := engine.CreateBody(def)
	if err != nil || h.IsNull() {
		return nil, initError(op, err)
	}
	st := &bodyState{
		lt:       newLifetime("body", engine, h, engine.DestroyBody),
		kind:     def.Kind,
		material: def.Material,
		shapes:   newRegistry[*Shape]("body.shapes"),
	}
	b := &RigidBody{st: st}
	runtime.AddCleanup(b, func(st *bodyState) { st.collect() }, st)
	return b, nil
}

// collect releases an unowned body and lets its shapes go.
func (st *bodyState) collect() {
	if !st.lt.collect() {
		return
	}
	st.mu.Lock()
	st.shapes.clear()
	st.mu.Unlock()
}

func (b *RigidBody) Handle() native.Handle { return b.st.lt.handle }
func (b *RigidBody) Kind() BodyKind        { return b.st.kind }
func (b *RigidBody) Material() Material    { return b.st.material }

// Owned reports whether a Space currently holds the body.
func (b *RigidBody) Owned() bool  { return b.st.lt.owned.Load() }
func (b *RigidBody) Closed() bool { return b.st.lt.released.Load() }

// Close releases the native body and detaches its shapes, which become
// independently closable. It returns ErrOwned while the body is in a Space.
func (b *RigidBody) Close() error {
	defer runtime.KeepAlive(b)
	st := b.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lt.released.Load() {
		return nil
	}
	if err := st.lt.release("RigidBody.Close"); err != nil {
		return err
	}
	st.shapes.clear()
	return nil
}

// AddShape attaches s and takes ownership of it.
func (b *RigidBody) AddShape(s *Shape) error {
	const op = "RigidBody.AddShape"
	defer runtime.KeepAlive(b)
	if s == nil {
		return opError(op, ErrInvalidArgument, b.Handle(), "nil shape")
	}
	st := b.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.lt.check(op); err != nil {
		return err
	}
	if err := s.lt.check(op); err != nil {
		return err
	}
	if s.lt.engine != st.lt.engine {
		return opError(op, ErrInvalidArgument, s.Handle(), "shape belongs to another engine")
	}
	return st.shapes.register(op, s, func() error {
		return st.lt.engine.BodyAddShape(st.lt.handle, s.lt.handle)
	})
}

// RemoveShape detaches s and hands ownership back to the caller.
func (b *RigidBody) RemoveShape(s *Shape) error {
	const op = "RigidBody.RemoveShape"
	defer runtime.KeepAlive(b)
	if s == nil {
		return opError(op, ErrInvalidArgument, b.Handle(), "nil shape")
	}
	st := b.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.lt.check(op); err != nil {
		return err
	}
	return st.shapes.unregister(op, s, func() error {
		return st.lt.engine.BodyRemoveShape(st.lt.handle, s.lt.handle)
	})
}

// detachShapes removes every shape natively and evicts the ones the engine
// let go of.
func (st *bodyState) detachShapes(op string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	var errs []error
	for _, s := range st.shapes.snapshot() {
		if err := st.lt.engine.BodyRemoveShape(st.lt.handle, s.lt.handle); err != nil {
			errs = append(errs, nativeError(op, s.lt.handle, err))
			continue
		}
		st.shapes.evict(s.lt.handle)
	}
	if len(errs) > 0 {
		logger().Debug("shape detach failed", zap.Stringer("body", st.lt.handle), zap.Int("failures", len(errs)))
	}
	return errors.Join(errs...)
}

// Shapes yields the attached shapes in attachment order.
func (b *RigidBody) Shapes() iter.Seq[*Shape] { return b.st.shapes.all() }

func (b *RigidBody) ShapeCount() int { return b.st.shapes.count() }

// ResolveShape maps a native shape handle to the attached wrapper.
func (b *RigidBody) ResolveShape(h native.Handle) (*Shape, bool) {
	return b.st.shapes.resolve(h)
}

func (b *RigidBody) Position() (Vec2, error) {
	return get(b, "RigidBody.Position", b.st.lt.engine.BodyPosition)
}

func (b *RigidBody) SetPosition(p Vec2) error {
	return set(b, "RigidBody.SetPosition", b.st.lt.engine.SetBodyPosition, p)
}

func (b *RigidBody) Angle() (float64, error) {
	return get(b, "RigidBody.Angle", b.st.lt.engine.BodyAngle)
}

func (b *RigidBody) SetAngle(a float64) error {
	return set(b, "RigidBody.SetAngle", b.st.lt.engine.SetBodyAngle, a)
}

func (b *RigidBody) LinearVelocity() (Vec2, error) {
	return get(b, "RigidBody.LinearVelocity", b.st.lt.engine.BodyLinearVelocity)
}

func (b *RigidBody) SetLinearVelocity(v Vec2) error {
	return set(b, "RigidBody.SetLinearVelocity", b.st.lt.engine.SetBodyLinearVelocity, v)
}

func (b *RigidBody) AngularVelocity() (float64, error) {
	return get(b, "RigidBody.AngularVelocity", b.st.lt.engine.BodyAngularVelocity)
}

func (b *RigidBody) SetAngularVelocity(w float64) error {
	return set(b, "RigidBody.SetAngularVelocity", b.st.lt.engine.SetBodyAngularVelocity, w)
}

// LinearDampingScale scales the space damping applied to linear velocity.
func (b *RigidBody) LinearDampingScale() (float64, error) {
	return get(b, "RigidBody.LinearDampingScale", b.st.lt.engine.BodyLinearDampingScale)
}

func (b *RigidBody) SetLinearDampingScale(s float64) error {
	return set(b, "RigidBody.SetLinearDampingScale", b.st.lt.engine.SetBodyLinearDampingScale, s)
}

func (b *RigidBody) AngularDampingScale() (float64, error) {
	return get(b, "RigidBody.AngularDampingScale", b.st.lt.engine.BodyAngularDampingScale)
}

func (b *RigidBody) SetAngularDampingScale(s float64) error {
	return set(b, "RigidBody.SetAngularDampingScale", b.st.lt.engine.SetBodyAngularDampingScale, s)
}

func (b *RigidBody) Inertia() (float64, error) {
	return get(b, "RigidBody.Inertia", b.st.lt.engine.BodyInertia)
}

func (b *RigidBody) SetInertia(i float64) error {
	return set(b, "RigidBody.SetInertia", b.st.lt.engine.SetBodyInertia, i)
}

// Mass is derived by the engine from shape densities; static bodies report 0.
func (b *RigidBody) Mass() (float64, error) {
	return get(b, "RigidBody.Mass", b.st.lt.engine.BodyMass)
}

func (b *RigidBody) AABB() (AABB, error) {
	return get(b, "RigidBody.AABB", b.st.lt.engine.BodyAABB)
}

// ApplyForce accumulates force at a world point until the next step.
func (b *RigidBody) ApplyForce(force, point Vec2) error {
	const op = "RigidBody.ApplyForce"
	defer runtime.KeepAlive(b)
	if err := b.st.lt.check(op); err != nil {
		return err
	}
	if err := b.st.lt.engine.BodyApplyForce(b.st.lt.handle, force, point); err != nil {
		return nativeError(op, b.st.lt.handle, err)
	}
	return nil
}

func get[V any](b *RigidBody, op string, read func(native.Handle) (V, error)) (V, error) {
	defer runtime.KeepAlive(b)
	var zero V
	if err := b.st.lt.check(op); err != nil {
		return zero, err
	}
	v, err := read(b.st.lt.handle)
	if err != nil {
		return zero, nativeError(op, b.st.lt.handle, err)
	}
	return v, nil
}

func set[V any](b *RigidBody, op string, write func(native.Handle, V) error, v V) error {
	defer runtime.KeepAlive(b)
	if err := b.st.lt.check(op); err != nil {
		return err
	}
	if err := write(b.st.lt.handle, v); err != nil {
		return nativeError(op, b.st.lt.handle, err)
	}
	return nil
}
