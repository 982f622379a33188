package nova

import (
	"errors"
	"iter"
	"runtime"
	"slices"
	"sync"

	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

// Space is a simulated world. It owns the bodies added to it and references
// the constraints added to it.
type Space struct {
	st *spaceState
}

// spaceState is the cleanup argument of a Space. Registered bodies stay
// reachable through it until the space is released.
type spaceState struct {
	lt *lifetime

	mu          sync.Mutex
	bodies      *registry[*RigidBody]
	constraints []Constraint
	profiler    Profiler
}

// NewSpace allocates an empty space on engine.
func NewSpace(engine native.Engine) (*Space, error) {
	const op = "NewSpace"
	if engine == nil {
		return nil, opError(op, ErrInvalidArgument, native.Null, "nil engine")
	}
	h, err := engine.CreateSpace()
	if err != nil || h.IsNull() {
		return nil, initError(op, err)
	}
	st := &spaceState{
		lt:     newLifetime("space", engine, h, engine.DestroySpace),
		bodies: newRegistry[*RigidBody]("space.bodies"),
	}
	s := &Space{st: st}
	runtime.AddCleanup(s, func(st *spaceState) { st.collect() }, st)
	logger().Debug("space created", zap.Stringer("handle", h))
	return s, nil
}

func (st *spaceState) collect() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lt.collect() {
		st.orphan()
	}
}

// orphan forgets every child after the native space is gone. Callers hold mu.
func (st *spaceState) orphan() {
	bodies := st.bodies.clear()
	for _, c := range st.constraints {
		c.constraint().space.CompareAndSwap(st, nil)
	}
	st.constraints = nil
	if len(bodies) > 0 {
		logger().Debug("space released with bodies",
			zap.Stringer("handle", st.lt.handle), zap.Int("bodies", len(bodies)))
	}
}

func (s *Space) Handle() native.Handle { return s.st.lt.handle }
func (s *Space) Closed() bool          { return s.st.lt.released.Load() }

// Close releases the native space. Bodies still registered are detached and
// handed back to their callers, who become responsible for closing them.
func (s *Space) Close() error {
	defer runtime.KeepAlive(s)
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lt.released.Load() {
		return nil
	}
	if err := st.lt.release("Space.Close"); err != nil {
		return err
	}
	st.orphan()
	return nil
}

func (st *spaceState) enter(op string) error {
	return st.lt.check(op)
}

func (st *spaceState) sameEngine(op string, other *lifetime) error {
	if other.engine != st.lt.engine {
		return opError(op, ErrInvalidArgument, other.handle, other.what+" belongs to another engine")
	}
	return nil
}

// AddBody registers b and takes ownership of it.
func (s *Space) AddBody(b *RigidBody) error {
	const op = "Space.AddBody"
	defer runtime.KeepAlive(s)
	if b == nil {
		return opError(op, ErrInvalidArgument, s.Handle(), "nil body")
	}
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return err
	}
	if err := b.st.lt.check(op); err != nil {
		return err
	}
	if err := st.sameEngine(op, b.st.lt); err != nil {
		return err
	}
	return st.bodies.register(op, b, func() error {
		return st.lt.engine.SpaceAddBody(st.lt.handle, b.st.lt.handle)
	})
}

// RemoveBody unregisters b, then detaches its shapes so that b and each of
// them can be closed independently.
func (s *Space) RemoveBody(b *RigidBody) error {
	const op = "Space.RemoveBody"
	defer runtime.KeepAlive(s)
	if b == nil {
		return opError(op, ErrInvalidArgument, s.Handle(), "nil body")
	}
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return err
	}
	return st.removeBody(op, b)
}

func (st *spaceState) removeBody(op string, b *RigidBody) error {
	err := st.bodies.unregister(op, b, func() error {
		return st.lt.engine.SpaceRemoveBody(st.lt.handle, b.st.lt.handle)
	})
	if err != nil {
		return err
	}
	return b.st.detachShapes(op)
}

// Bodies yields the registered bodies in registration order.
func (s *Space) Bodies() iter.Seq[*RigidBody] { return s.st.bodies.all() }

func (s *Space) BodyCount() int { return s.st.bodies.count() }

// Body returns the i-th registered body.
func (s *Space) Body(i int) (*RigidBody, bool) { return s.st.bodies.at(i) }

// ResolveBody maps a native body handle to the registered wrapper.
func (s *Space) ResolveBody(h native.Handle) (*RigidBody, bool) {
	return s.st.bodies.resolve(h)
}

// AddConstraint adds c to the simulation. The space keeps a reference to c
// but never releases it.
func (s *Space) AddConstraint(c Constraint) error {
	const op = "Space.AddConstraint"
	defer runtime.KeepAlive(s)
	if c == nil {
		return opError(op, ErrInvalidArgument, s.Handle(), "nil constraint")
	}
	base := c.constraint()
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return err
	}
	if err := base.lt.check(op); err != nil {
		return err
	}
	if err := st.sameEngine(op, base.lt); err != nil {
		return err
	}
	if base.space.Load() == st {
		return opError(op, ErrDuplicateRegistration, base.lt.handle, "")
	}
	if err := st.lt.engine.SpaceAddConstraint(st.lt.handle, base.lt.handle); err != nil {
		return nativeError(op, base.lt.handle, err)
	}
	base.space.Store(st)
	st.constraints = append(st.constraints, c)
	return nil
}

// RemoveConstraint takes c out of the simulation without releasing it.
func (s *Space) RemoveConstraint(c Constraint) error {
	const op = "Space.RemoveConstraint"
	defer runtime.KeepAlive(s)
	if c == nil {
		return opError(op, ErrInvalidArgument, s.Handle(), "nil constraint")
	}
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return err
	}
	return st.removeConstraint(op, c)
}

func (st *spaceState) removeConstraint(op string, c Constraint) error {
	base := c.constraint()
	if base.space.Load() != st {
		return opError(op, ErrNotRegistered, base.lt.handle, "")
	}
	if err := st.lt.engine.SpaceRemoveConstraint(st.lt.handle, base.lt.handle); err != nil {
		return nativeError(op, base.lt.handle, err)
	}
	st.forget(base)
	return nil
}

// forget drops base from the constraint list. Callers hold mu.
func (st *spaceState) forget(base *constraintBase) {
	base.space.CompareAndSwap(st, nil)
	st.constraints = slices.DeleteFunc(st.constraints, func(x Constraint) bool {
		return x.constraint() == base
	})
}

// Constraints yields the constraints added through this space.
func (s *Space) Constraints() iter.Seq[Constraint] {
	s.st.mu.Lock()
	cs := slices.Clone(s.st.constraints)
	s.st.mu.Unlock()
	return slices.Values(cs)
}

func (s *Space) ConstraintCount() int {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return len(s.st.constraints)
}

// Clear removes every constraint and body from the space. Bodies are handed
// back with their shapes detached.
func (s *Space) Clear() error {
	const op = "Space.Clear"
	defer runtime.KeepAlive(s)
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return err
	}
	var errs []error
	for _, c := range slices.Clone(st.constraints) {
		if err := st.removeConstraint(op, c); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range st.bodies.snapshot() {
		if err := st.removeBody(op, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Step advances the simulation by dt seconds and records the phase timings.
func (s *Space) Step(dt float64) error {
	const op = "Space.Step"
	defer runtime.KeepAlive(s)
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return err
	}
	prof, err := st.lt.engine.SpaceStep(st.lt.handle, dt)
	if err != nil {
		return nativeError(op, st.lt.handle, err)
	}
	st.profiler = Profiler(prof)
	return nil
}

// Profiler returns the timings of the last successful Step.
func (s *Space) Profiler() Profiler {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.profiler
}

// CastRay reports the shapes crossed by the segment from-to, nearest first.
// At most RayCastCapacity hits are reported.
func (s *Space) CastRay(from, to Vec2) ([]RayCastResult, error) {
	const op = "Space.CastRay"
	defer runtime.KeepAlive(s)
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return nil, err
	}
	buf := make([]native.RayHit, RayCastCapacity)
	n, err := st.lt.engine.SpaceCastRay(st.lt.handle, from, to, buf)
	if err != nil {
		return nil, nativeError(op, st.lt.handle, err)
	}
	results := make([]RayCastResult, 0, n)
	for _, hit := range buf[:min(n, len(buf))] {
		body, ok := st.bodies.resolve(hit.Body)
		if !ok {
			logger().Debug("ray hit on unregistered body", zap.Stringer("body", hit.Body))
			continue
		}
		shape, ok := body.ResolveShape(hit.Shape)
		if !ok {
			logger().Debug("ray hit on unregistered shape",
				zap.Stringer("body", hit.Body), zap.Stringer("shape", hit.Shape))
			continue
		}
		results = append(results, RayCastResult{
			Position: hit.Position,
			Normal:   hit.Normal,
			Fraction: hit.Fraction,
			Body:     body,
			Shape:    shape,
		})
	}
	return results, nil
}

// Broadphase reports the spatial partitioning strategy.
func (s *Space) Broadphase() (Broadphase, error) {
	const op = "Space.Broadphase"
	defer runtime.KeepAlive(s)
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return 0, err
	}
	b, err := st.lt.engine.SpaceBroadphase(st.lt.handle)
	if err != nil {
		return 0, nativeError(op, st.lt.handle, err)
	}
	return b, nil
}

// SetBroadphase switches the strategy from the next Step on.
func (s *Space) SetBroadphase(b Broadphase) error {
	const op = "Space.SetBroadphase"
	defer runtime.KeepAlive(s)
	if !b.Valid() {
		return opError(op, ErrInvalidArgument, s.Handle(), "unknown broadphase "+b.String())
	}
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return err
	}
	if err := st.lt.engine.SetSpaceBroadphase(st.lt.handle, b); err != nil {
		return nativeError(op, st.lt.handle, err)
	}
	return nil
}

func (s *Space) Settings() (Settings, error) {
	const op = "Space.Settings"
	defer runtime.KeepAlive(s)
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return Settings{}, err
	}
	set, err := st.lt.engine.SpaceSettings(st.lt.handle)
	if err != nil {
		return Settings{}, nativeError(op, st.lt.handle, err)
	}
	return set, nil
}

func (s *Space) SetSettings(set Settings) error {
	const op = "Space.SetSettings"
	defer runtime.KeepAlive(s)
	if err := set.Validate(); err != nil {
		return opError(op, ErrInvalidArgument, s.Handle(), err.Error())
	}
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.enter(op); err != nil {
		return err
	}
	if err := st.lt.engine.SetSpaceSettings(st.lt.handle, set); err != nil {
		return nativeError(op, st.lt.handle, err)
	}
	return nil
}

// SetGravity updates only the gravity of the space settings.
func (s *Space) SetGravity(g Vec2) error {
	set, err := s.Settings()
	if err != nil {
		return err
	}
	set.Gravity = g
	return s.SetSettings(set)
}
