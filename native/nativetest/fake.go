// Package nativetest provides an in-memory native.Engine that records every
// call, for tests of code layered on the engine boundary.
package nativetest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/san-kum/novabind/native"
)

const (
	kindSpace      = "space"
	kindBody       = "body"
	kindShape      = "shape"
	kindConstraint = "constraint"
)

type object struct {
	kind   string
	parent native.Handle

	// space
	broadphase native.Broadphase
	settings   native.Settings
	bodies     []native.Handle
	cons       []native.Handle

	// body
	init           native.BodyInit
	shapes         []native.Handle
	linearDamping  float64
	angularDamping float64
	inertia        float64

	// shape
	def native.ShapeDef

	// constraint
	cdef native.ConstraintDef
}

// Fake implements native.Engine without simulating anything. Positions and
// velocities are stored and returned verbatim; SpaceStep returns the profile
// set with SetProfile and SpaceCastRay the hits set with ScriptRay.
type Fake struct {
	mu       sync.Mutex
	next     native.Handle
	objects  map[native.Handle]*object
	freed    map[native.Handle]int
	calls    map[string]int
	failNext map[string]string
	nullNext map[string]bool
	hits     []native.RayHit
	profile  native.Profile
}

var _ native.Engine = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		objects:  make(map[native.Handle]*object),
		freed:    make(map[native.Handle]int),
		calls:    make(map[string]int),
		failNext: make(map[string]string),
		nullNext: make(map[string]bool),
	}
}

// Calls returns how many times op was invoked, failures included.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Live reports whether h was allocated and not yet destroyed.
func (f *Fake) Live(h native.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[h]
	return ok
}

// Freed returns how many times h was successfully destroyed.
func (f *Fake) Freed(h native.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freed[h]
}

// LiveCount returns the number of live handles.
func (f *Fake) LiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// FailNext makes the next call of op fail with msg and no state change.
func (f *Fake) FailNext(op, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = msg
}

// NullNext makes the next create call of op return the null handle.
func (f *Fake) NullNext(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nullNext[op] = true
}

func (f *Fake) ScriptRay(hits ...native.RayHit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = slices.Clone(hits)
}

func (f *Fake) SetProfile(p native.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
}

// Parent returns the container h is attached to, or the null handle.
func (f *Fake) Parent(h native.Handle) native.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[h]; ok {
		return o.parent
	}
	return native.Null
}

// enter records the call and consumes a scripted failure. Callers hold mu.
func (f *Fake) enter(op string, h native.Handle) error {
	f.calls[op]++
	if msg, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return &native.Error{Op: op, Handle: h, Msg: msg}
	}
	return nil
}

func (f *Fake) create(op string, o *object) (native.Handle, error) {
	if err := f.enter(op, native.Null); err != nil {
		return native.Null, err
	}
	if f.nullNext[op] {
		delete(f.nullNext, op)
		return native.Null, nil
	}
	f.next++
	f.objects[f.next] = o
	return f.next, nil
}

func (f *Fake) get(op string, h native.Handle, kind string) (*object, error) {
	o, ok := f.objects[h]
	switch {
	case !ok:
		return nil, native.Errorf(op, h, native.ErrInvalidHandle, "no live %s", kind)
	case o.kind != kind:
		return nil, native.Errorf(op, h, native.ErrWrongKind, "want %s, got %s", kind, o.kind)
	}
	return o, nil
}

func (f *Fake) destroy(op string, h native.Handle, kind string, check func(*object) error) error {
	if err := f.enter(op, h); err != nil {
		return err
	}
	o, err := f.get(op, h, kind)
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(o); err != nil {
			return err
		}
	}
	delete(f.objects, h)
	f.freed[h]++
	return nil
}

func (f *Fake) CreateSpace() (native.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.create("CreateSpace", &object{
		kind:       kindSpace,
		broadphase: native.BroadphaseBVH,
		settings:   native.DefaultSettings(),
	})
}

func (f *Fake) DestroySpace(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroy("DestroySpace", h, kindSpace, func(o *object) error {
		for _, c := range slices.Concat(o.bodies, o.cons) {
			if child, ok := f.objects[c]; ok {
				child.parent = native.Null
			}
		}
		return nil
	})
}

func (f *Fake) SpaceAddBody(sh, bh native.Handle) error {
	const op = "SpaceAddBody"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, bh); err != nil {
		return err
	}
	s, err := f.get(op, sh, kindSpace)
	if err != nil {
		return err
	}
	b, err := f.get(op, bh, kindBody)
	if err != nil {
		return err
	}
	if !b.parent.IsNull() {
		return native.Errorf(op, bh, native.ErrAttached, "body in space %s", b.parent)
	}
	b.parent = sh
	s.bodies = append(s.bodies, bh)
	return nil
}

func (f *Fake) SpaceRemoveBody(sh, bh native.Handle) error {
	const op = "SpaceRemoveBody"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, bh); err != nil {
		return err
	}
	s, err := f.get(op, sh, kindSpace)
	if err != nil {
		return err
	}
	b, err := f.get(op, bh, kindBody)
	if err != nil {
		return err
	}
	if b.parent != sh {
		return native.Errorf(op, bh, native.ErrNotAttached, "body not in space %s", sh)
	}
	b.parent = native.Null
	s.bodies = slices.DeleteFunc(s.bodies, func(x native.Handle) bool { return x == bh })
	return nil
}

func (f *Fake) SpaceAddConstraint(sh, ch native.Handle) error {
	const op = "SpaceAddConstraint"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, ch); err != nil {
		return err
	}
	s, err := f.get(op, sh, kindSpace)
	if err != nil {
		return err
	}
	c, err := f.get(op, ch, kindConstraint)
	if err != nil {
		return err
	}
	if !c.parent.IsNull() {
		return native.Errorf(op, ch, native.ErrAttached, "constraint in space %s", c.parent)
	}
	c.parent = sh
	s.cons = append(s.cons, ch)
	return nil
}

func (f *Fake) SpaceRemoveConstraint(sh, ch native.Handle) error {
	const op = "SpaceRemoveConstraint"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, ch); err != nil {
		return err
	}
	s, err := f.get(op, sh, kindSpace)
	if err != nil {
		return err
	}
	c, err := f.get(op, ch, kindConstraint)
	if err != nil {
		return err
	}
	if c.parent != sh {
		return native.Errorf(op, ch, native.ErrNotAttached, "constraint not in space %s", sh)
	}
	c.parent = native.Null
	s.cons = slices.DeleteFunc(s.cons, func(x native.Handle) bool { return x == ch })
	return nil
}

func (f *Fake) SpaceStep(h native.Handle, dt float64) (native.Profile, error) {
	const op = "SpaceStep"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, h); err != nil {
		return native.Profile{}, err
	}
	if _, err := f.get(op, h, kindSpace); err != nil {
		return native.Profile{}, err
	}
	if !(dt > 0) {
		return native.Profile{}, native.Errorf(op, h, native.ErrBadParameter, "dt %g", dt)
	}
	return f.profile, nil
}

func (f *Fake) SpaceCastRay(h native.Handle, from, to native.Vec2, out []native.RayHit) (int, error) {
	const op = "SpaceCastRay"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, h); err != nil {
		return 0, err
	}
	if _, err := f.get(op, h, kindSpace); err != nil {
		return 0, err
	}
	return copy(out, f.hits), nil
}

func (f *Fake) SpaceBroadphase(h native.Handle) (native.Broadphase, error) {
	const op = "SpaceBroadphase"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, h); err != nil {
		return 0, err
	}
	s, err := f.get(op, h, kindSpace)
	if err != nil {
		return 0, err
	}
	return s.broadphase, nil
}

func (f *Fake) SetSpaceBroadphase(h native.Handle, bp native.Broadphase) error {
	const op = "SetSpaceBroadphase"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, h); err != nil {
		return err
	}
	s, err := f.get(op, h, kindSpace)
	if err != nil {
		return err
	}
	if !bp.Valid() {
		return native.Errorf(op, h, native.ErrBadParameter, "broadphase %v", bp)
	}
	s.broadphase = bp
	return nil
}

func (f *Fake) SpaceSettings(h native.Handle) (native.Settings, error) {
	const op = "SpaceSettings"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, h); err != nil {
		return native.Settings{}, err
	}
	s, err := f.get(op, h, kindSpace)
	if err != nil {
		return native.Settings{}, err
	}
	return s.settings, nil
}

func (f *Fake) SetSpaceSettings(h native.Handle, settings native.Settings) error {
	const op = "SetSpaceSettings"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, h); err != nil {
		return err
	}
	s, err := f.get(op, h, kindSpace)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return native.Errorf(op, h, native.ErrBadParameter, "%v", err)
	}
	s.settings = settings
	return nil
}

func (f *Fake) CreateBody(init native.BodyInit) (native.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !init.Kind.Valid() {
		f.calls["CreateBody"]++
		return native.Null, native.Errorf("CreateBody", native.Null, native.ErrBadParameter, "kind %v", init.Kind)
	}
	return f.create("CreateBody", &object{
		kind:           kindBody,
		init:           init,
		linearDamping:  1,
		angularDamping: 1,
		inertia:        1,
	})
}

func (f *Fake) DestroyBody(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroy("DestroyBody", h, kindBody, func(o *object) error {
		if !o.parent.IsNull() {
			return native.Errorf("DestroyBody", h, native.ErrInUse, "body in space %s", o.parent)
		}
		for _, s := range o.shapes {
			if child, ok := f.objects[s]; ok {
				child.parent = native.Null
			}
		}
		return nil
	})
}

func (f *Fake) BodyAddShape(bh, sh native.Handle) error {
	const op = "BodyAddShape"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, sh); err != nil {
		return err
	}
	b, err := f.get(op, bh, kindBody)
	if err != nil {
		return err
	}
	s, err := f.get(op, sh, kindShape)
	if err != nil {
		return err
	}
	if !s.parent.IsNull() {
		return native.Errorf(op, sh, native.ErrAttached, "shape on body %s", s.parent)
	}
	s.parent = bh
	b.shapes = append(b.shapes, sh)
	return nil
}

func (f *Fake) BodyRemoveShape(bh, sh native.Handle) error {
	const op = "BodyRemoveShape"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, sh); err != nil {
		return err
	}
	b, err := f.get(op, bh, kindBody)
	if err != nil {
		return err
	}
	s, err := f.get(op, sh, kindShape)
	if err != nil {
		return err
	}
	if s.parent != bh {
		return native.Errorf(op, sh, native.ErrNotAttached, "shape not on body %s", bh)
	}
	s.parent = native.Null
	b.shapes = slices.DeleteFunc(b.shapes, func(x native.Handle) bool { return x == sh })
	return nil
}

// body runs fn on the body object after the common bookkeeping.
func (f *Fake) body(op string, h native.Handle, fn func(*object) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, h); err != nil {
		return err
	}
	o, err := f.get(op, h, kindBody)
	if err != nil {
		return err
	}
	return fn(o)
}

func (f *Fake) BodyKind(h native.Handle) (k native.BodyKind, err error) {
	err = f.body("BodyKind", h, func(o *object) error { k = o.init.Kind; return nil })
	return k, err
}

func (f *Fake) BodyPosition(h native.Handle) (p native.Vec2, err error) {
	err = f.body("BodyPosition", h, func(o *object) error { p = o.init.Position; return nil })
	return p, err
}

func (f *Fake) SetBodyPosition(h native.Handle, p native.Vec2) error {
	return f.body("SetBodyPosition", h, func(o *object) error { o.init.Position = p; return nil })
}

func (f *Fake) BodyAngle(h native.Handle) (a float64, err error) {
	err = f.body("BodyAngle", h, func(o *object) error { a = o.init.Angle; return nil })
	return a, err
}

func (f *Fake) SetBodyAngle(h native.Handle, a float64) error {
	return f.body("SetBodyAngle", h, func(o *object) error { o.init.Angle = a; return nil })
}

func (f *Fake) BodyLinearVelocity(h native.Handle) (v native.Vec2, err error) {
	err = f.body("BodyLinearVelocity", h, func(o *object) error { v = o.init.LinearVelocity; return nil })
	return v, err
}

func (f *Fake) SetBodyLinearVelocity(h native.Handle, v native.Vec2) error {
	return f.body("SetBodyLinearVelocity", h, func(o *object) error { o.init.LinearVelocity = v; return nil })
}

func (f *Fake) BodyAngularVelocity(h native.Handle) (w float64, err error) {
	err = f.body("BodyAngularVelocity", h, func(o *object) error { w = o.init.AngularVelocity; return nil })
	return w, err
}

func (f *Fake) SetBodyAngularVelocity(h native.Handle, w float64) error {
	return f.body("SetBodyAngularVelocity", h, func(o *object) error { o.init.AngularVelocity = w; return nil })
}

func (f *Fake) BodyLinearDampingScale(h native.Handle) (s float64, err error) {
	err = f.body("BodyLinearDampingScale", h, func(o *object) error { s = o.linearDamping; return nil })
	return s, err
}

func (f *Fake) SetBodyLinearDampingScale(h native.Handle, s float64) error {
	return f.body("SetBodyLinearDampingScale", h, func(o *object) error { o.linearDamping = s; return nil })
}

func (f *Fake) BodyAngularDampingScale(h native.Handle) (s float64, err error) {
	err = f.body("BodyAngularDampingScale", h, func(o *object) error { s = o.angularDamping; return nil })
	return s, err
}

func (f *Fake) SetBodyAngularDampingScale(h native.Handle, s float64) error {
	return f.body("SetBodyAngularDampingScale", h, func(o *object) error { o.angularDamping = s; return nil })
}

func (f *Fake) BodyInertia(h native.Handle) (i float64, err error) {
	err = f.body("BodyInertia", h, func(o *object) error { i = o.inertia; return nil })
	return i, err
}

func (f *Fake) SetBodyInertia(h native.Handle, i float64) error {
	return f.body("SetBodyInertia", h, func(o *object) error { o.inertia = i; return nil })
}

// BodyMass is the material density times the number of attached shapes.
func (f *Fake) BodyMass(h native.Handle) (m float64, err error) {
	err = f.body("BodyMass", h, func(o *object) error {
		if o.init.Kind == native.BodyDynamic {
			m = o.init.Material.Density * float64(max(len(o.shapes), 1))
		}
		return nil
	})
	return m, err
}

func (f *Fake) BodyAABB(h native.Handle) (box native.AABB, err error) {
	err = f.body("BodyAABB", h, func(o *object) error {
		box = native.AABB{Min: o.init.Position, Max: o.init.Position}
		return nil
	})
	return box, err
}

func (f *Fake) BodyApplyForce(h native.Handle, force, point native.Vec2) error {
	return f.body("BodyApplyForce", h, func(o *object) error {
		if o.init.Kind != native.BodyDynamic {
			return native.Errorf("BodyApplyForce", h, native.ErrBadParameter, "static body")
		}
		return nil
	})
}

func (f *Fake) CreateShape(def native.ShapeDef) (native.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := def.Validate(); err != nil {
		f.calls["CreateShape"]++
		return native.Null, native.Errorf("CreateShape", native.Null, native.ErrBadParameter, "%v", err)
	}
	return f.create("CreateShape", &object{kind: kindShape, def: def})
}

func (f *Fake) DestroyShape(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroy("DestroyShape", h, kindShape, func(o *object) error {
		if !o.parent.IsNull() {
			return native.Errorf("DestroyShape", h, native.ErrInUse, "shape on body %s", o.parent)
		}
		return nil
	})
}

func (f *Fake) ShapeKind(h native.Handle) (native.ShapeKind, error) {
	const op = "ShapeKind"
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(op, h); err != nil {
		return 0, err
	}
	o, err := f.get(op, h, kindShape)
	if err != nil {
		return 0, err
	}
	return o.def.Kind, nil
}

func (f *Fake) CreateConstraint(def native.ConstraintDef) (native.Handle, error) {
	const op = "CreateConstraint"
	f.mu.Lock()
	defer f.mu.Unlock()
	if def == nil {
		f.calls[op]++
		return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "nil definition")
	}
	a, b := def.Bodies()
	if a.IsNull() && b.IsNull() {
		f.calls[op]++
		return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "no bodies")
	}
	for _, h := range []native.Handle{a, b} {
		if h.IsNull() {
			continue
		}
		if _, err := f.get(op, h, kindBody); err != nil {
			f.calls[op]++
			return native.Null, err
		}
	}
	return f.create(op, &object{kind: kindConstraint, cdef: def})
}

func (f *Fake) DestroyConstraint(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroy("DestroyConstraint", h, kindConstraint, func(o *object) error {
		if s, ok := f.objects[o.parent]; ok {
			s.cons = slices.DeleteFunc(s.cons, func(x native.Handle) bool { return x == h })
		}
		return nil
	})
}

func (f *Fake) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("nativetest.Fake{live: %d, next: %d}", len(f.objects), f.next)
}
