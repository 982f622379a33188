package chipmunk

import (
	"math"
	"slices"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

// bruteForceCell makes a spatial hash with a single bucket, so every pair of
// shapes is tested.
const bruteForceCell = 1e6

const spatialHashCells = 1024

type space struct {
	h          native.Handle
	cp         *cp.Space
	broadphase native.Broadphase
	settings   native.Settings
	// rebuild is set when the broadphase changed; the cp space is recreated
	// before the next step.
	rebuild bool

	bodies      []*body
	constraints []*constraint

	velStart, velEnd time.Time
}

func newCPSpace(settings native.Settings, bp native.Broadphase) *cp.Space {
	s := cp.NewSpace()
	applySettings(s, settings)
	switch bp {
	case native.BroadphaseBruteForce:
		s.UseSpatialHash(bruteForceCell, 1)
	case native.BroadphaseSpatialHash:
		s.UseSpatialHash(settings.SpatialHashCell, spatialHashCells)
	case native.BroadphaseBVH:
	}
	return s
}

func applySettings(s *cp.Space, settings native.Settings) {
	s.SetGravity(toCP(settings.Gravity))
	s.SetDamping(settings.Damping)
	s.Iterations = uint(settings.Iterations)
}

func (s *space) trackVelocity(start, end time.Time) {
	if s.velStart.IsZero() {
		s.velStart = start
	}
	s.velEnd = end
}

func (s *space) anchor(b *body) *cp.Body {
	if b == nil {
		return s.cp.StaticBody
	}
	return b.cp
}

func (s *space) attachBody(b *body) {
	s.cp.AddBody(b.cp)
	for _, sh := range b.shapes {
		b.cp.RemoveShape(sh.cp)
		s.cp.AddShape(sh.cp)
	}
	b.space = s
	b.fixMass()
}

func (s *space) detachBody(b *body) {
	for _, sh := range b.shapes {
		s.cp.RemoveShape(sh.cp)
		b.cp.AddShape(sh.cp)
	}
	s.cp.RemoveBody(b.cp)
	b.space = nil
	b.fixMass()
}

func (s *space) attachConstraint(c *constraint) {
	c.cps = c.build(s)
	for _, x := range c.cps {
		s.cp.AddConstraint(x)
	}
	c.space = s
}

func (s *space) detachConstraint(c *constraint) {
	for _, x := range c.cps {
		s.cp.RemoveConstraint(x)
	}
	c.cps = nil
	c.space = nil
}

// reindex refreshes the broadphase entries of b's shapes after a teleport.
func (s *space) reindex(b *body) {
	for _, sh := range b.shapes {
		s.cp.RemoveShape(sh.cp)
		s.cp.AddShape(sh.cp)
	}
	b.fixMass()
}

// rebuildIndex moves every body and constraint into a fresh cp space using
// the current broadphase. cp cannot switch a space back to its tree index
// once a spatial hash is in use.
func (s *space) rebuildIndex() {
	for _, c := range s.constraints {
		for _, x := range c.cps {
			s.cp.RemoveConstraint(x)
		}
	}
	for _, b := range s.bodies {
		s.detachBody(b)
	}
	s.cp = newCPSpace(s.settings, s.broadphase)
	for _, b := range s.bodies {
		s.attachBody(b)
	}
	for _, c := range s.constraints {
		s.attachConstraint(c)
	}
	s.rebuild = false
}

func (e *Engine) CreateSpace() (native.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &space{
		h:          e.alloc(),
		broadphase: native.BroadphaseBVH,
		settings:   native.DefaultSettings(),
	}
	s.cp = newCPSpace(s.settings, s.broadphase)
	e.spaces[s.h] = s
	e.log.Debug("space created", zap.Stringer("handle", s.h))
	return s.h, nil
}

// DestroySpace releases the space and detaches, never frees, the bodies and
// constraints still in it.
func (e *Engine) DestroySpace(h native.Handle) error {
	const op = "DestroySpace"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace(op, h)
	if err != nil {
		return err
	}
	err = guard(op, h, func() {
		for _, c := range s.constraints {
			s.detachConstraint(c)
		}
		for _, b := range s.bodies {
			s.detachBody(b)
		}
	})
	if err != nil {
		return err
	}
	e.log.Debug("space destroyed",
		zap.Stringer("handle", h),
		zap.Int("detached_bodies", len(s.bodies)),
		zap.Int("detached_constraints", len(s.constraints)))
	s.bodies = nil
	s.constraints = nil
	delete(e.spaces, h)
	return nil
}

func (e *Engine) SpaceAddBody(sh, bh native.Handle) error {
	const op = "SpaceAddBody"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace(op, sh)
	if err != nil {
		return err
	}
	b, err := e.lookupBody(op, bh)
	if err != nil {
		return err
	}
	switch {
	case b.space == s:
		return native.Errorf(op, bh, native.ErrAttached, "body already in space %s", sh)
	case b.space != nil:
		return native.Errorf(op, bh, native.ErrAttached, "body belongs to space %s", b.space.h)
	}
	if err := guard(op, bh, func() { s.attachBody(b) }); err != nil {
		return err
	}
	s.bodies = append(s.bodies, b)
	return nil
}

func (e *Engine) SpaceRemoveBody(sh, bh native.Handle) error {
	const op = "SpaceRemoveBody"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace(op, sh)
	if err != nil {
		return err
	}
	b, err := e.lookupBody(op, bh)
	if err != nil {
		return err
	}
	if b.space != s {
		return native.Errorf(op, bh, native.ErrNotAttached, "body is not in space %s", sh)
	}
	for _, c := range s.constraints {
		if c.a == b || c.b == b {
			return native.Errorf(op, bh, native.ErrInUse, "body is referenced by constraint %s", c.h)
		}
	}
	if err := guard(op, bh, func() { s.detachBody(b) }); err != nil {
		return err
	}
	s.bodies = slices.DeleteFunc(s.bodies, func(x *body) bool { return x == b })
	return nil
}

func (e *Engine) SpaceAddConstraint(sh, ch native.Handle) error {
	const op = "SpaceAddConstraint"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace(op, sh)
	if err != nil {
		return err
	}
	c, err := e.lookupConstraint(op, ch)
	if err != nil {
		return err
	}
	if c.space != nil {
		return native.Errorf(op, ch, native.ErrAttached, "constraint already in space %s", c.space.h)
	}
	for _, b := range []*body{c.a, c.b} {
		if b == nil {
			continue
		}
		if b.destroyed {
			return native.Errorf(op, ch, native.ErrInvalidHandle, "constraint body %s already released", b.h)
		}
		if b.space != s {
			return native.Errorf(op, ch, native.ErrNotAttached, "constraint body %s is not in space %s", b.h, sh)
		}
	}
	if err := guard(op, ch, func() { s.attachConstraint(c) }); err != nil {
		return err
	}
	s.constraints = append(s.constraints, c)
	return nil
}

func (e *Engine) SpaceRemoveConstraint(sh, ch native.Handle) error {
	const op = "SpaceRemoveConstraint"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace(op, sh)
	if err != nil {
		return err
	}
	c, err := e.lookupConstraint(op, ch)
	if err != nil {
		return err
	}
	if c.space != s {
		return native.Errorf(op, ch, native.ErrNotAttached, "constraint is not in space %s", sh)
	}
	if err := guard(op, ch, func() { s.detachConstraint(c) }); err != nil {
		return err
	}
	s.constraints = slices.DeleteFunc(s.constraints, func(x *constraint) bool { return x == c })
	return nil
}

func (e *Engine) SpaceStep(h native.Handle, dt float64) (native.Profile, error) {
	const op = "SpaceStep"
	e.mu.Lock()
	defer e.mu.Unlock()

	var prof native.Profile
	s, err := e.lookupSpace(op, h)
	if err != nil {
		return prof, err
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return prof, native.Errorf(op, h, native.ErrBadParameter, "dt must be positive and finite, got %g", dt)
	}

	start := time.Now()
	err = guard(op, h, func() {
		if s.rebuild {
			s.rebuildIndex()
			prof.Broadphase = time.Since(start)
			if s.broadphase == native.BroadphaseBVH {
				prof.BVHBuild = prof.Broadphase
			}
		}
		n := max(s.settings.Substeps, 1)
		sub := dt / float64(n)
		for i := 0; i < n; i++ {
			s.velStart, s.velEnd = time.Time{}, time.Time{}
			s.cp.Step(sub)
			if !s.velStart.IsZero() {
				prof.IntegrateVelocities += s.velEnd.Sub(s.velStart)
			}
		}
	})
	prof.Step = time.Since(start)
	return prof, err
}

func (e *Engine) SpaceCastRay(h native.Handle, from, to native.Vec2, out []native.RayHit) (int, error) {
	const op = "SpaceCastRay"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace(op, h)
	if err != nil {
		return 0, err
	}
	if !from.IsFinite() || !to.IsFinite() {
		return 0, native.Errorf(op, h, native.ErrBadParameter, "ray endpoints must be finite")
	}

	var hits []native.RayHit
	err = guard(op, h, func() {
		s.cp.SegmentQuery(toCP(from), toCP(to), 0, cp.SHAPE_FILTER_ALL,
			func(cs *cp.Shape, point, normal cp.Vector, alpha float64, _ interface{}) {
				sh, ok := cs.UserData.(*shape)
				if !ok || sh.body == nil {
					return
				}
				hits = append(hits, native.RayHit{
					Body:     sh.body.h,
					Shape:    sh.h,
					Position: fromCP(point),
					Normal:   fromCP(normal),
					Fraction: alpha,
				})
			}, nil)
	})
	if err != nil {
		return 0, err
	}
	slices.SortStableFunc(hits, func(a, b native.RayHit) int {
		switch {
		case a.Fraction < b.Fraction:
			return -1
		case a.Fraction > b.Fraction:
			return 1
		}
		return 0
	})
	if len(hits) > len(out) {
		e.log.Debug("ray cast hits dropped",
			zap.Stringer("space", h),
			zap.Int("hits", len(hits)),
			zap.Int("capacity", len(out)))
	}
	return copy(out, hits), nil
}

func (e *Engine) SpaceBroadphase(h native.Handle) (native.Broadphase, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace("SpaceBroadphase", h)
	if err != nil {
		return 0, err
	}
	return s.broadphase, nil
}

// SetSpaceBroadphase takes effect on the next step.
func (e *Engine) SetSpaceBroadphase(h native.Handle, bp native.Broadphase) error {
	const op = "SetSpaceBroadphase"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace(op, h)
	if err != nil {
		return err
	}
	if !bp.Valid() {
		return native.Errorf(op, h, native.ErrBadParameter, "unknown broadphase %v", bp)
	}
	if bp != s.broadphase {
		s.broadphase = bp
		s.rebuild = true
	}
	return nil
}

func (e *Engine) SpaceSettings(h native.Handle) (native.Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace("SpaceSettings", h)
	if err != nil {
		return native.Settings{}, err
	}
	return s.settings, nil
}

func (e *Engine) SetSpaceSettings(h native.Handle, settings native.Settings) error {
	const op = "SetSpaceSettings"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupSpace(op, h)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return native.Errorf(op, h, native.ErrBadParameter, "%v", err)
	}
	if s.broadphase == native.BroadphaseSpatialHash && settings.SpatialHashCell != s.settings.SpatialHashCell {
		s.rebuild = true
	}
	s.settings = settings
	applySettings(s.cp, settings)
	return nil
}
