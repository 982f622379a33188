// Package scene turns a config.Scene into live nova objects.
package scene

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/san-kum/novabind/internal/config"
	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/nova"
	"go.uber.org/zap"
)

// World is a Space together with the named bodies and constraints built for
// it.
type World struct {
	Scene       *config.Scene
	Space       *nova.Space
	Constraints []nova.Constraint

	names  []string
	bodies map[string]*nova.RigidBody
	shapes []*nova.Shape
	log    *zap.Logger
}

// Build creates every object of sc on engine. On failure the objects created
// so far are released.
func Build(engine native.Engine, sc *config.Scene, log *zap.Logger) (w *World, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scene %q: %w", sc.Name, err)
	}
	bp, err := native.ParseBroadphase(sc.Broadphase)
	if err != nil {
		return nil, err
	}

	space, err := nova.NewSpace(engine)
	if err != nil {
		return nil, err
	}
	w = &World{
		Scene:  sc,
		Space:  space,
		bodies: make(map[string]*nova.RigidBody, len(sc.Bodies)),
		log:    log.With(zap.String("scene", sc.Name)),
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, w.Close())
			w = nil
		}
	}()

	if err := space.SetSettings(sc.Settings()); err != nil {
		return w, err
	}
	if err := space.SetBroadphase(bp); err != nil {
		return w, err
	}

	for _, bc := range sc.Bodies {
		if err := w.addBody(engine, bc); err != nil {
			return w, fmt.Errorf("body %q: %w", bc.Name, err)
		}
	}
	for i, cc := range sc.Constraints {
		if err := w.addConstraint(cc); err != nil {
			return w, fmt.Errorf("constraint %d: %w", i, err)
		}
	}

	w.log.Debug("world built",
		zap.Int("bodies", len(w.names)),
		zap.Int("shapes", len(w.shapes)),
		zap.Int("constraints", len(w.Constraints)),
		zap.Stringer("broadphase", bp))
	return w, nil
}

func (w *World) addBody(engine native.Engine, bc config.BodyConfig) error {
	bi, err := bc.Init()
	if err != nil {
		return err
	}
	body, err := nova.NewRigidBody(engine, bi)
	if err != nil {
		return err
	}
	body.UserData = bc.Name
	w.names = append(w.names, bc.Name)
	w.bodies[bc.Name] = body

	for _, sh := range bc.Shapes {
		def, err := sh.Def()
		if err != nil {
			return err
		}
		shape, err := newShape(engine, def)
		if err != nil {
			return err
		}
		w.shapes = append(w.shapes, shape)
		if err := body.AddShape(shape); err != nil {
			return err
		}
	}
	return w.Space.AddBody(body)
}

func newShape(engine native.Engine, def native.ShapeDef) (*nova.Shape, error) {
	switch def.Kind {
	case native.ShapeCircle:
		return nova.NewCircleShape(engine, def.Radius, def.Center)
	case native.ShapePolygon:
		return nova.NewPolygonShape(engine, def.Vertices, native.Vec2{})
	default:
		return nil, fmt.Errorf("unknown shape kind %v", def.Kind)
	}
}

func (w *World) addConstraint(cc config.ConstraintConfig) error {
	a, b := w.bodies[cc.A], w.bodies[cc.B]
	var (
		c   nova.Constraint
		err error
	)
	switch cc.Type {
	case "distance":
		c, err = nova.NewDistanceConstraint(nova.DistanceConstraintDef{
			A:       a,
			B:       b,
			Length:  cc.Length,
			AnchorA: cc.AnchorA,
			AnchorB: cc.AnchorB,
			Spring:  cc.Spring,
			Hertz:   cc.Hertz,
			Damping: cc.DampingRatio,
		})
	case "hinge":
		c, err = nova.NewHingeConstraint(nova.HingeConstraintDef{
			A:            a,
			B:            b,
			Anchor:       cc.Anchor,
			EnableLimits: cc.EnableLimits,
			Lower:        cc.Lower,
			Upper:        cc.Upper,
		})
	default:
		return fmt.Errorf("unknown constraint type %q", cc.Type)
	}
	if err != nil {
		return err
	}
	w.Constraints = append(w.Constraints, c)
	return w.Space.AddConstraint(c)
}

// Body returns the body built for name.
func (w *World) Body(name string) (*nova.RigidBody, bool) {
	b, ok := w.bodies[name]
	return b, ok
}

// Names lists the body names in scene order.
func (w *World) Names() []string { return slices.Clone(w.names) }

// Bodies yields name and body pairs in scene order.
func (w *World) Bodies() iter.Seq2[string, *nova.RigidBody] {
	return func(yield func(string, *nova.RigidBody) bool) {
		for _, name := range w.names {
			if !yield(name, w.bodies[name]) {
				return
			}
		}
	}
}

// DynamicBodies yields the bodies that move.
func (w *World) DynamicBodies() iter.Seq2[string, *nova.RigidBody] {
	return func(yield func(string, *nova.RigidBody) bool) {
		for name, b := range w.Bodies() {
			if b.Kind() == nova.Dynamic && !yield(name, b) {
				return
			}
		}
	}
}

// Close releases constraints, then the space, then bodies and finally
// shapes.
func (w *World) Close() error {
	var errs []error
	for _, c := range w.Constraints {
		errs = append(errs, c.Close())
	}
	errs = append(errs, w.Space.Close())
	for _, name := range w.names {
		errs = append(errs, w.bodies[name].Close())
	}
	for _, s := range w.shapes {
		errs = append(errs, s.Close())
	}
	if err := errors.Join(errs...); err != nil {
		w.log.Warn("world close", zap.Error(err))
		return err
	}
	return nil
}
