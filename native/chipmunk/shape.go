package chipmunk

import (
	"github.com/jakecoffman/cp"
	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

// shape keeps its definition until attached: cp binds a shape to its body at
// construction, so the cp shape only exists while attached.
type shape struct {
	h    native.Handle
	def  native.ShapeDef
	body *body
	cp   *cp.Shape
}

func newCPShape(b *cp.Body, def native.ShapeDef) *cp.Shape {
	switch def.Kind {
	case native.ShapeCircle:
		return cp.NewCircle(b, def.Radius, toCP(def.Center))
	case native.ShapePolygon:
		verts := make([]cp.Vector, len(def.Vertices))
		for i, v := range def.Vertices {
			verts[i] = toCP(v)
		}
		return cp.NewPolyShape(b, len(verts), verts, cp.NewTransformIdentity(), 0)
	default:
		panic("chipmunk: unknown shape kind " + def.Kind.String())
	}
}

func (e *Engine) CreateShape(def native.ShapeDef) (native.Handle, error) {
	const op = "CreateShape"
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := def.Validate(); err != nil {
		return native.Null, native.Errorf(op, native.Null, native.ErrBadParameter, "%v", err)
	}
	def.Vertices = append([]native.Vec2(nil), def.Vertices...)
	s := &shape{h: e.alloc(), def: def}
	e.shapes[s.h] = s
	e.log.Debug("shape created", zap.Stringer("handle", s.h), zap.Stringer("kind", def.Kind))
	return s.h, nil
}

// DestroyShape fails while the shape is attached to a body.
func (e *Engine) DestroyShape(h native.Handle) error {
	const op = "DestroyShape"
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupShape(op, h)
	if err != nil {
		return err
	}
	if s.body != nil {
		return native.Errorf(op, h, native.ErrInUse, "shape is attached to body %s", s.body.h)
	}
	delete(e.shapes, h)
	e.log.Debug("shape destroyed", zap.Stringer("handle", h))
	return nil
}

func (e *Engine) ShapeKind(h native.Handle) (native.ShapeKind, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.lookupShape("ShapeKind", h)
	if err != nil {
		return 0, err
	}
	return s.def.Kind, nil
}
