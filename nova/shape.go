package nova

import (
	"runtime"

	"github.com/san-kum/novabind/native"
)

// Shape is collision geometry attached to at most one RigidBody.
type Shape struct {
	lt  *lifetime
	def native.ShapeDef

	UserData any
}

func (s *Shape) life() *lifetime { return s.lt }

func newShape(engine native.Engine, op string, def native.ShapeDef) (*Shape, error) {
	if engine == nil {
		return nil, opError(op, ErrInvalidArgument, native.Null, "nil engine")
	}
	if err := def.Validate(); err != nil {
		return nil, opError(op, ErrInvalidArgument, native.Null, err.Error())
	}
	h, err := engine.CreateShape(def)
	if err != nil || h.IsNull() {
		return nil, initError(op, err)
	}
	s := &Shape{
		lt:  newLifetime("shape", engine, h, engine.DestroyShape),
		def: def,
	}
	runtime.AddCleanup(s, func(lt *lifetime) { lt.collect() }, s.lt)
	return s, nil
}

// NewCircleShape creates a circle of radius centred at center in body space.
func NewCircleShape(engine native.Engine, radius float64, center Vec2) (*Shape, error) {
	return newShape(engine, "NewCircleShape", native.CircleDef(radius, center))
}

// NewPolygonShape creates a convex polygon from vertices translated by offset.
func NewPolygonShape(engine native.Engine, vertices []Vec2, offset Vec2) (*Shape, error) {
	return newShape(engine, "NewPolygonShape", native.PolygonDef(vertices, offset))
}

func NewRectShape(engine native.Engine, width, height float64, offset Vec2) (*Shape, error) {
	return newShape(engine, "NewRectShape", native.RectDef(width, height, offset))
}

// NewBoxShape is NewRectShape.
func NewBoxShape(engine native.Engine, width, height float64, offset Vec2) (*Shape, error) {
	return newShape(engine, "NewBoxShape", native.RectDef(width, height, offset))
}

// NewNGonShape creates a regular polygon with n vertices.
func NewNGonShape(engine native.Engine, n int, radius float64, offset Vec2) (*Shape, error) {
	return newShape(engine, "NewNGonShape", native.NGonDef(n, radius, offset))
}

func (s *Shape) Handle() native.Handle { return s.lt.handle }

// Owned reports whether a RigidBody currently holds the shape.
func (s *Shape) Owned() bool { return s.lt.owned.Load() }

func (s *Shape) Closed() bool { return s.lt.released.Load() }

// Kind reads the shape kind from the engine.
func (s *Shape) Kind() (ShapeKind, error) {
	const op = "Shape.Kind"
	defer runtime.KeepAlive(s)
	if err := s.lt.check(op); err != nil {
		return 0, err
	}
	k, err := s.lt.engine.ShapeKind(s.lt.handle)
	if err != nil {
		return 0, nativeError(op, s.lt.handle, err)
	}
	return k, nil
}

// Radius is the circle radius, zero for polygons.
func (s *Shape) Radius() float64 { return s.def.Radius }

// Vertices returns a copy of the polygon vertices in body space.
func (s *Shape) Vertices() []Vec2 { return append([]Vec2(nil), s.def.Vertices...) }

// Center is the circle centre or polygon centroid in body space.
func (s *Shape) Center() Vec2 { return s.def.Center }

// Close releases the native shape. It returns ErrOwned while attached to a
// body and is a no-op once released.
func (s *Shape) Close() error {
	defer runtime.KeepAlive(s)
	return s.lt.release("Shape.Close")
}
