package native

import (
	"fmt"
	"math"
	"time"
)

// RayCastCapacity bounds the hits one ray cast reports. Extra hits are
// dropped.
const RayCastCapacity = 512

type Material struct {
	Density     float64 `json:"density" yaml:"density"`
	Restitution float64 `json:"restitution" yaml:"restitution"`
	Friction    float64 `json:"friction" yaml:"friction"`
}

var DefaultMaterial = Material{Density: 1.0, Restitution: 0.2, Friction: 0.5}

// BodyInit is the initializer record for CreateBody.
type BodyInit struct {
	Kind            BodyKind
	Position        Vec2
	Angle           float64
	LinearVelocity  Vec2
	AngularVelocity float64
	Material        Material
}

func DefaultBodyInit() BodyInit {
	return BodyInit{Kind: BodyStatic, Material: DefaultMaterial}
}

// ShapeDef is the initializer record for CreateShape. Vertices are in body
// local space with Offset already applied; Radius is used by circles.
type ShapeDef struct {
	Kind     ShapeKind
	Radius   float64
	Center   Vec2
	Vertices []Vec2
}

func CircleDef(radius float64, center Vec2) ShapeDef {
	return ShapeDef{Kind: ShapeCircle, Radius: radius, Center: center}
}

// PolygonDef translates vertices by offset. The vertex slice is copied.
func PolygonDef(vertices []Vec2, offset Vec2) ShapeDef {
	vs := make([]Vec2, len(vertices))
	for i, v := range vertices {
		vs[i] = v.Add(offset)
	}
	return ShapeDef{Kind: ShapePolygon, Vertices: vs, Center: centroid(vs)}
}

func RectDef(width, height float64, offset Vec2) ShapeDef {
	hw, hh := width/2, height/2
	return PolygonDef([]Vec2{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}, offset)
}

// NGonDef builds a regular polygon with n vertices on a circle of radius.
func NGonDef(n int, radius float64, offset Vec2) ShapeDef {
	vs := make([]Vec2, 0, max(n, 0))
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		vs = append(vs, Vec2{radius * math.Cos(a), radius * math.Sin(a)})
	}
	return PolygonDef(vs, offset)
}

// Validate checks the definition before it reaches an engine.
func (d ShapeDef) Validate() error {
	switch d.Kind {
	case ShapeCircle:
		if !(d.Radius > 0) || math.IsInf(d.Radius, 0) {
			return fmt.Errorf("circle radius must be positive, got %g", d.Radius)
		}
	case ShapePolygon:
		if len(d.Vertices) < 3 {
			return fmt.Errorf("polygon needs at least 3 vertices, got %d", len(d.Vertices))
		}
		for _, v := range d.Vertices {
			if !v.IsFinite() {
				return fmt.Errorf("polygon vertex %v is not finite", v)
			}
		}
	default:
		return fmt.Errorf("unknown shape kind %v", d.Kind)
	}
	return nil
}

func centroid(vs []Vec2) Vec2 {
	if len(vs) == 0 {
		return Vec2{}
	}
	var c Vec2
	for _, v := range vs {
		c = c.Add(v)
	}
	return c.Scale(1 / float64(len(vs)))
}

// ConstraintDef is the closed set of constraint initializer records.
type ConstraintDef interface {
	Bodies() (a, b Handle)
	constraintDef()
}

// DistanceDef keeps the anchors Length apart. A null body anchors to the
// world, in which case its anchor is a world point. With Spring set the
// constraint is soft with the given frequency and damping ratio.
type DistanceDef struct {
	A, B             Handle
	Length           float64
	AnchorA, AnchorB Vec2
	Spring           bool
	Hertz            float64
	Damping          float64
}

func (d DistanceDef) Bodies() (Handle, Handle) { return d.A, d.B }
func (DistanceDef) constraintDef()             {}

// HingeDef pins both bodies at a world Anchor. Limits bound the relative
// angle when EnableLimits is set.
type HingeDef struct {
	A, B         Handle
	Anchor       Vec2
	EnableLimits bool
	Lower, Upper float64
}

func (d HingeDef) Bodies() (Handle, Handle) { return d.A, d.B }
func (HingeDef) constraintDef()             {}

// RayHit is one native ray cast result.
type RayHit struct {
	Body     Handle
	Shape    Handle
	Position Vec2
	Normal   Vec2
	Fraction float64
}

// Profile holds phase timings of one step.
type Profile struct {
	Step                   time.Duration
	Broadphase             time.Duration
	BroadphaseFinalize     time.Duration
	BVHBuild               time.Duration
	BVHTraverse            time.Duration
	BVHFree                time.Duration
	Narrowphase            time.Duration
	IntegrateAccelerations time.Duration
	Presolve               time.Duration
	Warmstart              time.Duration
	SolveVelocities        time.Duration
	IntegrateVelocities    time.Duration
}

// Settings are the per-space solver parameters.
type Settings struct {
	Gravity         Vec2
	Iterations      int
	Damping         float64
	Substeps        int
	SpatialHashCell float64
}

func DefaultSettings() Settings {
	return Settings{
		Gravity:         Vec2{0, -9.81},
		Iterations:      10,
		Damping:         1.0,
		Substeps:        1,
		SpatialHashCell: 2.0,
	}
}

func (s Settings) Validate() error {
	if !s.Gravity.IsFinite() {
		return fmt.Errorf("gravity must be finite")
	}
	if s.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", s.Iterations)
	}
	if s.Substeps <= 0 {
		return fmt.Errorf("substeps must be positive, got %d", s.Substeps)
	}
	if s.Damping < 0 || s.Damping > 1 {
		return fmt.Errorf("damping must be in [0, 1], got %g", s.Damping)
	}
	if s.SpatialHashCell <= 0 {
		return fmt.Errorf("spatial hash cell must be positive, got %g", s.SpatialHashCell)
	}
	return nil
}
