package nova

import (
	"time"

	"github.com/san-kum/novabind/native"
)

type (
	Vec2       = native.Vec2
	AABB       = native.AABB
	Material   = native.Material
	BodyKind   = native.BodyKind
	ShapeKind  = native.ShapeKind
	Broadphase = native.Broadphase
	Settings   = native.Settings
	// BodyDef is the initial state of a RigidBody.
	BodyDef = native.BodyInit
)

const (
	Static  = native.BodyStatic
	Dynamic = native.BodyDynamic

	Circle  = native.ShapeCircle
	Polygon = native.ShapePolygon

	BruteForce  = native.BroadphaseBruteForce
	BVH         = native.BroadphaseBVH
	SpatialHash = native.BroadphaseSpatialHash
)

// RayCastCapacity bounds the hits a single CastRay reports.
const RayCastCapacity = native.RayCastCapacity

var DefaultMaterial = native.DefaultMaterial

func V(x, y float64) Vec2 { return native.V(x, y) }

// Profiler is the timing snapshot of the last Space.Step.
type Profiler struct {
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

type Phase struct {
	Name     string
	Duration time.Duration
}

// Phases lists the timings in step order.
func (p Profiler) Phases() []Phase {
	return []Phase{
		{"step", p.Step},
		{"broadphase", p.Broadphase},
		{"broadphase_finalize", p.BroadphaseFinalize},
		{"bvh_build", p.BVHBuild},
		{"bvh_traverse", p.BVHTraverse},
		{"bvh_free", p.BVHFree},
		{"narrowphase", p.Narrowphase},
		{"integrate_accelerations", p.IntegrateAccelerations},
		{"presolve", p.Presolve},
		{"warmstart", p.Warmstart},
		{"solve_velocities", p.SolveVelocities},
		{"integrate_velocities", p.IntegrateVelocities},
	}
}

// RayCastResult is one ray hit resolved to its wrappers.
type RayCastResult struct {
	Position Vec2
	Normal   Vec2
	Fraction float64
	Body     *RigidBody
	Shape    *Shape
}
