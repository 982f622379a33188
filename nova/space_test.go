package nova_test

import (
	"slices"
	"testing"
	"time"

	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/native/chipmunk"
	"github.com/san-kum/novabind/native/nativetest"
	"github.com/san-kum/novabind/nova"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCircle(t *testing.T, e native.Engine, p nova.Vec2, r float64) (*nova.RigidBody, *nova.Shape) {
	t.Helper()
	def := native.DefaultBodyInit()
	def.Position = p
	body, err := nova.NewRigidBody(e, def)
	require.NoError(t, err)
	shape, err := nova.NewCircleShape(e, r, nova.V(0, 0))
	require.NoError(t, err)
	require.NoError(t, body.AddShape(shape))
	return body, shape
}

func TestCastRayResolvesWrappers(t *testing.T) {
	e := chipmunk.New()
	space, err := nova.NewSpace(e)
	require.NoError(t, err)
	body, shape := staticCircle(t, e, nova.V(5, 0), 1)
	require.NoError(t, space.AddBody(body))

	hits, err := space.CastRay(nova.V(0, 0), nova.V(10, 0))
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hit := hits[0]
	assert.Same(t, body, hit.Body)
	assert.Same(t, shape, hit.Shape)
	assert.InDelta(t, 4.0, hit.Position.X, 1e-6)
	assert.InDelta(t, 0.0, hit.Position.Y, 1e-6)
	assert.InDelta(t, -1.0, hit.Normal.X, 1e-6)
	assert.InDelta(t, 0.0, hit.Normal.Y, 1e-6)
	assert.InDelta(t, 0.4, hit.Fraction, 1e-6)
}

func TestCastRayMissesAfterRemoval(t *testing.T) {
	e := chipmunk.New()
	space, err := nova.NewSpace(e)
	require.NoError(t, err)
	body, _ := staticCircle(t, e, nova.V(5, 0), 1)
	require.NoError(t, space.AddBody(body))
	require.NoError(t, space.RemoveBody(body))

	hits, err := space.CastRay(nova.V(0, 0), nova.V(10, 0))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCastRaySkipsUnresolvedHits(t *testing.T) {
	fake := nativetest.New()
	space, err := nova.NewSpace(fake)
	require.NoError(t, err)
	body, shape := staticCircle(t, fake, nova.V(5, 0), 1)
	require.NoError(t, space.AddBody(body))

	fake.ScriptRay(
		native.RayHit{Body: 999, Shape: 998, Fraction: 0.1},
		native.RayHit{Body: body.Handle(), Shape: 997, Fraction: 0.2},
		native.RayHit{Body: body.Handle(), Shape: shape.Handle(), Fraction: 0.4},
	)
	hits, err := space.CastRay(nova.V(0, 0), nova.V(10, 0))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Same(t, shape, hits[0].Shape)
	assert.Equal(t, 0.4, hits[0].Fraction)
}

func TestStepCopiesProfile(t *testing.T) {
	fake := nativetest.New()
	space, err := nova.NewSpace(fake)
	require.NoError(t, err)
	fake.SetProfile(native.Profile{
		Step:            3 * time.Millisecond,
		Narrowphase:     time.Millisecond,
		SolveVelocities: 2 * time.Millisecond,
	})

	assert.Equal(t, nova.Profiler{}, space.Profiler())
	require.NoError(t, space.Step(1.0/60))

	prof := space.Profiler()
	assert.Equal(t, 3*time.Millisecond, prof.Step)
	assert.Equal(t, time.Millisecond, prof.Narrowphase)
	assert.Equal(t, 2*time.Millisecond, prof.SolveVelocities)
	assert.Len(t, prof.Phases(), 12)
	assert.Equal(t, "step", prof.Phases()[0].Name)

	assert.ErrorIs(t, space.Step(0), nova.ErrNativeOperationFailed)
	assert.Equal(t, prof, space.Profiler())
}

func TestStepMovesDynamicBody(t *testing.T) {
	e := chipmunk.New()
	space, err := nova.NewSpace(e)
	require.NoError(t, err)
	body, err := nova.NewRigidBody(e, dynamicDef(nova.V(0, 10)))
	require.NoError(t, err)
	shape, err := nova.NewCircleShape(e, 0.5, nova.V(0, 0))
	require.NoError(t, err)
	require.NoError(t, body.AddShape(shape))
	require.NoError(t, space.AddBody(body))

	for range 30 {
		require.NoError(t, space.Step(1.0/60))
	}
	p, err := body.Position()
	require.NoError(t, err)
	assert.Less(t, p.Y, 10.0)

	v, err := body.LinearVelocity()
	require.NoError(t, err)
	assert.Less(t, v.Y, 0.0)
}

func TestBodiesIterationOrder(t *testing.T) {
	fake := nativetest.New()
	space, err := nova.NewSpace(fake)
	require.NoError(t, err)

	var bodies []*nova.RigidBody
	for i := range 3 {
		b, err := nova.NewRigidBody(fake, dynamicDef(nova.V(float64(i), 0)))
		require.NoError(t, err)
		require.NoError(t, space.AddBody(b))
		bodies = append(bodies, b)
	}
	assert.Equal(t, bodies, slices.Collect(space.Bodies()))
	// restartable
	assert.Equal(t, bodies, slices.Collect(space.Bodies()))

	got, ok := space.ResolveBody(bodies[2].Handle())
	require.True(t, ok)
	assert.Same(t, bodies[2], got)
	_, ok = space.ResolveBody(12345)
	assert.False(t, ok)

	first, ok := space.Body(0)
	require.True(t, ok)
	assert.Same(t, bodies[0], first)
	_, ok = space.Body(3)
	assert.False(t, ok)
}

func TestBroadphaseAndSettings(t *testing.T) {
	e := chipmunk.New()
	space, err := nova.NewSpace(e)
	require.NoError(t, err)

	for _, bp := range []nova.Broadphase{nova.BruteForce, nova.SpatialHash, nova.BVH} {
		require.NoError(t, space.SetBroadphase(bp))
		got, err := space.Broadphase()
		require.NoError(t, err)
		assert.Equal(t, bp, got)
		require.NoError(t, space.Step(1.0/60))
	}
	assert.ErrorIs(t, space.SetBroadphase(nova.Broadphase(7)), nova.ErrInvalidArgument)

	require.NoError(t, space.SetGravity(nova.V(0, -1.62)))
	set, err := space.Settings()
	require.NoError(t, err)
	assert.Equal(t, nova.V(0, -1.62), set.Gravity)

	set.Damping = 2
	assert.ErrorIs(t, space.SetSettings(set), nova.ErrInvalidArgument)
}

func TestSpaceClear(t *testing.T) {
	fake := nativetest.New()
	space, err := nova.NewSpace(fake)
	require.NoError(t, err)
	a, shape := staticCircle(t, fake, nova.V(0, 0), 1)
	b, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 2)))
	require.NoError(t, err)
	require.NoError(t, space.AddBody(a))
	require.NoError(t, space.AddBody(b))
	joint, err := nova.NewDistanceConstraint(nova.DistanceConstraintDef{A: a, B: b, Length: 2})
	require.NoError(t, err)
	require.NoError(t, space.AddConstraint(joint))

	require.NoError(t, space.Clear())
	assert.Equal(t, 0, space.BodyCount())
	assert.Equal(t, 0, space.ConstraintCount())
	assert.False(t, a.Owned())
	assert.False(t, shape.Owned())
	assert.False(t, joint.InSpace())
	assert.Equal(t, native.Null, fake.Parent(joint.Handle()))
}

func TestClosedSpaceRejectsUse(t *testing.T) {
	fake := nativetest.New()
	space, err := nova.NewSpace(fake)
	require.NoError(t, err)
	require.NoError(t, space.Close())
	require.NoError(t, space.Close())
	assert.Equal(t, 1, fake.Freed(space.Handle()))

	assert.ErrorIs(t, space.Step(1), nova.ErrClosed)
	_, err = space.CastRay(nova.V(0, 0), nova.V(1, 0))
	assert.ErrorIs(t, err, nova.ErrClosed)
}
