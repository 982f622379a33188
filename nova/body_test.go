package nova_test

import (
	"slices"
	"testing"

	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/native/chipmunk"
	"github.com/san-kum/novabind/native/nativetest"
	"github.com/san-kum/novabind/nova"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyPositionRoundTrip(t *testing.T) {
	fake := nativetest.New()
	body, err := nova.NewRigidBody(fake, dynamicDef(nova.V(1, 2)))
	require.NoError(t, err)

	require.NoError(t, body.SetPosition(nova.V(3, 4)))
	first, err := body.Position()
	require.NoError(t, err)
	second, err := body.Position()
	require.NoError(t, err)

	assert.Equal(t, nova.V(3, 4), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, fake.Calls("BodyPosition"))
}

func TestBodyAccessorsOnChipmunk(t *testing.T) {
	e := chipmunk.New()
	body, err := nova.NewRigidBody(e, dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)
	shape, err := nova.NewCircleShape(e, 1, nova.V(0, 0))
	require.NoError(t, err)
	require.NoError(t, body.AddShape(shape))

	require.NoError(t, body.SetAngle(0.5))
	require.NoError(t, body.SetLinearVelocity(nova.V(1, -1)))
	require.NoError(t, body.SetAngularVelocity(2))
	require.NoError(t, body.SetLinearDampingScale(0.5))
	require.NoError(t, body.SetAngularDampingScale(0.25))

	angle, err := body.Angle()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, angle, 1e-12)

	v, err := body.LinearVelocity()
	require.NoError(t, err)
	assert.Equal(t, nova.V(1, -1), v)

	w, err := body.AngularVelocity()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, w, 1e-12)

	ld, err := body.LinearDampingScale()
	require.NoError(t, err)
	assert.Equal(t, 0.5, ld)
	ad, err := body.AngularDampingScale()
	require.NoError(t, err)
	assert.Equal(t, 0.25, ad)

	mass, err := body.Mass()
	require.NoError(t, err)
	assert.Greater(t, mass, 0.0)

	box, err := body.AABB()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, box.Width(), 1e-9)

	require.NoError(t, body.SetInertia(7))
	inertia, err := body.Inertia()
	require.NoError(t, err)
	assert.InDelta(t, 7.0, inertia, 1e-9)

	kind, err := shape.Kind()
	require.NoError(t, err)
	assert.Equal(t, nova.Circle, kind)
}

func TestClosedBodyRejectsAccess(t *testing.T) {
	fake := nativetest.New()
	body, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)
	require.NoError(t, body.Close())

	_, err = body.Position()
	assert.ErrorIs(t, err, nova.ErrClosed)
	assert.ErrorIs(t, body.SetAngle(1), nova.ErrClosed)
	assert.Equal(t, 0, fake.Calls("BodyPosition"))
}

func TestNativeFailureCarriesDiagnostic(t *testing.T) {
	fake := nativetest.New()
	body, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)
	fake.FailNext("SetBodyPosition", "position rejected")

	err = body.SetPosition(nova.V(1, 1))
	require.ErrorIs(t, err, nova.ErrNativeOperationFailed)

	var ne *nova.Error
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "RigidBody.SetPosition", ne.Op)
	assert.Contains(t, ne.Detail, "position rejected")
}

func TestShapeRegistryOrderAndResolve(t *testing.T) {
	fake := nativetest.New()
	body, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)

	var shapes []*nova.Shape
	for i := range 3 {
		s, err := nova.NewCircleShape(fake, float64(i+1), nova.V(0, 0))
		require.NoError(t, err)
		require.NoError(t, body.AddShape(s))
		shapes = append(shapes, s)
	}
	assert.Equal(t, shapes, slices.Collect(body.Shapes()))

	got, ok := body.ResolveShape(shapes[1].Handle())
	require.True(t, ok)
	assert.Same(t, shapes[1], got)

	assert.ErrorIs(t, body.AddShape(shapes[0]), nova.ErrDuplicateRegistration)
	assert.Equal(t, 3, body.ShapeCount())

	require.NoError(t, body.RemoveShape(shapes[1]))
	_, ok = body.ResolveShape(shapes[1].Handle())
	assert.False(t, ok)
	assert.Equal(t, []*nova.Shape{shapes[0], shapes[2]}, slices.Collect(body.Shapes()))
	assert.ErrorIs(t, body.RemoveShape(shapes[1]), nova.ErrNotRegistered)
}

func TestShapeIterationSeesRemovals(t *testing.T) {
	fake := nativetest.New()
	body, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)
	for range 4 {
		s, err := nova.NewCircleShape(fake, 1, nova.V(0, 0))
		require.NoError(t, err)
		require.NoError(t, body.AddShape(s))
	}

	visited := 0
	for s := range body.Shapes() {
		visited++
		require.NoError(t, body.RemoveShape(s))
	}
	// each removal shifts the next shape into the visited index
	assert.Equal(t, 2, visited)
	assert.Equal(t, 2, body.ShapeCount())
}

func TestShapeConstructors(t *testing.T) {
	fake := nativetest.New()

	poly, err := nova.NewPolygonShape(fake, []nova.Vec2{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}, nova.V(1, 1))
	require.NoError(t, err)
	assert.Len(t, poly.Vertices(), 3)
	assert.Equal(t, nova.V(1, 1), poly.Vertices()[0])

	hex, err := nova.NewNGonShape(fake, 6, 1, nova.V(0, 0))
	require.NoError(t, err)
	assert.Len(t, hex.Vertices(), 6)
	kind, err := hex.Kind()
	require.NoError(t, err)
	assert.Equal(t, nova.Polygon, kind)

	_, err = nova.NewCircleShape(fake, -1, nova.V(0, 0))
	assert.ErrorIs(t, err, nova.ErrInvalidArgument)
	_, err = nova.NewCircleShape(nil, 1, nova.V(0, 0))
	assert.ErrorIs(t, err, nova.ErrInvalidArgument)
}

func TestShapeFromAnotherEngine(t *testing.T) {
	body, err := nova.NewRigidBody(nativetest.New(), dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)
	shape, err := nova.NewCircleShape(nativetest.New(), 1, nova.V(0, 0))
	require.NoError(t, err)

	assert.ErrorIs(t, body.AddShape(shape), nova.ErrInvalidArgument)
	assert.False(t, shape.Owned())
}

func TestStaticBodyKind(t *testing.T) {
	fake := nativetest.New()
	def := native.DefaultBodyInit()
	def.Kind = nova.Static
	body, err := nova.NewRigidBody(fake, def)
	require.NoError(t, err)
	assert.Equal(t, nova.Static, body.Kind())

	def.Kind = nova.BodyKind(9)
	_, err = nova.NewRigidBody(fake, def)
	assert.ErrorIs(t, err, nova.ErrInvalidArgument)
}
