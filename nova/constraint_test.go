package nova_test

import (
	"math"
	"slices"
	"testing"

	"github.com/san-kum/novabind/native"
	"github.com/san-kum/novabind/native/chipmunk"
	"github.com/san-kum/novabind/native/nativetest"
	"github.com/san-kum/novabind/nova"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintWithoutEndpoints(t *testing.T) {
	fake := nativetest.New()

	_, err := nova.NewDistanceConstraint(nova.DistanceConstraintDef{Length: 1})
	assert.ErrorIs(t, err, nova.ErrInvalidConstraintEndpoints)
	_, err = nova.NewHingeConstraint(nova.HingeConstraintDef{})
	assert.ErrorIs(t, err, nova.ErrInvalidConstraintEndpoints)

	assert.Equal(t, 0, fake.Calls("CreateConstraint"))
	assert.Equal(t, 0, fake.LiveCount())
}

func TestConstraintCloseLeavesBodies(t *testing.T) {
	fake := nativetest.New()
	a, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)
	b, err := nova.NewRigidBody(fake, dynamicDef(nova.V(1, 0)))
	require.NoError(t, err)

	joint, err := nova.NewHingeConstraint(nova.HingeConstraintDef{A: a, B: b, Anchor: nova.V(0.5, 0)})
	require.NoError(t, err)
	ga, gb := joint.Bodies()
	assert.Same(t, a, ga)
	assert.Same(t, b, gb)

	require.NoError(t, joint.Close())
	require.NoError(t, joint.Close())
	assert.Equal(t, 1, fake.Freed(joint.Handle()))
	assert.True(t, fake.Live(a.Handle()))
	assert.True(t, fake.Live(b.Handle()))
	assert.False(t, a.Closed())
}

func TestConstraintInSpace(t *testing.T) {
	fake := nativetest.New()
	space, err := nova.NewSpace(fake)
	require.NoError(t, err)
	bob, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, -2)))
	require.NoError(t, err)
	require.NoError(t, space.AddBody(bob))

	rope, err := nova.NewDistanceConstraint(nova.DistanceConstraintDef{
		B:       bob,
		Length:  2,
		AnchorA: nova.V(0, 0),
	})
	require.NoError(t, err)
	require.NoError(t, space.AddConstraint(rope))
	assert.ErrorIs(t, space.AddConstraint(rope), nova.ErrDuplicateRegistration)
	assert.Equal(t, []nova.Constraint{rope}, slices.Collect(space.Constraints()))
	assert.True(t, rope.InSpace())

	// closing a constraint in a space is allowed and drops it from the space
	require.NoError(t, rope.Close())
	assert.Equal(t, 0, space.ConstraintCount())
	assert.ErrorIs(t, space.AddConstraint(rope), nova.ErrClosed)
}

func TestRemoveConstraint(t *testing.T) {
	fake := nativetest.New()
	space, err := nova.NewSpace(fake)
	require.NoError(t, err)
	a, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)
	joint, err := nova.NewHingeConstraint(nova.HingeConstraintDef{A: a})
	require.NoError(t, err)

	assert.ErrorIs(t, space.RemoveConstraint(joint), nova.ErrNotRegistered)
	require.NoError(t, space.AddConstraint(joint))

	fake.FailNext("SpaceRemoveConstraint", "stuck")
	assert.ErrorIs(t, space.RemoveConstraint(joint), nova.ErrNativeOperationFailed)
	assert.Equal(t, 1, space.ConstraintCount())

	require.NoError(t, space.RemoveConstraint(joint))
	assert.Equal(t, 0, space.ConstraintCount())
	assert.True(t, fake.Live(joint.Handle()))
}

func TestSpringDefaults(t *testing.T) {
	fake := nativetest.New()
	a, err := nova.NewRigidBody(fake, dynamicDef(nova.V(0, 0)))
	require.NoError(t, err)

	spring, err := nova.NewDistanceConstraint(nova.DistanceConstraintDef{A: a, Length: 1, Spring: true})
	require.NoError(t, err)
	assert.True(t, spring.Spring())
	assert.Equal(t, 1.0, spring.Length())

	_, err = nova.NewHingeConstraint(nova.HingeConstraintDef{A: a, EnableLimits: true, Lower: 1, Upper: -1})
	assert.ErrorIs(t, err, nova.ErrInvalidArgument)
}

func TestPendulumHoldsLength(t *testing.T) {
	e := chipmunk.New()
	space, err := nova.NewSpace(e)
	require.NoError(t, err)

	bob, err := nova.NewRigidBody(e, dynamicDef(nova.V(2, 0)))
	require.NoError(t, err)
	shape, err := nova.NewCircleShape(e, 0.1, nova.V(0, 0))
	require.NoError(t, err)
	require.NoError(t, bob.AddShape(shape))
	require.NoError(t, space.AddBody(bob))

	rope, err := nova.NewDistanceConstraint(nova.DistanceConstraintDef{B: bob, Length: 2})
	require.NoError(t, err)
	require.NoError(t, space.AddConstraint(rope))

	for range 60 {
		require.NoError(t, space.Step(1.0/60))
	}
	p, err := bob.Position()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, math.Hypot(p.X, p.Y), 0.05)
	assert.Less(t, p.Y, 0.0)

	require.NoError(t, space.RemoveConstraint(rope))
	require.NoError(t, rope.Close())
	assert.False(t, e.Live(rope.Handle()))
	assert.NotEqual(t, native.Null, bob.Handle())
}
