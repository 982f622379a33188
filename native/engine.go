package native

// Engine is the handle-based call surface of a rigid-body engine.
//
// Create calls return a non-null handle or an error. Destroy calls release the
// resource and invalidate its handle; releasing a container never frees the
// children still attached to it, it only detaches them.
type Engine interface {
	CreateSpace() (Handle, error)
	DestroySpace(space Handle) error
	SpaceAddBody(space, body Handle) error
	SpaceRemoveBody(space, body Handle) error
	SpaceAddConstraint(space, constraint Handle) error
	SpaceRemoveConstraint(space, constraint Handle) error
	SpaceStep(space Handle, dt float64) (Profile, error)
	// SpaceCastRay writes up to len(out) hits ordered by distance from
	// `from` and returns how many were written.
	SpaceCastRay(space Handle, from, to Vec2, out []RayHit) (int, error)
	SpaceBroadphase(space Handle) (Broadphase, error)
	SetSpaceBroadphase(space Handle, b Broadphase) error
	SpaceSettings(space Handle) (Settings, error)
	SetSpaceSettings(space Handle, s Settings) error

	CreateBody(init BodyInit) (Handle, error)
	DestroyBody(body Handle) error
	BodyAddShape(body, shape Handle) error
	BodyRemoveShape(body, shape Handle) error
	BodyKind(body Handle) (BodyKind, error)
	BodyPosition(body Handle) (Vec2, error)
	SetBodyPosition(body Handle, p Vec2) error
	BodyAngle(body Handle) (float64, error)
	SetBodyAngle(body Handle, a float64) error
	BodyLinearVelocity(body Handle) (Vec2, error)
	SetBodyLinearVelocity(body Handle, v Vec2) error
	BodyAngularVelocity(body Handle) (float64, error)
	SetBodyAngularVelocity(body Handle, w float64) error
	BodyLinearDampingScale(body Handle) (float64, error)
	SetBodyLinearDampingScale(body Handle, s float64) error
	BodyAngularDampingScale(body Handle) (float64, error)
	SetBodyAngularDampingScale(body Handle, s float64) error
	BodyInertia(body Handle) (float64, error)
	SetBodyInertia(body Handle, i float64) error
	BodyMass(body Handle) (float64, error)
	BodyAABB(body Handle) (AABB, error)
	BodyApplyForce(body Handle, force, point Vec2) error

	CreateShape(def ShapeDef) (Handle, error)
	DestroyShape(shape Handle) error
	ShapeKind(shape Handle) (ShapeKind, error)

	CreateConstraint(def ConstraintDef) (Handle, error)
	DestroyConstraint(constraint Handle) error
}
