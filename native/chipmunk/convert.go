package chipmunk

import (
	"github.com/jakecoffman/cp"
	"github.com/san-kum/novabind/native"
)

func toCP(v native.Vec2) cp.Vector { return cp.Vector{X: v.X, Y: v.Y} }

func fromCP(v cp.Vector) native.Vec2 { return native.Vec2{X: v.X, Y: v.Y} }

func fromBB(bb cp.BB) native.AABB {
	return native.AABB{Min: native.V(bb.L, bb.B), Max: native.V(bb.R, bb.T)}
}
