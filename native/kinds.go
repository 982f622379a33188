package native

import (
	"fmt"
	"strings"
)

type BodyKind int

const (
	BodyStatic BodyKind = iota
	BodyDynamic
)

func (k BodyKind) String() string {
	switch k {
	case BodyStatic:
		return "static"
	case BodyDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("BodyKind(%d)", int(k))
	}
}

func (k BodyKind) Valid() bool { return k == BodyStatic || k == BodyDynamic }

func ParseBodyKind(s string) (BodyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static", "":
		return BodyStatic, nil
	case "dynamic":
		return BodyDynamic, nil
	default:
		return 0, fmt.Errorf("unknown body kind %q", s)
	}
}

type ShapeKind int

const (
	ShapeCircle ShapeKind = iota
	ShapePolygon
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCircle:
		return "circle"
	case ShapePolygon:
		return "polygon"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

func (k ShapeKind) Valid() bool { return k == ShapeCircle || k == ShapePolygon }

// Broadphase selects the spatial partitioning used to cull pairs before the
// narrow phase.
type Broadphase int

const (
	BroadphaseBruteForce Broadphase = iota
	BroadphaseBVH
	BroadphaseSpatialHash
)

func (b Broadphase) String() string {
	switch b {
	case BroadphaseBruteForce:
		return "brute_force"
	case BroadphaseBVH:
		return "bvh"
	case BroadphaseSpatialHash:
		return "spatial_hash"
	default:
		return fmt.Sprintf("Broadphase(%d)", int(b))
	}
}

func (b Broadphase) Valid() bool {
	switch b {
	case BroadphaseBruteForce, BroadphaseBVH, BroadphaseSpatialHash:
		return true
	}
	return false
}

func ParseBroadphase(s string) (Broadphase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brute_force", "bruteforce", "brute":
		return BroadphaseBruteForce, nil
	case "bvh", "":
		return BroadphaseBVH, nil
	case "spatial_hash", "hash":
		return BroadphaseSpatialHash, nil
	default:
		return 0, fmt.Errorf("unknown broadphase %q", s)
	}
}
