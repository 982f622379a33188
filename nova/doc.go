// Package nova binds a native 2D rigid-body engine to Go wrapper objects.
//
// A Space owns the bodies registered into it and a RigidBody owns the shapes
// attached to it. While owned, a wrapper carries an ownership flag and its
// Close returns ErrOwned without touching the native handle; the container is
// responsible for it. Once removed, Close releases the native handle exactly
// once. Each container keeps its children in a keep-alive registry, which
// also resolves raw handles reported by the engine (ray casts) back to
// wrappers.
//
// Close is the primary release path. Wrappers that are garbage collected
// without Close are released by a runtime cleanup that applies the same
// ownership rule, so a collected Space first detaches its bodies and only
// then lets them be released.
//
// Constraints reference up to two bodies without owning them and are always
// released by Close.
package nova
