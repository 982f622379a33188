// Package native defines the handle-based call surface of the 2D rigid-body
// engine and the plain value types that cross it.
//
// Every resource the engine allocates (space, body, shape, constraint) is
// addressed by an opaque Handle. Handles are unique and stable for the
// lifetime of the resource; the zero Handle is the null handle. Failures are
// returned from each call as *Error values that carry the engine diagnostic.
//
// Engine implementations:
//   - chipmunk: backend built on github.com/jakecoffman/cp
//   - nativetest: in-memory call-counting fake used by tests
package native
