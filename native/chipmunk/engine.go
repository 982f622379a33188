// Package chipmunk implements native.Engine on the Go port of the Chipmunk2D
// physics library (github.com/jakecoffman/cp).
//
// Handles are allocated from a monotonically increasing counter and never
// reused, so a stale handle always fails with native.ErrInvalidHandle instead
// of aliasing a newer resource. Every call is serialised by one mutex.
package chipmunk

import (
	"fmt"
	"sync"

	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

type Engine struct {
	mu  sync.Mutex
	log *zap.Logger

	next        native.Handle
	spaces      map[native.Handle]*space
	bodies      map[native.Handle]*body
	shapes      map[native.Handle]*shape
	constraints map[native.Handle]*constraint
}

var _ native.Engine = (*Engine)(nil)

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		log:         zap.NewNop(),
		spaces:      make(map[native.Handle]*space),
		bodies:      make(map[native.Handle]*body),
		shapes:      make(map[native.Handle]*shape),
		constraints: make(map[native.Handle]*constraint),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("chipmunk")
	return e
}

func (e *Engine) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	e.mu.Lock()
	e.log = l.Named("chipmunk")
	e.mu.Unlock()
}

// Live reports whether h refers to a resource that has not been destroyed.
func (e *Engine) Live(h native.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kindOf(h) != ""
}

// LiveCount returns the number of resources not yet destroyed.
func (e *Engine) LiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.spaces) + len(e.bodies) + len(e.shapes) + len(e.constraints)
}

func (e *Engine) alloc() native.Handle {
	e.next++
	return e.next
}

func (e *Engine) kindOf(h native.Handle) string {
	if _, ok := e.spaces[h]; ok {
		return "space"
	}
	if _, ok := e.bodies[h]; ok {
		return "body"
	}
	if _, ok := e.shapes[h]; ok {
		return "shape"
	}
	if _, ok := e.constraints[h]; ok {
		return "constraint"
	}
	return ""
}

func (e *Engine) missing(op string, h native.Handle, want string) error {
	switch {
	case h.IsNull():
		return native.Errorf(op, h, native.ErrInvalidHandle, "null %s handle", want)
	case e.kindOf(h) != "":
		return native.Errorf(op, h, native.ErrWrongKind, "want %s, got %s", want, e.kindOf(h))
	case h <= e.next:
		return native.Errorf(op, h, native.ErrInvalidHandle, "%s already released", want)
	default:
		return native.Errorf(op, h, native.ErrInvalidHandle, "unknown %s", want)
	}
}

func (e *Engine) lookupSpace(op string, h native.Handle) (*space, error) {
	if s, ok := e.spaces[h]; ok {
		return s, nil
	}
	return nil, e.missing(op, h, "space")
}

func (e *Engine) lookupBody(op string, h native.Handle) (*body, error) {
	if b, ok := e.bodies[h]; ok {
		return b, nil
	}
	return nil, e.missing(op, h, "body")
}

func (e *Engine) lookupShape(op string, h native.Handle) (*shape, error) {
	if s, ok := e.shapes[h]; ok {
		return s, nil
	}
	return nil, e.missing(op, h, "shape")
}

func (e *Engine) lookupConstraint(op string, h native.Handle) (*constraint, error) {
	if c, ok := e.constraints[h]; ok {
		return c, nil
	}
	return nil, e.missing(op, h, "constraint")
}

// guard turns assertion panics raised inside cp into engine errors.
func guard(op string, h native.Handle, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = native.Errorf(op, h, nil, "engine assertion: %v", r)
		}
	}()
	fn()
	return nil
}

func finite(op string, h native.Handle, name string, vs ...float64) error {
	for _, v := range vs {
		if !native.V(v, 0).IsFinite() {
			return native.Errorf(op, h, native.ErrBadParameter, "%s must be finite, got %s", name, fmt.Sprint(vs))
		}
	}
	return nil
}
