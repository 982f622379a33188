package nova

import (
	"iter"
	"slices"
	"sync"

	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

type member interface {
	comparable
	life() *lifetime
}

// registry keeps registered children reachable in registration order and
// resolves their handles. Native calls are made by the caller-supplied
// functions; the registry only orders bookkeeping around them.
type registry[T member] struct {
	name  string
	mu    sync.RWMutex
	items []T
	index map[native.Handle]T
}

func newRegistry[T member](name string) *registry[T] {
	return &registry[T]{name: name, index: make(map[native.Handle]T)}
}

// register rejects duplicates, records child and sets its ownership flag,
// then issues add. A failing add rolls the registration back.
func (r *registry[T]) register(op string, child T, add func() error) error {
	lt := child.life()
	h := lt.handle

	r.mu.Lock()
	if _, dup := r.index[h]; dup {
		r.mu.Unlock()
		return opError(op, ErrDuplicateRegistration, h, "")
	}
	if !lt.owned.CompareAndSwap(false, true) {
		r.mu.Unlock()
		return opError(op, ErrOwned, h, "owned by another container")
	}
	r.items = append(r.items, child)
	r.index[h] = child
	r.mu.Unlock()

	if err := add(); err != nil {
		r.mu.Lock()
		r.drop(h)
		r.mu.Unlock()
		lt.owned.Store(false)
		return nativeError(op, h, err)
	}
	logger().Debug("registered", zap.String("registry", r.name), zap.Stringer("handle", h))
	return nil
}

// unregister issues remove first and only forgets child when it succeeds.
func (r *registry[T]) unregister(op string, child T, remove func() error) error {
	h := child.life().handle
	if _, ok := r.resolve(h); !ok {
		return opError(op, ErrNotRegistered, h, "")
	}
	if err := remove(); err != nil {
		return nativeError(op, h, err)
	}
	r.evict(h)
	logger().Debug("unregistered", zap.String("registry", r.name), zap.Stringer("handle", h))
	return nil
}

// evict forgets h and clears its ownership flag without a native call.
func (r *registry[T]) evict(h native.Handle) {
	r.mu.Lock()
	child, ok := r.index[h]
	if ok {
		r.drop(h)
	}
	r.mu.Unlock()
	if ok {
		child.life().owned.Store(false)
	}
}

// clear evicts every child.
func (r *registry[T]) clear() []T {
	r.mu.Lock()
	items := r.items
	r.items = nil
	r.index = make(map[native.Handle]T)
	r.mu.Unlock()
	for _, child := range items {
		child.life().owned.Store(false)
	}
	return items
}

func (r *registry[T]) drop(h native.Handle) {
	delete(r.index, h)
	r.items = slices.DeleteFunc(r.items, func(x T) bool { return x.life().handle == h })
}

func (r *registry[T]) resolve(h native.Handle) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	child, ok := r.index[h]
	return child, ok
}

func (r *registry[T]) at(i int) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.items) {
		var zero T
		return zero, false
	}
	return r.items[i], true
}

func (r *registry[T]) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *registry[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items)
}

// all yields the child at each index at the time the index is reached, so a
// traversal sees registrations and removals made while it runs.
func (r *registry[T]) all() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; ; i++ {
			child, ok := r.at(i)
			if !ok || !yield(child) {
				return
			}
		}
	}
}
