package nova

import (
	"sync/atomic"

	"github.com/san-kum/novabind/native"
	"go.uber.org/zap"
)

// lifetime tracks one native handle. It is also the argument of the runtime
// cleanup registered for the wrapper, so it must never point back at the
// wrapper.
type lifetime struct {
	what   string
	handle native.Handle
	engine native.Engine
	free   func(native.Handle) error

	// owned is set while a container's registry holds the wrapper.
	owned    atomic.Bool
	released atomic.Bool
}

func newLifetime(what string, engine native.Engine, h native.Handle, free func(native.Handle) error) *lifetime {
	return &lifetime{what: what, handle: h, engine: engine, free: free}
}

func (l *lifetime) check(op string) error {
	if l.released.Load() {
		return opError(op, ErrClosed, l.handle, l.what+" already released")
	}
	return nil
}

// release frees the native handle once. Owned objects are refused; closing a
// released object is a no-op.
func (l *lifetime) release(op string) error {
	if l.owned.Load() {
		return opError(op, ErrOwned, l.handle, "")
	}
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	if err := l.free(l.handle); err != nil {
		l.released.Store(false)
		return nativeError(op, l.handle, err)
	}
	logger().Debug("released", zap.String("object", l.what), zap.Stringer("handle", l.handle))
	return nil
}

// collect is the cleanup path. An owned handle is skipped; the owner releases
// or detaches it.
func (l *lifetime) collect() bool {
	if l.owned.Load() {
		logger().Debug("collected while owned",
			zap.String("object", l.what), zap.Stringer("handle", l.handle))
		return false
	}
	if err := l.release("cleanup"); err != nil {
		logger().Warn("cleanup release failed",
			zap.String("object", l.what), zap.Stringer("handle", l.handle), zap.Error(err))
		return false
	}
	return true
}
