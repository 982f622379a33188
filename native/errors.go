package native

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHandle = errors.New("invalid handle")
	ErrWrongKind     = errors.New("handle refers to a different resource kind")
	ErrInUse         = errors.New("resource is still attached")
	ErrNotAttached   = errors.New("resource is not attached")
	ErrAttached      = errors.New("resource is already attached")
	ErrBadParameter  = errors.New("bad parameter")
)

// Error is a failure reported by an engine call.
type Error struct {
	Op     string
	Handle Handle
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Handle.IsNull() {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s(%s): %s", e.Op, e.Handle, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error for op on h wrapping kind.
func Errorf(op string, h Handle, kind error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if kind != nil {
		if msg == "" {
			msg = kind.Error()
		} else {
			msg = kind.Error() + ": " + msg
		}
	}
	return &Error{Op: op, Handle: h, Msg: msg, Err: kind}
}

// Diagnostic returns the engine message carried by err, or err's text.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Msg
	}
	return err.Error()
}
