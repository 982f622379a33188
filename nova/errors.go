package nova

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/novabind/native"
)

var (
	// ErrEngineInitFailed indicates the engine could not allocate a resource.
	ErrEngineInitFailed = errors.New("nova: engine init failed")

	// ErrDuplicateRegistration indicates an object already registered in the
	// same container.
	ErrDuplicateRegistration = errors.New("nova: duplicate registration")

	// ErrNativeOperationFailed wraps any failure reported by an engine call.
	ErrNativeOperationFailed = errors.New("nova: native operation failed")

	// ErrInvalidConstraintEndpoints indicates a constraint without bodies.
	ErrInvalidConstraintEndpoints = errors.New("nova: constraint needs at least one body")

	// ErrOwned indicates an object whose release belongs to a container.
	ErrOwned = errors.New("nova: object is owned by a container")

	// ErrClosed indicates use of a released object.
	ErrClosed = errors.New("nova: object is closed")

	ErrNotRegistered   = errors.New("nova: object is not registered in this container")
	ErrInvalidArgument = errors.New("nova: invalid argument")
)

// Error carries the failing operation and, for engine failures, the engine's
// diagnostic. errors.Is matches both Kind and Cause.
type Error struct {
	Op     string
	Kind   error
	Handle native.Handle
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("nova: ")
	b.WriteString(e.Op)
	if !e.Handle.IsNull() {
		fmt.Fprintf(&b, "(%s)", e.Handle)
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(strings.TrimPrefix(e.Kind.Error(), "nova: "))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func opError(op string, kind error, h native.Handle, detail string) *Error {
	return &Error{Op: op, Kind: kind, Handle: h, Detail: detail}
}

func nativeError(op string, h native.Handle, err error) *Error {
	return &Error{
		Op:     op,
		Kind:   ErrNativeOperationFailed,
		Handle: h,
		Detail: native.Diagnostic(err),
		Cause:  err,
	}
}

func initError(op string, err error) *Error {
	if err == nil {
		return opError(op, ErrEngineInitFailed, native.Null, "engine returned a null handle")
	}
	return &Error{Op: op, Kind: ErrEngineInitFailed, Detail: native.Diagnostic(err), Cause: err}
}
