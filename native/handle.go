package native

import "fmt"

// Handle is an opaque reference to one engine resource.
type Handle uintptr

// Null is the handle the engine never hands out.
const Null Handle = 0

func (h Handle) IsNull() bool { return h == Null }

func (h Handle) String() string {
	if h.IsNull() {
		return "nil"
	}
	return fmt.Sprintf("0x%x", uintptr(h))
}
