package object

import (
	"unsafe"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
)

// Handle is a reference-counted wrapper around an opaque foreign object
// pointer. Every live handle owns exactly one strong reference unit; Release
// gives it up exactly once. A Handle is owned by a single goroutine - share
// the object by Clone-ing a handle per owner, never the Handle itself.
type Handle struct {
	ptr       unsafe.Pointer
	typeIndex abi.TypeIndex
}

// FromOwned wraps a pointer for which the caller already holds one reference
// unit. No increment is performed; the unit is surrendered to the handle.
func FromOwned(p unsafe.Pointer, t abi.TypeIndex) (*Handle, error) {
	if p == nil {
		return nil, errors.NilPointer(errors.PhaseRuntime, "object")
	}
	return &Handle{ptr: p, typeIndex: t}, nil
}

// FromBorrowed wraps a pointer the caller merely borrows: it increments the
// strong count immediately, so the handle holds a new independent reference.
// The nil check happens before any count operation.
func FromBorrowed(p unsafe.Pointer, t abi.TypeIndex) (*Handle, error) {
	if p == nil {
		return nil, errors.NilPointer(errors.PhaseRuntime, "object")
	}
	IncRef(p)
	return &Handle{ptr: p, typeIndex: t}, nil
}

// Clone returns a new independent handle on the same object.
func (h *Handle) Clone() (*Handle, error) {
	if h.ptr == nil {
		return nil, errors.AlreadyReleased(errors.PhaseRuntime, "object handle")
	}
	return FromBorrowed(h.ptr, h.typeIndex)
}

// Raw returns the object pointer for read-only use. The caller must not
// adjust the reference count through it.
func (h *Handle) Raw() (unsafe.Pointer, error) {
	if h.ptr == nil {
		return nil, errors.AlreadyReleased(errors.PhaseRuntime, "object handle")
	}
	return h.ptr, nil
}

// TypeIndex returns the object's type index recorded at construction.
func (h *Handle) TypeIndex() abi.TypeIndex { return h.typeIndex }

// Alive reports whether the handle still owns its reference unit.
func (h *Handle) Alive() bool { return h.ptr != nil }

// StrongCount reads the object's current strong count. Advisory under
// concurrency; exact in single-owner tests.
func (h *Handle) StrongCount() (uint32, error) {
	if h.ptr == nil {
		return 0, errors.AlreadyReleased(errors.PhaseRuntime, "object handle")
	}
	return LoadStrong(h.ptr), nil
}

// Release gives up the handle's reference unit, decrementing exactly once.
// A second Release reports an error instead of decrementing again.
func (h *Handle) Release() error {
	if h.ptr == nil {
		return errors.AlreadyReleased(errors.PhaseRuntime, "object handle")
	}
	p := h.ptr
	h.ptr = nil
	DecRef(p)
	return nil
}

// Detach transfers the handle's reference unit to the caller: the pointer is
// returned with its count untouched and the handle becomes inert. Used when
// another owner (an owning value, a foreign callee that steals) takes over
// the unit.
func (h *Handle) Detach() (unsafe.Pointer, abi.TypeIndex, error) {
	if h.ptr == nil {
		return nil, 0, errors.AlreadyReleased(errors.PhaseRuntime, "object handle")
	}
	p := h.ptr
	h.ptr = nil
	return p, h.typeIndex, nil
}

// Ownership states how a foreign callee treats a pointer passed to it.
// The convention is an external contract per entry point; it is always
// stated explicitly by the caller, never inferred.
type Ownership int

const (
	// Borrowed: the callee borrows for the duration of the call. The core
	// brackets the call with one increment before and one decrement after,
	// on success and error paths alike.
	Borrowed Ownership = iota
	// Stolen: the callee takes the handle's reference unit. The handle
	// becomes inert and no decrement follows.
	Stolen
)

// PassToForeign runs call with the object pointer under the stated ownership
// convention. With Borrowed the handle survives the call; with Stolen the
// handle is consumed even if call reports an error, since the callee owns
// the unit from the moment it is invoked.
func (h *Handle) PassToForeign(conv Ownership, call func(p unsafe.Pointer) error) error {
	switch conv {
	case Stolen:
		p, _, err := h.Detach()
		if err != nil {
			return err
		}
		return call(p)
	default:
		p, err := h.Raw()
		if err != nil {
			return err
		}
		IncRef(p)
		defer DecRef(p)
		return call(p)
	}
}
