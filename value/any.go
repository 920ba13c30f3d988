package value

import (
	"unsafe"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/internal/debug"
	"github.com/crossrt/ffi-runtime/object"
)

// Any is an owning container around a tagged wire value. Exactly one release
// action happens over its lifetime: Take transfers the payload (and the
// responsibility for releasing it) out exactly once, or Release performs the
// cleanup if the payload was never taken.
type Any struct {
	tv    abi.TaggedValue
	taken bool
	done  bool
}

// Own wraps a tagged value for which the caller already holds any necessary
// reference. No increment is performed; the reference unit now belongs to
// the container.
func Own(tv abi.TaggedValue) *Any { return &Any{tv: tv} }

// OwnHandle transfers an object handle's reference unit into an owning
// value. The handle goes inert; no count changes.
func OwnHandle(h *object.Handle) (*Any, error) {
	p, t, err := h.Detach()
	if err != nil {
		return nil, err
	}
	var tv abi.TaggedValue
	tv.SetObject(t, p)
	return Own(tv), nil
}

// Scalar constructors. None of these touch reference counts.

// None returns an owned empty value.
func None() *Any { return Own(abi.None()) }

// Int returns an owned integer.
func Int(x int64) *Any {
	var tv abi.TaggedValue
	tv.SetInt64(x)
	return Own(tv)
}

// Float returns an owned float.
func Float(x float64) *Any {
	var tv abi.TaggedValue
	tv.SetFloat64(x)
	return Own(tv)
}

// Bool returns an owned boolean.
func Bool(x bool) *Any {
	var tv abi.TaggedValue
	tv.SetBool(x)
	return Own(tv)
}

// OpaquePtr returns an owned opaque pointer value. The pointee's lifetime is
// the caller's concern; the discriminant carries no release action.
func OpaquePtr(p unsafe.Pointer) *Any {
	var tv abi.TaggedValue
	tv.SetOpaquePtr(p)
	return Own(tv)
}

// DType returns an owned dtype scalar.
func DType(dt abi.DataType) *Any {
	var tv abi.TaggedValue
	tv.SetDataType(dt)
	return Own(tv)
}

// Device returns an owned device scalar.
func Device(d abi.Device) *Any {
	var tv abi.TaggedValue
	tv.SetDevice(d)
	return Own(tv)
}

// SmallStr returns an owned inline string, or false when s exceeds the
// inline capacity and needs a heap cell from an allocator.
func SmallStr(s string) (*Any, bool) {
	var tv abi.TaggedValue
	if !tv.SetSmallStr(s) {
		return nil, false
	}
	return Own(tv), true
}

// View returns a borrowed view of the contained value. The view is valid
// only while the Any is live and untaken.
func (a *Any) View() (View, error) {
	if a.taken {
		return View{}, errors.AlreadyTaken(errors.PhaseConvert)
	}
	if a.done {
		return View{}, errors.AlreadyReleased(errors.PhaseConvert, "owning value")
	}
	return ViewOf(a.tv), nil
}

// Type returns the discriminant, or TypeNone once the value was taken or
// released.
func (a *Any) Type() abi.TypeIndex {
	if a.taken || a.done {
		return abi.TypeNone
	}
	return a.tv.Type
}

// Take extracts the payload and invalidates the container. The caller now
// owns whatever reference unit the value carries. A second Take fails with
// already_taken, and Release becomes a no-op - this is the single allowed
// way to transfer ownership out.
func (a *Any) Take() (abi.TaggedValue, error) {
	if a.taken {
		return abi.None(), errors.AlreadyTaken(errors.PhaseConvert)
	}
	if a.done {
		return abi.None(), errors.AlreadyReleased(errors.PhaseConvert, "owning value")
	}
	a.taken = true
	a.done = true
	tv := a.tv
	a.tv = abi.None()
	return tv, nil
}

// TakeHandle extracts an object payload as an owning handle, transferring
// the container's reference unit to it. Fails on non-object discriminants
// without invalidating the container.
func (a *Any) TakeHandle() (*object.Handle, error) {
	if a.taken {
		return nil, errors.AlreadyTaken(errors.PhaseConvert)
	}
	if a.done {
		return nil, errors.AlreadyReleased(errors.PhaseConvert, "owning value")
	}
	if !a.tv.Type.IsObject() {
		return nil, errors.TypeMismatch(errors.PhaseConvert, nil, typeName(a.tv.Type), "object")
	}
	tv, err := a.Take()
	if err != nil {
		return nil, err
	}
	return object.FromOwned(tv.Ptr(), tv.Type)
}

// Release performs the automatic cleanup: one decrement for reference
// discriminants, nothing for scalars. After a successful Take, and on any
// repeat call, it is a no-op, so it can be deferred unconditionally.
func (a *Any) Release() {
	if a.done {
		return
	}
	a.done = true
	if a.tv.Type.IsObject() {
		p := a.tv.Ptr()
		debug.Assertf(p != nil, "owned object value with nil payload")
		if p != nil {
			object.DecRef(p)
		}
	}
	a.tv = abi.None()
}
