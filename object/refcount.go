package object

import (
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/internal/debug"
)

// Header reinterprets an object pointer as its wire header.
func Header(p unsafe.Pointer) *abi.ObjectHeader {
	return (*abi.ObjectHeader)(p)
}

// IncRef adds one strong reference. Callable from any goroutine or foreign
// thread.
func IncRef(p unsafe.Pointer) {
	atomic.AddUint64(&Header(p).Refcount, abi.RefcountOne)
}

// DecRef drops one strong reference and dispatches the header's deleter when
// the strong count reaches zero. Callable from any goroutine or foreign
// thread. Decrementing past zero is an ownership violation; the handle layer
// makes it unreachable and the instrumented build asserts on it.
func DecRef(p unsafe.Pointer) {
	h := Header(p)
	combined := atomic.AddUint64(&h.Refcount, ^uint64(0))
	debug.Assertf(abi.StrongCount(combined) != uint32(abi.StrongMask),
		"strong refcount underflow on object %p", p)
	if abi.StrongCount(combined) == 0 {
		InvokeDeleter(h.Deleter, p)
	}
}

// LoadStrong reads the current strong count. Callable from any thread; the
// value is advisory under concurrency.
func LoadStrong(p unsafe.Pointer) uint32 {
	return abi.StrongCount(atomic.LoadUint64(&Header(p).Refcount))
}

// InvokeDeleter dispatches a deleter slot value with the given argument:
// zero is a no-op, odd values are local tokens, anything else is treated as
// a foreign C function pointer taking one pointer argument.
func InvokeDeleter(d uintptr, arg unsafe.Pointer) {
	switch {
	case d == 0:
	case d&tokenTag != 0:
		invokeToken(d, arg)
	default:
		purego.SyscallN(d, uintptr(arg))
	}
}
