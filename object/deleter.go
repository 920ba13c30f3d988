package object

import (
	"sync"
	"unsafe"

	"github.com/crossrt/ffi-runtime/internal/debug"
)

// tokenTag marks a deleter slot value as a local token rather than a foreign
// function pointer. Code pointers are aligned, so odd values are free.
const tokenTag uintptr = 1

// deleter token pool: index-addressed store with free-list reuse, one mutex
// over insert/lookup/release.
var deleters struct {
	mu       sync.Mutex
	fns      []func(unsafe.Pointer)
	freeList []int
}

// RegisterDeleter pins fn and returns a token that fits the Deleter slot of
// an object header or a tensor capsule. The registration is a GC root; fn
// stays reachable until UnregisterDeleter.
func RegisterDeleter(fn func(unsafe.Pointer)) uintptr {
	deleters.mu.Lock()
	defer deleters.mu.Unlock()

	var idx int
	if n := len(deleters.freeList); n > 0 {
		idx = deleters.freeList[n-1]
		deleters.freeList = deleters.freeList[:n-1]
		deleters.fns[idx] = fn
	} else {
		idx = len(deleters.fns)
		deleters.fns = append(deleters.fns, fn)
	}
	return uintptr(idx)<<1 | tokenTag
}

// UnregisterDeleter releases a token minted by RegisterDeleter. The token
// must not be reachable from any live object header afterwards.
func UnregisterDeleter(token uintptr) {
	idx := int(token >> 1)

	deleters.mu.Lock()
	defer deleters.mu.Unlock()

	if token&tokenTag == 0 || idx >= len(deleters.fns) || deleters.fns[idx] == nil {
		debug.Assertf(false, "unregister of unknown deleter token %#x", token)
		return
	}
	deleters.fns[idx] = nil
	deleters.freeList = append(deleters.freeList, idx)
}

func invokeToken(token uintptr, arg unsafe.Pointer) {
	idx := int(token >> 1)

	deleters.mu.Lock()
	var fn func(unsafe.Pointer)
	if idx < len(deleters.fns) {
		fn = deleters.fns[idx]
	}
	deleters.mu.Unlock()

	if fn == nil {
		debug.Assertf(false, "deleter token %#x fired after unregister", token)
		return
	}
	fn(arg)
}
