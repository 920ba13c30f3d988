package ffiruntime

import "runtime"

// WithPinned pins the memory behind ptr for the duration of fn, including
// error and panic paths, then unpins. ptr must point into the buffer being
// shared - bind the buffer to a named local first and pin through that, so
// the pin demonstrably covers the same allocation whose raw address crosses
// the boundary:
//
//	buf := host.Data()            // named local holding the buffer
//	err := ffiruntime.WithPinned(&buf[0], func() error {
//	    return call(unsafe.Pointer(&buf[0]))
//	})
//
// Acquire the pin immediately before extracting the raw pointer and let it
// release only after the foreign call returns.
func WithPinned(ptr any, fn func() error) error {
	var pin runtime.Pinner
	pin.Pin(ptr)
	defer pin.Unpin()
	return fn()
}

// Pin is a multi-buffer variant of WithPinned for calls that share several
// host buffers at once (e.g. a kernel reading one tensor and writing
// another). All pins hold until fn returns.
func Pin(ptrs []any, fn func() error) error {
	var pin runtime.Pinner
	for _, p := range ptrs {
		pin.Pin(p)
	}
	defer pin.Unpin()
	return fn()
}
