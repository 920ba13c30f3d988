package abi

// Status is the return code of every boundary-crossing call. Zero is success;
// any nonzero value signals an error whose details are retrievable
// out-of-band from the raised-error state of the calling thread.
type Status int32

const (
	StatusOK    Status = 0
	StatusError Status = 1
)

// Boundary function shapes, Go-side. On the wire both are C function
// pointers; resource identifies the callee's state (for registered local
// callables it is the registration token).
//
//	safecall: (resource, argv, argc, out_result) -> status
//	deleter:  (resource) -> void, invoked exactly once at release
type (
	SafeCallFunc func(resource uintptr, argv *TaggedValue, argc int32, result *TaggedValue) Status
	DeleterFunc  func(resource uintptr)
)
