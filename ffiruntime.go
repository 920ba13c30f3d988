package ffiruntime

import "github.com/crossrt/ffi-runtime/abi"

// TypeRegistry is the type-identity capability a foreign runtime provides:
// a bidirectional mapping between type keys and the int32 indices carried in
// value discriminants and object headers.
type TypeRegistry interface {
	// TypeIndexFor resolves a type key to its index, registering it if the
	// registry supports dynamic types.
	TypeIndexFor(key string) (abi.TypeIndex, error)
	// TypeKeyFor resolves an index back to its key.
	TypeKeyFor(index abi.TypeIndex) (string, error)
}

// CellAllocator is the heap-cell capability: it produces refcounted object
// cells for values too large to ride inline in a tagged value. Every
// returned value carries one owned reference unit; the caller releases it
// exactly once (directly or by wrapping it in a value.Any).
type CellAllocator interface {
	NewString(s string) (abi.TaggedValue, error)
	NewBytes(b []byte) (abi.TaggedValue, error)
	NewError(kind, message string) (abi.TaggedValue, error)
}

// ErrorSink receives errors raised while foreign-initiated control is on
// this side of the boundary, to be surfaced through the out-of-band
// raised-error state instead of unwinding across the ABI.
type ErrorSink interface {
	Raise(err error)
}
