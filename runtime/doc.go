// Package runtime provides an in-process foreign runtime: a real
// implementation of the primitives the exchange core consumes, backed by Go
// memory instead of an external library.
//
// The Runtime implements the allocate/free-object, type-registry,
// raise/retrieve-error, and function-call contracts of the wire protocol.
// Everything above those primitives - handles, values, callbacks, tensors -
// behaves identically whether the object pointers come from this runtime or
// from a foreign one; foreign function and deleter pointers are dispatched
// through purego, local registrations through the callback trampoline.
//
// # Object Cells
//
// NewObject allocates header+payload cells on the Go heap, pins them, and
// roots them in an alive table until their strong count reaches zero. The
// alive table doubles as the leak-accounting surface: LiveObjects reports
// what is still held, and Close refuses to tear down a runtime that still
// owns objects.
//
// # Functions
//
// A function is a refcounted object whose cell carries (resource, safecall).
// NewFunction registers a local callable and wraps it; Call packs arguments
// through the value containers, drives the safecall entry, and translates a
// nonzero status back into a structured error from the raised-error state.
// RegisterGlobal/Global expose the name -> function table that a module
// loader above this package would populate.
package runtime
