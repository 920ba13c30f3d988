// Package ffiruntime provides a safe ownership and reference-exchange layer
// between Go and a foreign runtime speaking a tagged-value C ABI.
//
// The library lets Go code exchange dynamically-typed values, refcounted
// objects, registered callbacks, and zero-copy strided tensors with a
// foreign runtime without data races, double frees, or use-after-free,
// while keeping the common scalar call path allocation-free.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	ffiruntime/          Root package with capability interfaces and the pin discipline
//	├── abi/             Fixed-layout wire structs shared with the foreign runtime
//	├── value/           Owned (Any) and borrowed (View) tagged-value containers
//	├── object/          Refcounted object handles and atomic count primitives
//	├── callback/        Slot pool, trampoline, and reflection adapter for Go callables
//	├── tensor/          Strided-buffer views, managed tensors, exchange capsules
//	├── runtime/         In-process foreign runtime implementing the ABI contract
//	└── errors/          Structured error types for debugging
//
// # Ownership Model
//
// Owned and borrowed are distinct static types, not runtime flags:
//
//   - value.Any owns one release action; extracting its payload with Take
//     invalidates it, so a double free is a type-level impossibility.
//   - value.View borrows and never releases; copying out of a view is
//     always safe and increments the underlying count exactly once per copy.
//   - object.Handle owns exactly one strong reference unit from construction
//     to Release, balanced on every path including errors.
//
// # Boundary Rules
//
// All boundary crossings return a status code; errors travel out-of-band
// through the raised-error state and are translated to and from the
// structured errors package at the trampoline and call entry. Nothing ever
// unwinds natively across the ABI: callback panics are recovered and
// converted before control returns to the foreign side.
//
// # Thread Safety
//
// Reference count operations are atomic and callable from any thread. The
// callback slot pool is mutex-protected. Individual Any, View, and Handle
// values are single-owner; share an object by cloning a handle per owner.
package ffiruntime
