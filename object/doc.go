// Package object provides the reference-counted handle over opaque foreign
// objects and the atomic refcount primitives shared with the foreign runtime.
//
// # Handle Lifecycle
//
// A Handle owns exactly one strong reference unit for its lifetime:
//
//	own<T>    - FromOwned wraps a pointer whose reference unit the caller
//	            already holds; no increment, one decrement at Release
//	borrow<T> - FromBorrowed increments immediately, decrements at Release;
//	            the net effect is a new independent reference
//	release   - explicit, exactly once; a second Release is an error, not
//	            a second decrement
//
// There are no finalizers. Callers release deterministically, and the
// instrumented build (-tags ffidebug) panics on violations the type system
// could not rule out.
//
// # Deleters
//
// When a strong count reaches zero, DecRef dispatches the header's deleter.
// A deleter slot holds either a foreign C function pointer, invoked via
// purego, or a token minted by RegisterDeleter for Go-side cleanup. Tokens
// are odd values, so they can never be mistaken for aligned code pointers.
//
// # Thread Safety
//
// IncRef/DecRef are atomic and callable from any goroutine or foreign
// thread. An individual Handle is owned by a single goroutine; share objects
// across goroutines by Clone-ing a handle per owner.
package object
