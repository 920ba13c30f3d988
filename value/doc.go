// Package value provides the owned and borrowed containers over the tagged
// wire value.
//
// The ownership split is carried by the type system, not a runtime flag:
//
//	View - borrowed, read-only. Never releases anything; valid only while
//	       the referenced foreign data is guaranteed alive (one call or one
//	       callback invocation). Copying out of a view is always safe.
//	Any  - owned. Responsible for exactly one release action over its
//	       lifetime: either the payload is extracted once with Take (ownership
//	       transfers out, the container goes inert) or Release performs the
//	       cleanup at scope exit.
//
// Take-then-Take fails with already_taken, and Release after a successful
// Take is a no-op. That rule is what makes a double free unrepresentable at
// this layer.
//
// Scalar discriminants (none, int, bool, float, dtype, device, inline
// strings) never touch reference counts on any path.
package value
