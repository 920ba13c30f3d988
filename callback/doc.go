// Package callback lets Go callables be invoked by the foreign runtime
// through the C-ABI trampoline while surviving garbage collection for as
// long as the foreign side can reach them.
//
// # Slot Pool
//
// Registration inserts the callable into an indexed slot pool that acts as a
// GC root, with a free list for O(1) slot reuse after release. The
// externally visible identifier is a pointer-width Token derived from the
// slot index; a released slot's token is never live at the same time as a
// colliding new one, because tokens are only minted from freed indices.
//
// # Trampoline
//
// Invoke has the boundary signature (resource, argv, argc, out_result) ->
// status. Arguments arrive as borrowed views (the caller keeps ownership of
// argument storage); the return value goes back as an owned tagged value
// whose reference unit transfers to the caller. Panics in the callable are
// recovered, converted into the raised-error state, and reported as a
// nonzero status - nothing ever unwinds natively across the ABI.
//
// # Release
//
// The foreign side signals it is done with a registration by invoking the
// deleter exactly once; Delete removes the slot, returns the index to the
// free list, and lets the callable become collectible.
package callback
