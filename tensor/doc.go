// Package tensor implements the zero-copy strided-buffer exchange protocol.
//
// # Two Paths
//
// The view path passes a host buffer for the bounded extent of one call: a
// View describes an existing Go slice, and WithDescriptor pins the buffer
// and materializes the wire descriptor only for the duration of the call.
//
// The managed path transfers cross-call ownership: Export wraps a view in a
// versioned capsule whose deleter releases the producer's hold, and Import
// consumes a capsule, validating its version and descriptor before any
// memory is touched. The consumer either reads the buffer zero-copy
// (contiguity gated) or gathers a contiguous copy with CopyBytes.
//
// # Contiguity
//
// A shape/stride pair is contiguous when, scanning from dimension 0 (the
// fastest-varying) to the slowest, each stride equals the running product of
// previously seen extents starting from 1. Flat-buffer access fails
// explicitly on any deviation rather than computing wrong offsets.
//
// # Device Backends
//
// Raw buffer access is mediated by per-device backends selected by the
// descriptor's device kind. Only the CPU backend ships with the library;
// GPU vendors plug in via RegisterBackend. Mixing descriptors from
// different devices is surfaced as an error before any dereference.
package tensor
