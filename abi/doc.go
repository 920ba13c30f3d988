// Package abi defines the fixed-layout wire structs shared with the foreign
// runtime: the tagged value, the refcounted object header, and the strided
// tensor descriptor with its versioned exchange capsule.
//
// Every struct in this package is a byte-for-byte contract. Field order,
// widths, and natural 64-bit padding must match what the foreign side reads
// and writes directly; layout_test.go pins sizes and offsets. The package
// carries no behavior beyond payload packing helpers - ownership, refcounting,
// and validation live in the object, value, and tensor packages.
package abi
