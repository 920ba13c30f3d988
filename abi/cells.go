package abi

import "unsafe"

// Payload returns the start of an object's payload, immediately after its
// header. Layout of the payload is determined by the header's type index.
func Payload(obj unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(obj, HeaderSize)
}

// ByteSpan points at Size bytes owned by the enclosing object cell.
type ByteSpan struct {
	Data *byte
	Size uint64
}

// Bytes returns the span as a Go slice aliasing the cell's memory.
func (s ByteSpan) Bytes() []byte {
	if s.Data == nil || s.Size == 0 {
		return nil
	}
	return unsafe.Slice(s.Data, s.Size)
}

// String returns a Go copy of the span.
func (s ByteSpan) String() string { return string(s.Bytes()) }

// BytesCell is the payload of TypeStr and TypeBytes objects. The character
// data follows in the same allocation; Data points into it.
type BytesCell struct {
	Span ByteSpan
}

// ErrorCell is the payload of a TypeError object: an error kind (e.g.
// "TypeError") and a human-readable message.
type ErrorCell struct {
	Kind    ByteSpan
	Message ByteSpan
}

// FunctionCell is the payload of a TypeFunction object. SafeCall has the
// boundary signature (resource, argv, argc, out_result) -> status; Resource
// identifies the callee's state and is handed to SafeCall and, at release,
// to the object deleter's own bookkeeping.
type FunctionCell struct {
	Resource uintptr
	SafeCall uintptr
}

// TensorCell is the payload of a TypeTensor object: the descriptor itself,
// with its shape and strides arrays following in the same allocation.
type TensorCell struct {
	Tensor Tensor
}
