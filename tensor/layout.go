package tensor

import (
	"fmt"
	"math"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
)

// NumElements returns the element count of a shape, or -1 when any extent is
// negative or the product overflows int64.
func NumElements(shape []int64) int64 {
	n := int64(1)
	for _, ext := range shape {
		if ext < 0 {
			return -1
		}
		if ext > 0 && n > math.MaxInt64/ext {
			return -1
		}
		n *= ext
	}
	return n
}

// Contiguous reports whether the shape/stride pair describes the protocol's
// packed layout: scanning from dimension 0 (fastest-varying) to slowest,
// each stride must equal the running product of previously seen extents
// starting from 1. Empty tensors are vacuously contiguous.
func Contiguous(shape, strides []int64) bool {
	if len(shape) != len(strides) {
		return false
	}
	if NumElements(shape) == 0 {
		return true
	}
	expect := int64(1)
	for i := range shape {
		if strides[i] != expect {
			return false
		}
		expect *= shape[i]
	}
	return true
}

// RowMajorContiguous is the opposite gate, for consumers whose flat layout
// runs the last dimension fastest. The protocol's zero-copy path uses
// Contiguous; this one exists for explicit transposition checks.
func RowMajorContiguous(shape, strides []int64) bool {
	if len(shape) != len(strides) {
		return false
	}
	if NumElements(shape) == 0 {
		return true
	}
	expect := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		if strides[i] != expect {
			return false
		}
		expect *= shape[i]
	}
	return true
}

// PackedStrides returns the strides of a packed buffer for shape, dimension
// 0 fastest.
func PackedStrides(shape []int64) []int64 {
	strides := make([]int64, len(shape))
	acc := int64(1)
	for i := range shape {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// ForEachOffset visits the element offset (in elements, relative to the
// descriptor's origin) of every index tuple, dimension 0 varying fastest.
// The walk is stride-aware, so it is correct on non-contiguous layouts.
func ForEachOffset(shape, strides []int64, visit func(offset int64)) {
	if NumElements(shape) <= 0 {
		return
	}
	walk(shape, strides, len(shape)-1, 0, visit)
}

func walk(shape, strides []int64, dim int, base int64, visit func(int64)) {
	if dim < 0 {
		visit(base)
		return
	}
	for i := int64(0); i < shape[dim]; i++ {
		walk(shape, strides, dim-1, base+i*strides[dim], visit)
	}
}

// Validate rejects malformed descriptors before any memory is dereferenced.
func Validate(t *abi.Tensor) error {
	if t == nil {
		return errors.NilPointer(errors.PhaseImport, "tensor descriptor")
	}
	if t.NDim < 0 {
		return errors.Malformed(errors.PhaseImport, "negative ndim")
	}
	if t.NDim > 0 && t.Shape == nil {
		return errors.Malformed(errors.PhaseImport, "nil shape with ndim > 0")
	}
	shape := t.ShapeSlice()
	n := NumElements(shape)
	if n < 0 {
		return errors.Malformed(errors.PhaseImport, "negative or overflowing shape extents")
	}
	if t.Data == nil && n > 0 {
		return errors.NilPointer(errors.PhaseImport, "tensor data")
	}
	if t.DType.Bits == 0 || t.DType.Lanes == 0 {
		return errors.Malformed(errors.PhaseImport, "zero-width dtype")
	}
	if t.Device.Kind <= 0 {
		return errors.Malformed(errors.PhaseImport, "missing device kind")
	}
	return nil
}

// SameDevice fails when two descriptors sit on different devices; an
// operation mixing them needs an explicit transfer step first.
func SameDevice(a, b *abi.Tensor) error {
	if a.Device != b.Device {
		return errors.DeviceMismatch(errors.PhaseCall,
			deviceString(b.Device), deviceString(a.Device))
	}
	return nil
}

func deviceString(d abi.Device) string {
	return fmt.Sprintf("%s:%d", d.Kind, d.Ordinal)
}
