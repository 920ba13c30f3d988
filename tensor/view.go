package tensor

import (
	"reflect"
	"unsafe"

	ffiruntime "github.com/crossrt/ffi-runtime"
	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
)

// Element is the set of Go element types a host slice view can carry.
type Element interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8
}

// View describes an existing host buffer without owning it. It is the
// argument-passing flavor of the exchange: no reference count, valid only
// while the backing slice is reachable, and the raw pointer leaves Go only
// under a scoped pin (WithDescriptor).
type View struct {
	data    unsafe.Pointer
	base    any // pointer to the first element, the pin target
	dtype   abi.DataType
	device  abi.Device
	shape   []int64
	strides []int64
}

// FromSlice builds a CPU view over data with the given shape and packed
// strides (dimension 0 fastest). The slice must stay reachable for the
// view's lifetime.
func FromSlice[T Element](data []T, shape ...int64) (*View, error) {
	return FromSliceStrided(data, shape, PackedStrides(shape))
}

// FromSliceStrided builds a CPU view with explicit strides, for transposed
// or sub-block layouts. Every reachable offset must stay inside data.
func FromSliceStrided[T Element](data []T, shape, strides []int64) (*View, error) {
	if len(shape) != len(strides) {
		return nil, errors.Malformed(errors.PhaseExport, "shape/strides rank mismatch")
	}
	n := NumElements(shape)
	if n < 0 {
		return nil, errors.Malformed(errors.PhaseExport, "negative or overflowing shape extents")
	}
	if n > 0 && len(data) == 0 {
		return nil, errors.NilPointer(errors.PhaseExport, "buffer")
	}
	if lo, hi := offsetBounds(shape, strides); n > 0 {
		if lo < 0 {
			return nil, errors.New(errors.PhaseExport, errors.KindOutOfRange).
				Detail("strides reach element %d, before the buffer", lo).
				Build()
		}
		if hi >= int64(len(data)) {
			return nil, errors.New(errors.PhaseExport, errors.KindOutOfRange).
				Detail("strides reach element %d, buffer holds %d", hi, len(data)).
				Build()
		}
	}

	v := &View{
		dtype:   dtypeOf[T](),
		device:  abi.Device{Kind: abi.DeviceCPU},
		shape:   append([]int64(nil), shape...),
		strides: append([]int64(nil), strides...),
	}
	if n > 0 {
		v.data = unsafe.Pointer(&data[0])
		v.base = &data[0]
	}
	return v, nil
}

// offsetBounds returns the smallest and largest element offsets reachable by
// the layout, measured from the origin. Negative strides pull the lower
// bound below zero, positive ones push the upper bound up; both must land
// inside the owning allocation.
func offsetBounds(shape, strides []int64) (lo, hi int64) {
	for i := range shape {
		if shape[i] == 0 {
			return 0, 0
		}
		span := (shape[i] - 1) * strides[i]
		if span > 0 {
			hi += span
		} else {
			lo += span
		}
	}
	return lo, hi
}

func dtypeOf[T Element]() abi.DataType {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Float32:
		return abi.Float32
	case reflect.Float64:
		return abi.Float64
	case reflect.Int32:
		return abi.Int32
	case reflect.Int64:
		return abi.Int64
	default:
		return abi.UInt8
	}
}

// Shape returns the view's extents.
func (v *View) Shape() []int64 { return v.shape }

// Strides returns the view's element strides.
func (v *View) Strides() []int64 { return v.strides }

// DType returns the element type.
func (v *View) DType() abi.DataType { return v.dtype }

// Device returns the buffer's device.
func (v *View) Device() abi.Device { return v.device }

// Contiguous reports whether the view passes the protocol's zero-copy gate.
func (v *View) Contiguous() bool { return Contiguous(v.shape, v.strides) }

// CopyBytes gathers the view's elements into a freshly allocated packed
// buffer, dimension 0 fastest. Used when a consumer needs its own contiguous
// copy of a strided host layout.
func (v *View) CopyBytes() []byte {
	elem := v.dtype.ElemBytes()
	out := make([]byte, 0, NumElements(v.shape)*elem)
	ForEachOffset(v.shape, v.strides, func(off int64) {
		src := unsafe.Slice((*byte)(unsafe.Add(v.data, off*elem)), elem)
		out = append(out, src...)
	})
	return out
}

// WithDescriptor materializes the wire descriptor over the view's buffer
// and runs fn with it. The buffer, shape, and strides are pinned
// immediately before the descriptor is built and released only after fn
// returns, on error paths included; the descriptor must not escape fn.
func (v *View) WithDescriptor(fn func(*abi.Tensor) error) error {
	desc := abi.Tensor{
		Data:   v.data,
		Device: v.device,
		NDim:   int32(len(v.shape)),
		DType:  v.dtype,
	}

	pins := make([]any, 0, 3)
	if v.base != nil {
		pins = append(pins, v.base)
	}
	if len(v.shape) > 0 {
		pins = append(pins, &v.shape[0], &v.strides[0])
		desc.Shape = &v.shape[0]
		desc.Strides = &v.strides[0]
	}

	return ffiruntime.Pin(pins, func() error {
		return fn(&desc)
	})
}
