package runtime

import (
	"unsafe"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/object"
	"github.com/crossrt/ffi-runtime/tensor"
)

// NewTensor allocates a refcounted tensor object from a host view. The
// descriptor, shape, strides and a packed copy of the elements all live in
// one cell, so the object is self-contained and survives the view. The
// stored layout is always packed, whatever strides the view had.
func (r *Runtime) NewTensor(v *tensor.View) (*object.Handle, error) {
	if v == nil {
		return nil, errors.NilPointer(errors.PhaseAlloc, "tensor view")
	}

	shape := v.Shape()
	ndim := len(shape)
	n := tensor.NumElements(shape)
	if n < 0 {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "negative or overflowing shape extents")
	}
	dataSize := n * v.DType().ElemBytes()

	cellSize := int(unsafe.Sizeof(abi.TensorCell{}))
	arraysSize := 2 * 8 * ndim
	p, err := r.NewObject(abi.TypeTensor, cellSize+arraysSize+int(dataSize))
	if err != nil {
		return nil, err
	}

	tc := (*abi.TensorCell)(abi.Payload(p))
	*tc = abi.TensorCell{}

	var shapePtr, stridesPtr *int64
	if ndim > 0 {
		shapePtr = (*int64)(unsafe.Add(abi.Payload(p), cellSize))
		stridesPtr = (*int64)(unsafe.Add(abi.Payload(p), cellSize+8*ndim))
		copy(unsafe.Slice(shapePtr, ndim), shape)
		copy(unsafe.Slice(stridesPtr, ndim), tensor.PackedStrides(shape))
	}

	var dataPtr unsafe.Pointer
	if dataSize > 0 {
		dataPtr = unsafe.Add(abi.Payload(p), cellSize+arraysSize)
		copy(unsafe.Slice((*byte)(dataPtr), dataSize), v.CopyBytes())
	}

	tc.Tensor = abi.Tensor{
		Data:    dataPtr,
		Device:  v.Device(),
		NDim:    int32(ndim),
		DType:   v.DType(),
		Shape:   shapePtr,
		Strides: stridesPtr,
	}
	return object.FromOwned(p, abi.TypeTensor)
}

// Tensor returns the descriptor inside a tensor object. The pointer aliases
// the cell and is valid while the handle holds its reference.
func (r *Runtime) Tensor(h *object.Handle) (*abi.Tensor, error) {
	p, err := h.Raw()
	if err != nil {
		return nil, err
	}
	if h.TypeIndex() != abi.TypeTensor {
		return nil, errors.TypeMismatch(errors.PhaseConvert, nil,
			typeIndexName(r, h.TypeIndex()), "Tensor")
	}
	return &(*abi.TensorCell)(abi.Payload(p)).Tensor, nil
}

// TensorBytes returns the element storage of a tensor object as a flat byte
// slice aliasing the cell, resolved through the device backend.
func (r *Runtime) TensorBytes(h *object.Handle) ([]byte, error) {
	t, err := r.Tensor(h)
	if err != nil {
		return nil, err
	}
	b, err := tensor.BackendFor(t.Device.Kind)
	if err != nil {
		return nil, err
	}
	return b.Bytes(t)
}
