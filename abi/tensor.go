package abi

import "unsafe"

// DeviceKind identifies a device backend. Values follow the strided-buffer
// interchange convention shared with the foreign runtime.
type DeviceKind int32

const (
	DeviceCPU      DeviceKind = 1
	DeviceCUDA     DeviceKind = 2
	DeviceCUDAHost DeviceKind = 3
	DeviceOpenCL   DeviceKind = 4
	DeviceVulkan   DeviceKind = 7
	DeviceMetal    DeviceKind = 8
	DeviceROCm     DeviceKind = 10
	DeviceROCmHost DeviceKind = 11
	DeviceCUDAMngd DeviceKind = 13
	DeviceOneAPI   DeviceKind = 14
)

func (k DeviceKind) String() string {
	switch k {
	case DeviceCPU:
		return "cpu"
	case DeviceCUDA:
		return "cuda"
	case DeviceCUDAHost:
		return "cuda_host"
	case DeviceOpenCL:
		return "opencl"
	case DeviceVulkan:
		return "vulkan"
	case DeviceMetal:
		return "metal"
	case DeviceROCm:
		return "rocm"
	case DeviceROCmHost:
		return "rocm_host"
	case DeviceCUDAMngd:
		return "cuda_managed"
	case DeviceOneAPI:
		return "oneapi"
	}
	return "unknown"
}

// Device is a device kind plus ordinal (e.g. GPU index).
type Device struct {
	Kind    DeviceKind
	Ordinal int32
}

// TypeCode is the element-type family of a DataType.
type TypeCode uint8

const (
	CodeInt     TypeCode = 0
	CodeUInt    TypeCode = 1
	CodeFloat   TypeCode = 2
	CodeBFloat  TypeCode = 4
	CodeComplex TypeCode = 5
	CodeBool    TypeCode = 6
)

// DataType describes a tensor element: type family, bit width, vector lanes.
type DataType struct {
	Code  TypeCode
	Bits  uint8
	Lanes uint16
}

// ElemBytes returns the byte size of one element, rounding sub-byte widths up.
func (d DataType) ElemBytes() int64 {
	return (int64(d.Bits)*int64(d.Lanes) + 7) / 8
}

func (d DataType) pack() uint64 {
	return uint64(d.Code) | uint64(d.Bits)<<8 | uint64(d.Lanes)<<16
}

func unpackDataType(p uint64) DataType {
	return DataType{Code: TypeCode(p), Bits: uint8(p >> 8), Lanes: uint16(p >> 16)}
}

// Common element types.
var (
	Float32 = DataType{Code: CodeFloat, Bits: 32, Lanes: 1}
	Float64 = DataType{Code: CodeFloat, Bits: 64, Lanes: 1}
	Int32   = DataType{Code: CodeInt, Bits: 32, Lanes: 1}
	Int64   = DataType{Code: CodeInt, Bits: 64, Lanes: 1}
	UInt8   = DataType{Code: CodeUInt, Bits: 8, Lanes: 1}
	Bool8   = DataType{Code: CodeBool, Bits: 8, Lanes: 1}
)

// Tensor is the strided-buffer descriptor. Shape and Strides point at ndim
// int64 extents/offsets owned by whoever produced the descriptor; strides are
// in elements, not bytes. The foreign runtime reads this layout directly.
type Tensor struct {
	Data       unsafe.Pointer
	Device     Device
	NDim       int32
	DType      DataType
	Shape      *int64
	Strides    *int64
	ByteOffset uint64
}

// ShapeSlice returns the shape as a Go slice aliasing the descriptor's memory.
func (t *Tensor) ShapeSlice() []int64 {
	if t.Shape == nil || t.NDim <= 0 {
		return nil
	}
	return unsafe.Slice(t.Shape, t.NDim)
}

// StridesSlice returns the strides as a Go slice aliasing the descriptor's
// memory. Nil strides mean "defaulted"; interpretation is the consumer's.
func (t *Tensor) StridesSlice() []int64 {
	if t.Strides == nil || t.NDim <= 0 {
		return nil
	}
	return unsafe.Slice(t.Strides, t.NDim)
}

// PackVersion is the exchange-protocol version carried by every capsule.
type PackVersion struct {
	Major uint32
	Minor uint32
}

// Current exchange-protocol version. A consumer must reject capsules whose
// major version differs.
const (
	VersionMajor = 1
	VersionMinor = 1
)

// Capsule flag bits.
const (
	FlagReadOnly uint64 = 1 << 0
)

// ManagedTensorVersioned is the versioned exchange capsule: a tensor
// descriptor bound to a reference count via ManagerCtx and Deleter. The
// consumer must invoke Deleter(capsule) exactly once when done; until then
// the producer keeps the buffer alive.
//
// Deleter has C signature void(*)(ManagedTensorVersioned* self) and may be a
// locally registered token (see object.RegisterDeleter).
type ManagedTensorVersioned struct {
	Version    PackVersion
	ManagerCtx unsafe.Pointer
	Deleter    uintptr
	Flags      uint64
	Tensor     Tensor
}

// ReadOnly reports whether the producer marked the buffer immutable.
func (m *ManagedTensorVersioned) ReadOnly() bool { return m.Flags&FlagReadOnly != 0 }
