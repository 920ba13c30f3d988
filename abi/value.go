package abi

import (
	"math"
	"unsafe"
)

// TypeIndex discriminates the payload of a TaggedValue and, for object
// indices, identifies the object's type in the type registry.
type TypeIndex int32

// Scalar type indices. Values with these discriminants carry their payload
// inline and never participate in reference counting.
const (
	TypeNone TypeIndex = iota
	TypeInt
	TypeBool
	TypeFloat
	TypeOpaquePtr
	TypeDataType
	TypeDevice
	TypeSmallStr   // string bytes inline in the payload, length in Reserved
	TypeSmallBytes // raw bytes inline in the payload, length in Reserved
)

// Object type indices. Values with these discriminants carry a pointer to an
// ObjectHeader in the payload; whoever owns the value owns one reference unit.
const (
	TypeStaticObjectBegin TypeIndex = 64

	TypeObject   TypeIndex = 64 // opaque foreign object
	TypeStr      TypeIndex = 65 // heap string cell
	TypeBytes    TypeIndex = 66 // heap bytes cell
	TypeError    TypeIndex = 67 // error cell {kind, message}
	TypeFunction TypeIndex = 68 // callable cell {resource, safecall}
	TypeTensor   TypeIndex = 69 // managed strided tensor

	TypeStaticObjectEnd TypeIndex = 70

	// TypeDynamicBegin is the first index handed out by dynamic type
	// registration; everything below is reserved for the static table.
	TypeDynamicBegin TypeIndex = 128
)

// IsObject reports whether values of this index carry a refcounted object
// pointer in their payload.
func (t TypeIndex) IsObject() bool { return t >= TypeStaticObjectBegin }

// MaxSmallLen is the largest string or byte payload that rides inline in a
// TaggedValue instead of a heap cell.
const MaxSmallLen = 8

// TaggedValue is the on-wire discriminated value. The foreign runtime reads
// this layout directly; do not reorder fields.
//
// Reserved is zero except for inline string/bytes values, where it holds the
// byte length.
type TaggedValue struct {
	Type     TypeIndex
	Reserved int32
	Payload  uint64
}

// None returns the empty value.
func None() TaggedValue { return TaggedValue{Type: TypeNone} }

func (v *TaggedValue) SetInt64(x int64) {
	*v = TaggedValue{Type: TypeInt, Payload: uint64(x)}
}

func (v TaggedValue) Int64() int64 { return int64(v.Payload) }

func (v *TaggedValue) SetFloat64(x float64) {
	*v = TaggedValue{Type: TypeFloat, Payload: math.Float64bits(x)}
}

func (v TaggedValue) Float64() float64 { return math.Float64frombits(v.Payload) }

func (v *TaggedValue) SetBool(x bool) {
	*v = TaggedValue{Type: TypeBool}
	if x {
		v.Payload = 1
	}
}

func (v TaggedValue) Bool() bool { return v.Payload != 0 }

func (v *TaggedValue) SetOpaquePtr(p unsafe.Pointer) {
	*v = TaggedValue{Type: TypeOpaquePtr, Payload: uint64(uintptr(p))}
}

// SetObject stores an object pointer under the given object type index.
// Reference accounting is the caller's concern.
func (v *TaggedValue) SetObject(t TypeIndex, p unsafe.Pointer) {
	*v = TaggedValue{Type: t, Payload: uint64(uintptr(p))}
}

// Ptr returns the payload as a pointer. Only meaningful for TypeOpaquePtr and
// object discriminants.
func (v TaggedValue) Ptr() unsafe.Pointer { return unsafe.Pointer(uintptr(v.Payload)) }

func (v *TaggedValue) SetDataType(dt DataType) {
	*v = TaggedValue{Type: TypeDataType, Payload: dt.pack()}
}

func (v TaggedValue) DataType() DataType { return unpackDataType(v.Payload) }

func (v *TaggedValue) SetDevice(d Device) {
	*v = TaggedValue{Type: TypeDevice, Payload: uint64(uint32(d.Kind)) | uint64(uint32(d.Ordinal))<<32}
}

func (v TaggedValue) Device() Device {
	return Device{Kind: DeviceKind(int32(uint32(v.Payload))), Ordinal: int32(uint32(v.Payload >> 32))}
}

// SetSmallStr stores s inline. Reports false when s does not fit.
func (v *TaggedValue) SetSmallStr(s string) bool {
	if len(s) > MaxSmallLen {
		return false
	}
	*v = TaggedValue{Type: TypeSmallStr, Reserved: int32(len(s))}
	copy(v.inlineBytes(), s)
	return true
}

// SetSmallBytes stores b inline. Reports false when b does not fit.
func (v *TaggedValue) SetSmallBytes(b []byte) bool {
	if len(b) > MaxSmallLen {
		return false
	}
	*v = TaggedValue{Type: TypeSmallBytes, Reserved: int32(len(b))}
	copy(v.inlineBytes(), b)
	return true
}

// SmallStr returns the inline string payload.
func (v *TaggedValue) SmallStr() string { return string(v.inlineBytes()[:v.Reserved]) }

// SmallBytes returns a copy of the inline byte payload.
func (v *TaggedValue) SmallBytes() []byte {
	out := make([]byte, v.Reserved)
	copy(out, v.inlineBytes())
	return out
}

func (v *TaggedValue) inlineBytes() []byte {
	return (*[MaxSmallLen]byte)(unsafe.Pointer(&v.Payload))[:]
}
