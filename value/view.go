package value

import (
	"fmt"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/object"
)

// View is a borrowed, read-only wrapper around a tagged wire value. It never
// performs a release and is only valid while the producer guarantees the
// referenced data alive.
type View struct {
	tv abi.TaggedValue
}

// ViewOf wraps a tagged value without touching reference counts. Zero cost,
// never fails.
func ViewOf(tv abi.TaggedValue) View { return View{tv: tv} }

// Tagged returns the underlying wire value.
func (v View) Tagged() abi.TaggedValue { return v.tv }

// Type returns the value's discriminant.
func (v View) Type() abi.TypeIndex { return v.tv.Type }

// IsNone reports whether the view holds no value.
func (v View) IsNone() bool { return v.tv.Type == abi.TypeNone }

func (v View) typeErr(want string) error {
	return errors.TypeMismatch(errors.PhaseConvert, nil, typeName(v.tv.Type), want)
}

// Int64 returns the integer payload.
func (v View) Int64() (int64, error) {
	if v.tv.Type != abi.TypeInt {
		return 0, v.typeErr("int")
	}
	return v.tv.Int64(), nil
}

// Float64 returns the float payload. Integer payloads convert implicitly,
// matching the loose numeric convention of the wire protocol.
func (v View) Float64() (float64, error) {
	switch v.tv.Type {
	case abi.TypeFloat:
		return v.tv.Float64(), nil
	case abi.TypeInt:
		return float64(v.tv.Int64()), nil
	}
	return 0, v.typeErr("float")
}

// Bool returns the boolean payload.
func (v View) Bool() (bool, error) {
	if v.tv.Type != abi.TypeBool {
		return false, v.typeErr("bool")
	}
	return v.tv.Bool(), nil
}

// DataType returns the dtype payload.
func (v View) DataType() (abi.DataType, error) {
	if v.tv.Type != abi.TypeDataType {
		return abi.DataType{}, v.typeErr("dtype")
	}
	return v.tv.DataType(), nil
}

// Device returns the device payload.
func (v View) Device() (abi.Device, error) {
	if v.tv.Type != abi.TypeDevice {
		return abi.Device{}, v.typeErr("device")
	}
	return v.tv.Device(), nil
}

// Str returns a Go copy of an inline or heap string. An inline value whose
// recorded length exceeds the payload is a malformed wire value, reported
// rather than dereferenced.
func (v View) Str() (string, error) {
	switch v.tv.Type {
	case abi.TypeSmallStr:
		if err := v.checkInlineLen(); err != nil {
			return "", err
		}
		return v.tv.SmallStr(), nil
	case abi.TypeStr:
		cell := (*abi.BytesCell)(abi.Payload(v.tv.Ptr()))
		return cell.Span.String(), nil
	}
	return "", v.typeErr("str")
}

// Bytes returns a Go copy of an inline or heap byte value.
func (v View) Bytes() ([]byte, error) {
	switch v.tv.Type {
	case abi.TypeSmallBytes:
		if err := v.checkInlineLen(); err != nil {
			return nil, err
		}
		return v.tv.SmallBytes(), nil
	case abi.TypeBytes:
		cell := (*abi.BytesCell)(abi.Payload(v.tv.Ptr()))
		out := make([]byte, cell.Span.Size)
		copy(out, cell.Span.Bytes())
		return out, nil
	}
	return nil, v.typeErr("bytes")
}

func (v View) checkInlineLen() error {
	if v.tv.Reserved < 0 || v.tv.Reserved > abi.MaxSmallLen {
		return errors.Malformed(errors.PhaseConvert,
			fmt.Sprintf("inline length %d outside [0, %d]", v.tv.Reserved, abi.MaxSmallLen))
	}
	return nil
}

// Handle returns a new owning handle on an object payload, incrementing the
// count by exactly one. Safe to call any number of times on the same view.
func (v View) Handle() (*object.Handle, error) {
	if !v.tv.Type.IsObject() {
		return nil, v.typeErr("object")
	}
	return object.FromBorrowed(v.tv.Ptr(), v.tv.Type)
}

// Copy converts the view into a locally usable value. Scalars are plain
// copies; strings and bytes come back as Go copies of the data; any other
// object discriminant comes back as an owning handle holding one fresh
// reference unit. The view itself remains valid and never releases.
func (v View) Copy() (any, error) {
	switch v.tv.Type {
	case abi.TypeNone:
		return nil, nil
	case abi.TypeInt:
		return v.tv.Int64(), nil
	case abi.TypeBool:
		return v.tv.Bool(), nil
	case abi.TypeFloat:
		return v.tv.Float64(), nil
	case abi.TypeOpaquePtr:
		return v.tv.Ptr(), nil
	case abi.TypeDataType:
		return v.tv.DataType(), nil
	case abi.TypeDevice:
		return v.tv.Device(), nil
	case abi.TypeSmallStr, abi.TypeStr:
		return v.Str()
	case abi.TypeSmallBytes, abi.TypeBytes:
		return v.Bytes()
	}
	if v.tv.Type.IsObject() {
		return v.Handle()
	}
	return nil, errors.UnknownType(errors.PhaseConvert, v.tv.Type)
}

func typeName(t abi.TypeIndex) string {
	switch t {
	case abi.TypeNone:
		return "none"
	case abi.TypeInt:
		return "int"
	case abi.TypeBool:
		return "bool"
	case abi.TypeFloat:
		return "float"
	case abi.TypeOpaquePtr:
		return "opaque_ptr"
	case abi.TypeDataType:
		return "dtype"
	case abi.TypeDevice:
		return "device"
	case abi.TypeSmallStr, abi.TypeStr:
		return "str"
	case abi.TypeSmallBytes, abi.TypeBytes:
		return "bytes"
	case abi.TypeError:
		return "error"
	case abi.TypeFunction:
		return "function"
	case abi.TypeTensor:
		return "tensor"
	case abi.TypeObject:
		return "object"
	}
	if t.IsObject() {
		return "object"
	}
	return "unknown"
}
