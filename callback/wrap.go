package callback

import (
	"reflect"
	"strconv"
	"unsafe"

	ffiruntime "github.com/crossrt/ffi-runtime"
	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/object"
	"github.com/crossrt/ffi-runtime/value"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Wrap adapts a plain Go function into a registrable Func, converting
// arguments and results through the value containers. Supported parameter
// types: int64, int32, int, float64, bool, string, []byte, abi.DataType,
// abi.Device, *object.Handle, value.View (raw passthrough). Results may be
// (), (error), (T) or (T, error) with T from the same set plus *value.Any.
//
// cells supplies heap cells for string/bytes results that do not fit
// inline; pass nil when the function only returns scalars.
func Wrap(fn any, cells ffiruntime.CellAllocator) (Func, error) {
	rv := reflect.ValueOf(fn)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		return nil, errors.InvalidInput(errors.PhaseCallback, "Wrap needs a function")
	}
	if rt.IsVariadic() {
		return nil, errors.InvalidInput(errors.PhaseCallback, "variadic callables are not supported")
	}

	argConv := make([]func(value.View) (reflect.Value, error), rt.NumIn())
	for i := 0; i < rt.NumIn(); i++ {
		conv, err := converterFor(rt.In(i))
		if err != nil {
			return nil, err
		}
		argConv[i] = conv
	}

	numOut := rt.NumOut()
	lastIsErr := numOut > 0 && rt.Out(numOut-1) == errType
	valueOuts := numOut
	if lastIsErr {
		valueOuts--
	}
	if valueOuts > 1 {
		return nil, errors.InvalidInput(errors.PhaseCallback, "at most one non-error result is supported")
	}

	return func(args []value.View) (*value.Any, error) {
		if len(args) != len(argConv) {
			return nil, errors.New(errors.PhaseCallback, errors.KindInvalidInput).
				Detail("argc = %d, want %d", len(args), len(argConv)).
				Build()
		}

		in := make([]reflect.Value, len(args))
		for i, v := range args {
			conv, err := argConv[i](v)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseCallback, errors.KindTypeMismatch, err,
					"argument "+strconv.Itoa(i))
			}
			in[i] = conv
		}

		out := rv.Call(in)

		if lastIsErr {
			if errVal := out[numOut-1]; !errVal.IsNil() {
				return nil, errVal.Interface().(error)
			}
		}
		if valueOuts == 0 {
			return nil, nil
		}
		return toOwned(out[0], cells)
	}, nil
}

func converterFor(t reflect.Type) (func(value.View) (reflect.Value, error), error) {
	switch t {
	case reflect.TypeOf(value.View{}):
		return func(v value.View) (reflect.Value, error) {
			return reflect.ValueOf(v), nil
		}, nil
	case reflect.TypeOf((*object.Handle)(nil)):
		return func(v value.View) (reflect.Value, error) {
			h, err := v.Handle()
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(h), nil
		}, nil
	case reflect.TypeOf(abi.DataType{}):
		return func(v value.View) (reflect.Value, error) {
			dt, err := v.DataType()
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(dt), nil
		}, nil
	case reflect.TypeOf(abi.Device{}):
		return func(v value.View) (reflect.Value, error) {
			d, err := v.Device()
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(d), nil
		}, nil
	}

	switch t.Kind() {
	case reflect.Int64, reflect.Int32, reflect.Int:
		return func(v value.View) (reflect.Value, error) {
			x, err := v.Int64()
			if err != nil {
				return reflect.Value{}, err
			}
			rv := reflect.New(t).Elem()
			rv.SetInt(x)
			return rv, nil
		}, nil
	case reflect.Float64:
		return func(v value.View) (reflect.Value, error) {
			x, err := v.Float64()
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(x), nil
		}, nil
	case reflect.Bool:
		return func(v value.View) (reflect.Value, error) {
			x, err := v.Bool()
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(x), nil
		}, nil
	case reflect.String:
		return func(v value.View) (reflect.Value, error) {
			s, err := v.Str()
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(s), nil
		}, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return func(v value.View) (reflect.Value, error) {
				b, err := v.Bytes()
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(b), nil
			}, nil
		}
	case reflect.UnsafePointer:
		return func(v value.View) (reflect.Value, error) {
			if v.Type() != abi.TypeOpaquePtr {
				return reflect.Value{}, errors.TypeMismatch(errors.PhaseCallback, nil, "", "opaque_ptr")
			}
			return reflect.ValueOf(v.Tagged().Ptr()), nil
		}, nil
	}
	return nil, errors.New(errors.PhaseCallback, errors.KindTypeMismatch).
		Got(t.String()).
		Detail("unsupported parameter type").
		Build()
}

func toOwned(out reflect.Value, cells ffiruntime.CellAllocator) (*value.Any, error) {
	switch v := out.Interface().(type) {
	case *value.Any:
		return v, nil
	case *object.Handle:
		return value.OwnHandle(v)
	case abi.DataType:
		return value.DType(v), nil
	case abi.Device:
		return value.Device(v), nil
	case string:
		if a, ok := value.SmallStr(v); ok {
			return a, nil
		}
		if cells == nil {
			return nil, errors.InvalidInput(errors.PhaseCallback, "string result needs a cell allocator")
		}
		tv, err := cells.NewString(v)
		if err != nil {
			return nil, err
		}
		return value.Own(tv), nil
	case []byte:
		if cells == nil {
			return nil, errors.InvalidInput(errors.PhaseCallback, "bytes result needs a cell allocator")
		}
		tv, err := cells.NewBytes(v)
		if err != nil {
			return nil, err
		}
		return value.Own(tv), nil
	case bool:
		return value.Bool(v), nil
	case float64:
		return value.Float(v), nil
	case unsafe.Pointer:
		return value.OpaquePtr(v), nil
	}

	switch out.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return value.Int(out.Int()), nil
	}
	return nil, errors.New(errors.PhaseCallback, errors.KindTypeMismatch).
		Got(out.Type().String()).
		Detail("unsupported result type").
		Build()
}
