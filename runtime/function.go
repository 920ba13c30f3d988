package runtime

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/callback"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/object"
	"github.com/crossrt/ffi-runtime/tensor"
	"github.com/crossrt/ffi-runtime/value"
)

// localSafeCall marks a function cell whose Resource is a callback registry
// token rather than foreign state. It is odd, so it can never collide with a
// real (aligned) C function pointer.
const localSafeCall uintptr = 1

// NewFunction wraps a boundary-shaped callback into a refcounted function
// object. The returned handle owns one reference unit; when the strong count
// reaches zero the callback slot is released with the cell.
func (r *Runtime) NewFunction(fn callback.Func) (*object.Handle, error) {
	tok, err := r.callbacks.Register(fn)
	if err != nil {
		return nil, err
	}

	p, err := r.newCell(abi.TypeFunction, int(unsafe.Sizeof(abi.FunctionCell{})), r.fnToken)
	if err != nil {
		r.callbacks.Delete(uintptr(tok))
		return nil, err
	}

	fc := (*abi.FunctionCell)(abi.Payload(p))
	fc.Resource = uintptr(tok)
	fc.SafeCall = localSafeCall
	return object.FromOwned(p, abi.TypeFunction)
}

// NewGoFunction adapts a plain Go function via reflection and wraps it into
// a function object. See callback.Wrap for the supported signatures.
func (r *Runtime) NewGoFunction(fn any) (*object.Handle, error) {
	wrapped, err := callback.Wrap(fn, r)
	if err != nil {
		return nil, err
	}
	return r.NewFunction(wrapped)
}

// ForeignFunction wraps a foreign safecall function pointer and its resource
// state into a function object. The resource is treated as borrowed: foreign
// callables that own state arrive as complete foreign objects carrying their
// own header deleter and are adopted with object.FromOwned instead.
func (r *Runtime) ForeignFunction(safeCall, resource uintptr) (*object.Handle, error) {
	if safeCall == 0 {
		return nil, errors.NilPointer(errors.PhaseRuntime, "safecall pointer")
	}
	if safeCall&1 != 0 {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "misaligned safecall pointer")
	}

	p, err := r.newCell(abi.TypeFunction, int(unsafe.Sizeof(abi.FunctionCell{})), r.fnToken)
	if err != nil {
		return nil, err
	}

	fc := (*abi.FunctionCell)(abi.Payload(p))
	fc.Resource = resource
	fc.SafeCall = safeCall
	return object.FromOwned(p, abi.TypeFunction)
}

// releaseFunctionCell is the deleter behind function cells. Local cells give
// their callback slot back before the cell itself is freed.
func (r *Runtime) releaseFunctionCell(p unsafe.Pointer) {
	fc := (*abi.FunctionCell)(abi.Payload(p))
	if fc.SafeCall == localSafeCall {
		r.callbacks.Delete(fc.Resource)
	}
	r.releaseCell(p)
}

// SafeCall dispatches a packed call through a function object: local cells
// go through the callback registry, foreign cells through their C function
// pointer. The returned status follows the boundary convention; on error the
// details are in the caller's raised state.
func (r *Runtime) SafeCall(fn *object.Handle, argv *abi.TaggedValue, argc int32, result *abi.TaggedValue) abi.Status {
	p, err := fn.Raw()
	if err != nil {
		r.Raise(err)
		return abi.StatusError
	}
	if fn.TypeIndex() != abi.TypeFunction {
		r.Raise(errors.TypeMismatch(errors.PhaseCall, nil, typeIndexName(r, fn.TypeIndex()), "Function"))
		return abi.StatusError
	}

	fc := (*abi.FunctionCell)(abi.Payload(p))
	if fc.SafeCall == localSafeCall {
		return r.callbacks.Invoke(fc.Resource, argv, argc, result)
	}

	ret, _, _ := purego.SyscallN(fc.SafeCall,
		fc.Resource,
		uintptr(unsafe.Pointer(argv)),
		uintptr(argc),
		uintptr(unsafe.Pointer(result)))
	return abi.Status(int32(ret))
}

// Call packs Go arguments, dispatches through SafeCall and unpacks the
// result. Arguments are passed borrowed: handles stay owned by the caller,
// and temporaries allocated for packing are released before Call returns.
// The returned value is owned by the caller.
func (r *Runtime) Call(fn *object.Handle, args ...any) (*value.Any, error) {
	buf := value.GetArgv()
	defer value.PutArgv(buf)

	argv := *buf
	var temps []*value.Any
	defer func() {
		for _, t := range temps {
			t.Release()
		}
	}()

	for i, arg := range args {
		tv, temp, err := r.packArg(arg)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseCall, errors.KindInvalidInput, err,
				fmt.Sprintf("argument %d", i))
		}
		if temp != nil {
			temps = append(temps, temp)
		}
		argv = append(argv, tv)
	}
	*buf = argv

	var result abi.TaggedValue
	var argp *abi.TaggedValue
	if len(argv) > 0 {
		argp = &argv[0]
	}

	status := r.SafeCall(fn, argp, int32(len(argv)), &result)
	if status != abi.StatusOK {
		err := r.MoveRaised()
		if err == nil {
			err = errors.Foreign(errors.PhaseCall, "UnknownError", "call failed with no raised error")
		}
		Logger().Debug("call failed", zap.Error(err))
		return nil, err
	}
	return value.Own(result), nil
}

// packArg converts one Go argument to its tagged form. When packing had to
// allocate an owning temporary (heap strings, bytes, tensors), it is
// returned so the caller can release it after the call.
func (r *Runtime) packArg(arg any) (abi.TaggedValue, *value.Any, error) {
	switch x := arg.(type) {
	case nil:
		return abi.None(), nil, nil
	case bool:
		var tv abi.TaggedValue
		tv.SetBool(x)
		return tv, nil, nil
	case int:
		var tv abi.TaggedValue
		tv.SetInt64(int64(x))
		return tv, nil, nil
	case int32:
		var tv abi.TaggedValue
		tv.SetInt64(int64(x))
		return tv, nil, nil
	case int64:
		var tv abi.TaggedValue
		tv.SetInt64(x)
		return tv, nil, nil
	case float32:
		var tv abi.TaggedValue
		tv.SetFloat64(float64(x))
		return tv, nil, nil
	case float64:
		var tv abi.TaggedValue
		tv.SetFloat64(x)
		return tv, nil, nil
	case unsafe.Pointer:
		var tv abi.TaggedValue
		tv.SetOpaquePtr(x)
		return tv, nil, nil
	case abi.DataType:
		var tv abi.TaggedValue
		tv.SetDataType(x)
		return tv, nil, nil
	case abi.Device:
		var tv abi.TaggedValue
		tv.SetDevice(x)
		return tv, nil, nil
	case string:
		var tv abi.TaggedValue
		if tv.SetSmallStr(x) {
			return tv, nil, nil
		}
		heap, err := r.NewString(x)
		if err != nil {
			return abi.None(), nil, err
		}
		return heap, value.Own(heap), nil
	case []byte:
		heap, err := r.NewBytes(x)
		if err != nil {
			return abi.None(), nil, err
		}
		return heap, value.Own(heap), nil
	case *object.Handle:
		p, err := x.Raw()
		if err != nil {
			return abi.None(), nil, err
		}
		var tv abi.TaggedValue
		tv.SetObject(x.TypeIndex(), p)
		return tv, nil, nil
	case *tensor.View:
		h, err := r.NewTensor(x)
		if err != nil {
			return abi.None(), nil, err
		}
		temp, err := value.OwnHandle(h)
		if err != nil {
			return abi.None(), nil, err
		}
		v, err := temp.View()
		if err != nil {
			return abi.None(), nil, err
		}
		return v.Tagged(), temp, nil
	case value.View:
		return x.Tagged(), nil, nil
	case *value.Any:
		v, err := x.View()
		if err != nil {
			return abi.None(), nil, err
		}
		return v.Tagged(), nil, nil
	case abi.TaggedValue:
		return x, nil, nil
	default:
		return abi.None(), nil, errors.New(errors.PhaseCall, errors.KindTypeMismatch).
			Got(fmt.Sprintf("%T", arg)).
			Want("packable argument").
			Build()
	}
}

// RegisterGlobal publishes a function (or any object) under a name. The
// table takes ownership of the handle; Close releases everything left.
func (r *Runtime) RegisterGlobal(name string, h *object.Handle) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseRuntime, "empty global name")
	}
	if h == nil || !h.Alive() {
		return errors.NilPointer(errors.PhaseRuntime, "global handle")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.Closed(errors.PhaseRuntime, "runtime")
	}
	prev := r.globals[name]
	r.globals[name] = h
	r.mu.Unlock()

	if prev != nil {
		if err := prev.Release(); err != nil {
			Logger().Warn("replaced global release failed",
				zap.String("name", name), zap.Error(err))
		}
	}
	return nil
}

// Global returns a fresh owning handle to a registered object, or not_found.
func (r *Runtime) Global(name string) (*object.Handle, error) {
	r.mu.Lock()
	h, ok := r.globals[name]
	r.mu.Unlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "global", name)
	}
	return h.Clone()
}

// GlobalNames lists registered globals, unordered.
func (r *Runtime) GlobalNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.globals))
	for name := range r.globals {
		names = append(names, name)
	}
	return names
}

func typeIndexName(r *Runtime, t abi.TypeIndex) string {
	if key, err := r.TypeKeyFor(t); err == nil {
		return key
	}
	return fmt.Sprintf("type#%d", int32(t))
}
