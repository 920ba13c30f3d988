package callback

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/value"
)

// Invoke is the trampoline body behind the boundary signature
// (resource, argv, argc, out_result) -> status.
//
// The caller retains ownership of argument storage, so arguments are
// exposed to the callable as borrowed views, never taken. The result's
// reference unit transfers to the caller through out_result. A local error
// or recovered panic is materialized into the raised-error sink and
// reported as a nonzero status; the host's unwind never crosses the ABI.
func (r *Registry) Invoke(resource uintptr, argv *abi.TaggedValue, argc int32, result *abi.TaggedValue) (status abi.Status) {
	defer func() {
		if rec := recover(); rec != nil {
			r.sink.Raise(errors.CallbackPanic(rec))
			Logger().Debug("callback panic recovered", zap.Any("panic", rec))
			status = abi.StatusError
		}
	}()

	if result == nil {
		r.sink.Raise(errors.NilPointer(errors.PhaseCallback, "out_result"))
		return abi.StatusError
	}
	*result = abi.None()

	if argc < 0 || (argc > 0 && argv == nil) {
		r.sink.Raise(errors.InvalidInput(errors.PhaseCallback, "malformed argument array"))
		return abi.StatusError
	}

	fn, ok := r.Lookup(Token(resource))
	if !ok {
		// A released slot reached by a racing caller is a logic error on
		// the foreign side; report it, don't crash.
		r.sink.Raise(errors.NotFound(errors.PhaseCallback, "callback slot", tokenString(Token(resource))))
		return abi.StatusError
	}

	var args []value.View
	if argc > 0 {
		raw := unsafe.Slice(argv, argc)
		args = make([]value.View, argc)
		for i := range raw {
			args[i] = value.ViewOf(raw[i])
		}
	}

	out, err := fn(args)
	if err != nil {
		r.sink.Raise(err)
		return abi.StatusError
	}

	if out != nil {
		tv, err := out.Take()
		if err != nil {
			r.sink.Raise(errors.Wrap(errors.PhaseCallback, errors.KindAlreadyTaken, err, "callback returned a spent value"))
			return abi.StatusError
		}
		*result = tv
	}
	return abi.StatusOK
}
