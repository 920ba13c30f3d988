package runtime

import (
	"go.uber.org/zap"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/value"
)

// Raise stores err as the raised error of the calling goroutine, replacing
// whatever was there. A nil err clears the state. This is the error sink
// callbacks report into when they cannot return an error directly.
func (r *Runtime) Raise(err error) {
	if err != nil {
		Logger().Debug("error raised", zap.Error(err))
	}
	r.raised.Raise(err)
}

// MoveRaised takes the calling goroutine's raised error, clearing the state.
// Returns nil when nothing was raised.
func (r *Runtime) MoveRaised() error {
	return r.raised.Move()
}

// PeekRaised reports the raised error without clearing it.
func (r *Runtime) PeekRaised() error {
	return r.raised.Peek()
}

// RaisedValue materializes the calling goroutine's raised error into an
// owned error object, clearing the raised state. This is how an error
// crosses the boundary outward when the far side asks for it as a value.
// With nothing raised it returns an owned None.
func (r *Runtime) RaisedValue() (*value.Any, error) {
	err := r.raised.Move()
	if err == nil {
		return value.None(), nil
	}
	tv, aerr := r.NewError(errorKind(err), err.Error())
	if aerr != nil {
		r.raised.Raise(err) // keep it; materialization failed
		return nil, aerr
	}
	return value.Own(tv), nil
}

// ErrorFromValue decodes an error object received from the far side into a
// Go error. The view stays borrowed; the cell's text is copied out.
func (r *Runtime) ErrorFromValue(v value.View) error {
	if v.Type() != abi.TypeError {
		return errors.TypeMismatch(errors.PhaseConvert, nil,
			typeIndexName(r, v.Type()), "Error")
	}
	tv := v.Tagged()
	if tv.Ptr() == nil {
		return errors.NilPointer(errors.PhaseConvert, "error object")
	}
	ec := (*abi.ErrorCell)(abi.Payload(tv.Ptr()))
	return errors.Foreign(errors.PhaseCall, ec.Kind.String(), ec.Message.String())
}

// errorKind maps a Go error to the kind string carried in an error cell.
func errorKind(err error) string {
	if e, ok := err.(*errors.Error); ok {
		return string(e.Kind)
	}
	return "RuntimeError"
}
