package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // object/cell allocation
	PhaseCall     Phase = "call"     // host-to-foreign calls
	PhaseCallback Phase = "callback" // foreign-to-host callbacks
	PhaseConvert  Phase = "convert"  // value packing/unpacking
	PhaseExport   Phase = "export"   // tensor capsule production
	PhaseImport   Phase = "import"   // tensor capsule consumption
	PhaseRuntime  Phase = "runtime"  // runtime lifecycle and registries
)

// Kind categorizes the error
type Kind string

const (
	KindAlreadyTaken    Kind = "already_taken"
	KindAlreadyReleased Kind = "already_released"
	KindNilPointer      Kind = "nil_pointer"
	KindTypeMismatch    Kind = "type_mismatch"
	KindUnknownType     Kind = "unknown_type"
	KindNotContiguous   Kind = "not_contiguous"
	KindDeviceMismatch  Kind = "device_mismatch"
	KindVersionMismatch Kind = "version_mismatch"
	KindMalformed       Kind = "malformed_descriptor"
	KindForeign         Kind = "foreign_error"
	KindCallbackPanic   Kind = "callback_panic"
	KindNotFound        Kind = "not_found"
	KindOutOfRange      Kind = "out_of_range"
	KindInvalidInput    Kind = "invalid_input"
	KindClosed          Kind = "closed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Got    string
	Want   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Got != "" || e.Want != "" {
		b.WriteString(": ")
		if e.Got != "" && e.Want != "" {
			b.WriteString("got ")
			b.WriteString(e.Got)
			b.WriteString(", want ")
			b.WriteString(e.Want)
		} else if e.Got != "" {
			b.WriteString("got ")
			b.WriteString(e.Got)
		} else {
			b.WriteString("want ")
			b.WriteString(e.Want)
		}
	}

	if e.Detail != "" {
		if e.Got != "" || e.Want != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Got sets the type or value actually seen
func (b *Builder) Got(t string) *Builder {
	b.err.Got = t
	return b
}

// Want sets the type or value expected
func (b *Builder) Want(t string) *Builder {
	b.err.Want = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AlreadyTaken creates the "ownership already extracted" error
func AlreadyTaken(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyTaken,
		Detail: "value already taken from owning container",
	}
}

// AlreadyReleased creates the "operation on a released handle" error
func AlreadyReleased(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyReleased,
		Detail: fmt.Sprintf("%s already released", what),
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Detail: fmt.Sprintf("nil %s pointer", what),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, got, want string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindTypeMismatch,
		Path:  path,
		Got:   got,
		Want:  want,
	}
}

// UnknownType creates an unknown type index/name error
func UnknownType(phase Phase, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownType,
		Detail: fmt.Sprintf("type %v not registered", value),
		Value:  value,
	}
}

// NotContiguous creates a contiguity violation error naming the offending
// shape and strides
func NotContiguous(phase Phase, shape, strides []int64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotContiguous,
		Detail: fmt.Sprintf("buffer with shape %v and strides %v is not contiguous", shape, strides),
		Value:  strides,
	}
}

// DeviceMismatch creates a cross-device mismatch error
func DeviceMismatch(phase Phase, got, want string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindDeviceMismatch,
		Got:   got,
		Want:  want,
	}
}

// VersionMismatch creates a capsule version mismatch error
func VersionMismatch(phase Phase, gotMajor, wantMajor uint32) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindVersionMismatch,
		Got:   fmt.Sprintf("major %d", gotMajor),
		Want:  fmt.Sprintf("major %d", wantMajor),
	}
}

// Malformed creates a malformed descriptor error
func Malformed(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMalformed,
		Detail: detail,
	}
}

// Foreign creates an error translated from the foreign runtime's raised
// error object
func Foreign(phase Phase, kind, message string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindForeign,
		Got:    kind,
		Detail: message,
	}
}

// CallbackPanic wraps a recovered panic from a registered local callable
func CallbackPanic(value any) *Error {
	return &Error{
		Phase:  PhaseCallback,
		Kind:   KindCallbackPanic,
		Detail: fmt.Sprintf("callback panicked: %v", value),
		Value:  value,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// OutOfRange creates an out-of-range error
func OutOfRange(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of range (length %d)", index, length),
		Value:  index,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Closed creates an error for operations on a closed runtime or registry
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
