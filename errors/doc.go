// Package errors provides structured error types for the ffi-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: a field path, got/want
// type names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindTypeMismatch).
//		Path("argv", "2").
//		Got("float").
//		Want("int").
//		Detail("cannot convert float argument to integer").
//		Build()
//
// Or use convenience constructors for the recurring cases:
//
//	err := errors.AlreadyTaken(errors.PhaseConvert)
//	err := errors.NotContiguous(errors.PhaseExport, shape, strides)
//
// All errors implement the standard error interface and support errors.Is/As.
// Errors crossing the ABI boundary are first materialized into the foreign
// error convention (status code plus raised-error object); this package only
// describes their host-side form.
package errors
