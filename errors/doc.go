// Package errors provides structured error types for the mjrt runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the module and function name involved and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLinking, errors.KindTypeMismatch).
//		Module("env").
//		Name("system_read").
//		Detail("guest expects (i32) -> i32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseRuntime, "export", "main")
//	err := errors.Trap("main", cause)
//
// The primitives of the shim package never return these errors: allocation
// exhaustion and end of input are ordinary return values. Everything around
// them (loading, linking, running guests) reports failures here.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
