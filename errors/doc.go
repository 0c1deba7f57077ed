// Package errors provides structured error types for the bindgen toolchain.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a location path, the symbol involved, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMetadata, errors.KindInvalidArgType).
//		Path("symbol", "3", "params").
//		Value(12).
//		Detail("argument type code %d out of range", 12).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.LengthMismatch(errors.PhaseSubstitute, "add", 2, 1)
//	err := errors.UnexpectedEOF(errors.PhaseMetadata, path, 4, 1)
//
// All errors implement the standard error interface and support errors.Is/As.
// A target with an empty Phase matches errors of its Kind in any phase.
package errors
