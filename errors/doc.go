// Package errors provides structured error types for the structsight library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: record path, member type spelling, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindUnsupportedConstruct).
//		Path("Outer", "inner").
//		Record("ns::Outer").
//		Type("__int128").
//		Detail("not available on %s", profile.Key()).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownProfile("sparc", "gcc")
//	err := errors.ExtractionFailure("input.cpp:3:7: expected ';'", nil)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind agree, so the
// package-level sentinels (ErrUnknownProfile, ErrUnsupported, ...) can be used
// as targets.
package errors
