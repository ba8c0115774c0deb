package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve  Phase = "resolve"  // ABI profile lookup
	PhaseExtract  Phase = "extract"  // declaration extraction
	PhaseParse    Phase = "parse"    // source scanning/parsing
	PhaseValidate Phase = "validate" // declaration validation
	PhaseBuild    Phase = "build"    // layout computation
	PhaseOptimize Phase = "optimize" // member reordering search
	PhaseAnalyze  Phase = "analyze"  // batch aggregation
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseReport   Phase = "report"   // report encoding/decoding
)

// Kind categorizes the error
type Kind string

const (
	KindUnknownProfile       Kind = "unknown_profile"
	KindExtractionFailure    Kind = "extraction_failure"
	KindTypeNotFound         Kind = "type_not_found"
	KindUnsupportedConstruct Kind = "unsupported_construct"
	KindInvalidInput         Kind = "invalid_input"
	KindInvariantViolation   Kind = "invariant_violation"
	KindOverflow             Kind = "overflow"
	KindCanceled             Kind = "canceled"
	KindIncompatible         Kind = "incompatible"
)

// Sentinels usable as errors.Is targets.
var (
	ErrUnknownProfile    = &Error{Phase: PhaseResolve, Kind: KindUnknownProfile}
	ErrExtraction        = &Error{Phase: PhaseExtract, Kind: KindExtractionFailure}
	ErrUnsupported       = &Error{Phase: PhaseBuild, Kind: KindUnsupportedConstruct}
	ErrInvariant         = &Error{Phase: PhaseBuild, Kind: KindInvariantViolation}
	ErrInvalidDecl       = &Error{Phase: PhaseValidate, Kind: KindInvalidInput}
	ErrIncompatibleSpec  = &Error{Phase: PhaseReport, Kind: KindIncompatible}
	ErrOptimizeInvariant = &Error{Phase: PhaseOptimize, Kind: KindInvariantViolation}
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Record string
	Type   string
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

	if e.Record != "" || e.Type != "" {
		b.WriteString(": ")
		if e.Record != "" && e.Type != "" {
			b.WriteString("record ")
			b.WriteString(e.Record)
			b.WriteString(", type ")
			b.WriteString(e.Type)
		} else if e.Record != "" {
			b.WriteString("record ")
			b.WriteString(e.Record)
		} else {
			b.WriteString("type ")
			b.WriteString(e.Type)
		}
	}

	if e.Detail != "" {
		if e.Record != "" || e.Type != "" {
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

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Record sets the qualified record name
func (b *Builder) Record(name string) *Builder {
	b.err.Record = name
	return b
}

// Type sets the offending type spelling
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
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

// UnknownProfile creates an error for an unsupported architecture/compiler pair
func UnknownProfile(arch, compiler string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnknownProfile,
		Detail: fmt.Sprintf("no ABI profile for architecture %q and compiler %q", arch, compiler),
		Value:  arch + "/" + compiler,
	}
}

// ExtractionFailure wraps a declaration extractor failure. The detail is kept
// verbatim because it is surfaced to callers as-is.
func ExtractionFailure(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseExtract,
		Kind:   KindExtractionFailure,
		Detail: detail,
		Cause:  cause,
	}
}

// SyntaxError creates a positioned parse failure
func SyntaxError(file string, line, col int, msg string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindExtractionFailure,
		Detail: fmt.Sprintf("%s:%d:%d: %s", file, line, col, msg),
	}
}

// Unsupported creates an unsupported construct error for a record
func Unsupported(record, typ, what string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindUnsupportedConstruct,
		Record: record,
		Type:   typ,
		Detail: what,
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

// Invariant creates an invariant violation error
func Invariant(phase Phase, record, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariantViolation,
		Record: record,
		Detail: detail,
	}
}

// Overflow creates an overflow error for size arithmetic
func Overflow(phase Phase, path []string, value any, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, what),
		Value:  value,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Canceled wraps a context cancellation
func Canceled(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCanceled,
		Detail: "operation canceled",
		Cause:  cause,
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

// SkippedType is a single record left out of a batch
type SkippedType struct {
	Record string // qualified record name
	Reason string // short diagnostic
}

// SkippedTypesError collects the non-fatal per-type failures of a batch so
// they can be reported through a single message.
type SkippedTypesError struct {
	Types []SkippedType
}

// NewSkippedTypesError creates an error from per-record failures. Errors that
// are *Error values contribute their Detail as reason.
func NewSkippedTypesError(failures map[string]error, order []string) *SkippedTypesError {
	result := &SkippedTypesError{
		Types: make([]SkippedType, 0, len(order)),
	}
	for _, name := range order {
		err, ok := failures[name]
		if !ok {
			continue
		}
		result.Types = append(result.Types, SkippedType{Record: name, Reason: reasonOf(err)})
	}
	return result
}

func reasonOf(err error) string {
	if e, ok := err.(*Error); ok {
		reason := e.Detail
		if e.Type != "" {
			reason = e.Type + ": " + reason
		}
		if reason == "" {
			reason = string(e.Kind)
		}
		return reason
	}
	return err.Error()
}

func (e *SkippedTypesError) Error() string {
	if len(e.Types) == 0 {
		return "[analyze] unsupported_construct: no types skipped"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("skipped %d type(s):\n", len(e.Types)))

	// Group by reason for cleaner output
	byReason := make(map[string][]string)
	var reasonOrder []string
	for _, st := range e.Types {
		if _, exists := byReason[st.Reason]; !exists {
			reasonOrder = append(reasonOrder, st.Reason)
		}
		byReason[st.Reason] = append(byReason[st.Reason], st.Record)
	}

	for _, reason := range reasonOrder {
		b.WriteString("\n  ")
		b.WriteString(reason)
		b.WriteString(":\n")
		for _, rec := range byReason[reason] {
			b.WriteString("    - ")
			b.WriteString(rec)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *SkippedTypesError) Is(target error) bool {
	_, ok := target.(*SkippedTypesError)
	return ok
}
