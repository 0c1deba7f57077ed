package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode     Phase = "decode"     // module binary to IR
	PhaseMetadata   Phase = "metadata"   // custom section codec
	PhaseScaffold   Phase = "scaffold"   // slot table installation
	PhaseRewrite    Phase = "rewrite"    // host import catalogue
	PhaseSubstitute Phase = "substitute" // declared export/import wrappers
	PhaseLink       Phase = "link"       // relink and sweep
	PhaseEncode     Phase = "encode"     // IR to module binary
	PhaseVerify     Phase = "verify"     // compile check of the output
	PhaseLoad       Phase = "load"       // file input/output
	PhaseConfig     Phase = "config"     // options and config files
)

// Kind categorizes the error
type Kind string

const (
	KindOverflow           Kind = "overflow"
	KindUnexpectedEOF      Kind = "unexpected_eof"
	KindTrailingData       Kind = "trailing_data"
	KindInvalidTag         Kind = "invalid_tag"
	KindUnrecognizedSymbol Kind = "unrecognized_symbol"
	KindInvalidArgType     Kind = "invalid_arg_type"
	KindUnknownFeatureFlag Kind = "unknown_feature_flag"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindInvalidUTF8        Kind = "invalid_utf8"
	KindTypeMismatch       Kind = "type_mismatch"
	KindLengthMismatch     Kind = "length_mismatch"
	KindMissingMemory      Kind = "missing_memory"
	KindNotFound           Kind = "not_found"
	KindInvalidData        Kind = "invalid_data"
	KindUnsupported        Kind = "unsupported"
	KindInvalidInput       Kind = "invalid_input"
	KindIO                 Kind = "io"
)

// Error is the structured error type used throughout the toolchain
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Symbol string // function or section the error is about
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

	if e.Symbol != "" {
		b.WriteString(" in ")
		b.WriteString(e.Symbol)
	}

	if e.Detail != "" {
		b.WriteString(": ")
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

// Is reports whether target matches this error.
// Two structured errors match when phase and kind agree; an empty phase on
// the target matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
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

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Symbol sets the function or section name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
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

// Overflow creates a varint overflow error
func Overflow(phase Phase, path []string, bits int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value exceeds %d bits", bits),
		Value:  bits,
	}
}

// UnexpectedEOF creates a truncated input error
func UnexpectedEOF(phase Phase, path []string, need, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedEOF,
		Path:   path,
		Detail: fmt.Sprintf("need %d bytes, %d remaining", need, have),
	}
}

// TrailingData creates an error for unconsumed input
func TrailingData(phase Phase, path []string, remaining int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrailingData,
		Path:   path,
		Detail: fmt.Sprintf("%d unconsumed bytes", remaining),
		Value:  remaining,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// TypeMismatch creates a type mismatch error for a function signature slot
func TypeMismatch(phase Phase, symbol, what string, pos int, declared, actual string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Symbol: symbol,
		Detail: fmt.Sprintf("%s type mismatch at %d (%s != %s)", what, pos, declared, actual),
		Value:  pos,
	}
}

// LengthMismatch creates an arity mismatch error
func LengthMismatch(phase Phase, symbol string, declared, actual int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLengthMismatch,
		Symbol: symbol,
		Detail: fmt.Sprintf("Parameter length mismatch! (%d != %d)", declared, actual),
		Value:  declared,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
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

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
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

// Load creates a file loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a module decoding error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
