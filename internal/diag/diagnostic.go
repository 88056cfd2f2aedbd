// Package diag carries the codegen core's diagnostic taxonomy: the
// Diagnostic/Severity shape the teacher compiler uses for user-facing
// output, and the CodegenError kinds spec §7 defines for the codegen
// core specifically.
package diag

import "fmt"

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Span represents a location in source code. The zero value is invalid.
type Span struct {
	Filename string
	Line     int
	Column   int
	Start    int
	End      int
}

// IsValid reports whether the span names a real location.
func (s Span) IsValid() bool {
	return s.Filename != "" || s.Line != 0
}

func (s Span) String() string {
	if s.Filename == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.Filename, s.Line, s.Column)
}

// Kind is the spec §7 error taxonomy for the codegen core.
type Kind string

const (
	UnknownSymbol        Kind = "UnknownSymbol"
	UnresolvedGeneric    Kind = "UnresolvedGeneric"
	DuplicateDefinition  Kind = "DuplicateDefinition"
	LayoutOverflow       Kind = "LayoutOverflow"
	MalformedMangledName Kind = "MalformedMangledName"
	ExternalABIMismatch  Kind = "ExternalABIMismatch"
	InternalInvariant    Kind = "InternalInvariant"
)

// CodegenError is one collected codegen failure. It implements `error` so
// it composes with go.uber.org/multierr, but emission never stops at the
// first one: callers append to an ErrorList and keep going (spec §7).
type CodegenError struct {
	Kind    Kind
	Message string
	Span    Span
}

func (e *CodegenError) Error() string {
	if e.Span.IsValid() {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Span)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds a CodegenError with no span.
func New(kind Kind, format string, args ...any) *CodegenError {
	return &CodegenError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewAt builds a CodegenError anchored to a source span.
func NewAt(kind Kind, span Span, format string, args ...any) *CodegenError {
	return &CodegenError{Kind: kind, Message: fmt.Sprintf(format, args...), Span: span}
}

// Diagnostic is a compiler diagnostic surfaced to end users, independent
// of whether it originated as a CodegenError.
type Diagnostic struct {
	Severity Severity
	Code     Kind
	Message  string
	Span     Span
}

// FromCodegenError renders a CodegenError as a user-facing Diagnostic.
func FromCodegenError(e *CodegenError) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Code:     e.Kind,
		Message:  e.Message,
		Span:     e.Span,
	}
}
