// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind represents the type of error
type Kind string

const (
	LexicalError         Kind = "LexicalError"
	SyntaxError          Kind = "SyntaxError"
	DuplicateDeclaration Kind = "DuplicateDeclaration"
	UndeclaredIdentifier Kind = "UndeclaredIdentifier"
	TypeMismatch         Kind = "TypeMismatch"
	InvalidOperandType   Kind = "InvalidOperandType"
	UnsupportedType      Kind = "UnsupportedType"
	InternalError        Kind = "InternalError"
)

// Category groups kinds the way the translator reports them.
type Category string

const (
	Lexical  Category = "lexical"
	Syntax   Category = "syntax"
	Semantic Category = "semantic"
	Internal Category = "internal"
)

// Category returns the taxonomy bucket of k.
func (k Kind) Category() Category {
	switch k {
	case LexicalError:
		return Lexical
	case SyntaxError:
		return Syntax
	case DuplicateDeclaration, UndeclaredIdentifier, TypeMismatch, InvalidOperandType, UnsupportedType:
		return Semantic
	default:
		return Internal
	}
}

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// IsZero reports whether no position has been recorded.
func (l SourceLocation) IsZero() bool {
	return l.Line == 0 && l.Column == 0
}

// CompileError is the single error type produced by the lexer, the
// symbol table and the translator.
type CompileError struct {
	Kind     Kind
	Message  string
	Location SourceLocation
	Token    string // rendered offending token
	Source   string // the source line where the error occurred
}

// Error renders "<description> at line <L>, column <C>; unexpected token: <token>".
func (e *CompileError) Error() string {
	desc := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Location.IsZero() {
		return desc
	}
	tok := e.Token
	if tok == "" {
		tok = "[EOF]"
	}
	return fmt.Sprintf("%s at line %d, column %d; unexpected token: %s",
		desc, e.Location.Line, e.Location.Column, tok)
}

// Detail renders the error with the file name and a caret under the
// offending column when the source line is known.
func (e *CompileError) Detail() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteString("\n")

	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", e.Location.File, e.Location.Line, e.Location.Column))
	}
	if e.Source != "" {
		gutter := fmt.Sprintf("  %d | ", e.Location.Line)
		sb.WriteString(fmt.Sprintf("\n%s%s\n", gutter, e.Source))
		sb.WriteString(strings.Repeat(" ", len(gutter)))
		if e.Location.Column > 0 {
			sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
		}
		sb.WriteString("^\n")
	}
	return sb.String()
}

// New creates an error with no position attached yet.
func New(kind Kind, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewAt creates an error positioned at line/column with the offending token.
func NewAt(kind Kind, line, column int, token fmt.Stringer, format string, args ...any) *CompileError {
	return New(kind, format, args...).At(line, column, token)
}

// At attaches a position and offending token unless one is already set.
func (e *CompileError) At(line, column int, token fmt.Stringer) *CompileError {
	if !e.Location.IsZero() {
		return e
	}
	e.Location.Line = line
	e.Location.Column = column
	if token != nil {
		e.Token = token.String()
	}
	return e
}

// InFile records the compilation unit name.
func (e *CompileError) InFile(file string) *CompileError {
	if e.Location.File == "" {
		e.Location.File = file
	}
	return e
}

// WithSource adds source code context to the error
func (e *CompileError) WithSource(source string) *CompileError {
	e.Source = source
	return e
}

// As extracts a *CompileError from err's chain.
func As(err error) (*CompileError, bool) {
	var ce *CompileError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Is reports whether err carries a CompileError of the given kind.
func Is(err error, kind Kind) bool {
	ce, ok := As(err)
	return ok && ce.Kind == kind
}
