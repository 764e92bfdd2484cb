// internal/translator/translator.go
package translator

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"rat25s/internal/codegen"
	"rat25s/internal/errors"
	"rat25s/internal/lexer"
	"rat25s/internal/symtab"
)

// TokenSource delivers tokens on demand. At end of input it returns a
// token of kind lexer.EOF.
type TokenSource interface {
	Next() (lexer.Token, error)
}

// Translator is a recursive-descent parser that checks declarations and
// types against a symbol table and emits stack-machine code while it
// recognizes each production. No syntax tree is built.
type Translator struct {
	src     TokenSource
	cur     lexer.Token
	symbols *symtab.Table
	gen     *codegen.Generator

	file  string
	lines []string
	trace io.Writer
	log   *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithTrace writes every matched token and every production entered to w.
func WithTrace(w io.Writer) Option {
	return func(t *Translator) { t.trace = w }
}

// WithFile names the compilation unit in error locations.
func WithFile(name string) Option {
	return func(t *Translator) { t.file = name }
}

// WithSource gives the translator the raw text so errors can quote the
// offending line.
func WithSource(text string) Option {
	return func(t *Translator) { t.lines = strings.Split(text, "\n") }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.log = l }
}

func New(src TokenSource, opts ...Option) *Translator {
	t := &Translator{
		src:     src,
		symbols: symtab.NewTable(),
		gen:     codegen.NewGenerator(),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result is the output of one translation.
type Result struct {
	File    string
	Symbols *symtab.Table
	Code    []codegen.Instruction
}

// Listing renders the instruction listing.
func (r *Result) Listing() string {
	return codegen.Listing(r.Code)
}

// WriteReport writes the instruction listing followed by the symbol table.
func (r *Result) WriteReport(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("Assembly Code Listing\n")
	sb.WriteString(strings.Repeat("=", 36) + "\n")
	sb.WriteString(r.Listing())
	sb.WriteString("\nSymbol Table\n")
	sb.WriteString("Identifier MemoryLocation Type\n")
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	sb.WriteString(r.Symbols.String())
	_, err := io.WriteString(w, sb.String())
	return err
}

// Translate runs the single pass. On failure the returned Result holds
// whatever was emitted before the error and the error is a
// *errors.CompileError.
func (t *Translator) Translate() (*Result, error) {
	t.log.Debug("translation started", "file", t.file)

	err := t.advance()
	if err == nil {
		err = t.program()
	}
	res := &Result{File: t.file, Symbols: t.symbols, Code: t.gen.Instructions()}
	if err != nil {
		err = t.decorate(err)
		t.log.Debug("translation failed", "file", t.file, "error", err)
		return res, err
	}

	t.log.Debug("translation finished", "file", t.file,
		"instructions", len(res.Code), "symbols", t.symbols.Len())
	return res, nil
}

// TranslateString lexes and translates src in one call.
func TranslateString(src string, opts ...Option) (*Result, error) {
	opts = append([]Option{WithSource(src)}, opts...)
	return New(lexer.NewScanner(src), opts...).Translate()
}

// anyKind lets match accept a token of any kind.
const anyKind lexer.Kind = -1

// advance pulls the next token from the source.
func (t *Translator) advance() error {
	tok, err := t.src.Next()
	if err != nil {
		return err
	}
	t.cur = tok
	return nil
}

// match checks the current token against kind and lexeme (either may be
// left unconstrained with anyKind / ""), returns it and advances.
func (t *Translator) match(kind lexer.Kind, lexeme string) (lexer.Token, error) {
	tok := t.cur
	if tok.Kind == lexer.EOF {
		return tok, t.syntaxError("unexpected end of input")
	}
	if kind != anyKind && tok.Kind != kind {
		if lexeme != "" {
			return tok, t.syntaxError("expected '%s', but got %s", lexeme, tok.Kind)
		}
		return tok, t.syntaxError("expected token type %s, but got %s", kind, tok.Kind)
	}
	if lexeme != "" && tok.Lexeme != lexeme {
		return tok, t.syntaxError("expected '%s', but got '%s'", lexeme, tok.Lexeme)
	}

	if t.trace != nil {
		fmt.Fprintf(t.trace, "Token: %-12s Lexeme: %s\n", tok.Kind, tok.Lexeme)
	}
	return tok, t.advance()
}

// check reports whether the current token is kind/lexeme without consuming it.
func (t *Translator) check(kind lexer.Kind, lexeme string) bool {
	return t.cur.Is(kind, lexeme)
}

func (t *Translator) production(rule string) {
	if t.trace != nil {
		fmt.Fprintf(t.trace, "\t%s\n", rule)
	}
}

func (t *Translator) syntaxError(format string, args ...any) error {
	return errors.NewAt(errors.SyntaxError, t.cur.Line, t.cur.Column, t.cur, format, args...)
}

// semanticError positions a symbol-table or type error at tok.
func semanticError(err error, tok lexer.Token) error {
	if ce, ok := errors.As(err); ok {
		return ce.At(tok.Line, tok.Column, tok)
	}
	return err
}

func (t *Translator) semanticf(kind errors.Kind, tok lexer.Token, format string, args ...any) error {
	return errors.NewAt(kind, tok.Line, tok.Column, tok, format, args...)
}

func (t *Translator) decorate(err error) error {
	ce, ok := errors.As(err)
	if !ok {
		return err
	}
	ce.InFile(t.file)
	if ce.Source == "" && ce.Location.Line > 0 && ce.Location.Line <= len(t.lines) {
		ce.WithSource(strings.TrimRight(t.lines[ce.Location.Line-1], "\r"))
	}
	return ce
}
