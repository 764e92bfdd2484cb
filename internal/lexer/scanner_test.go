package lexer

import (
	"testing"

	"rat25s/internal/errors"
)

func TestScannerTokens(t *testing.T) {
	src := "$$ integer i, max;\nwhile (i <= max) i = i + 1.5; endwhile $$"
	tokens, err := NewScanner(src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	expected := []struct {
		kind   Kind
		lexeme string
	}{
		{Separator, "$$"},
		{Keyword, "integer"},
		{Identifier, "i"},
		{Separator, ","},
		{Identifier, "max"},
		{Separator, ";"},
		{Keyword, "while"},
		{Separator, "("},
		{Identifier, "i"},
		{Operator, "<="},
		{Identifier, "max"},
		{Separator, ")"},
		{Identifier, "i"},
		{Operator, "="},
		{Identifier, "i"},
		{Operator, "+"},
		{Real, "1.5"},
		{Separator, ";"},
		{Keyword, "endwhile"},
		{Separator, "$$"},
		{EOF, ""},
	}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}
	for i, exp := range expected {
		if tokens[i].Kind != exp.kind || tokens[i].Lexeme != exp.lexeme {
			t.Errorf("token %d: expected %s %q, got %s", i, exp.kind, exp.lexeme, tokens[i])
		}
	}
}

func TestScannerPositions(t *testing.T) {
	src := "$$\n  sum = 10;"
	tokens, err := NewScanner(src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	tests := []struct {
		index  int
		line   int
		column int
	}{
		{0, 1, 1},  // $$
		{1, 2, 3},  // sum
		{2, 2, 7},  // =
		{3, 2, 9},  // 10
		{4, 2, 11}, // ;
	}
	for _, tt := range tests {
		tok := tokens[tt.index]
		if tok.Line != tt.line || tok.Column != tt.column {
			t.Errorf("%s: expected %d:%d, got %d:%d", tok, tt.line, tt.column, tok.Line, tok.Column)
		}
	}
}

func TestScannerComments(t *testing.T) {
	src := "[* header\n comment *] $$ [* inline *] x"
	tokens, err := NewScanner(src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %v", tokens)
	}
	if tokens[0].Lexeme != "$$" || tokens[0].Line != 2 {
		t.Errorf("expected $$ on line 2, got %s at line %d", tokens[0], tokens[0].Line)
	}
	if tokens[1].Lexeme != "x" {
		t.Errorf("expected identifier x, got %s", tokens[1])
	}
}

func TestScannerOperators(t *testing.T) {
	tokens, err := NewScanner("== != < <= > >= = + - * /").Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	want := []string{"==", "!=", "<", "<=", ">", ">=", "=", "+", "-", "*", "/"}
	for i, w := range want {
		if tokens[i].Kind != Operator || tokens[i].Lexeme != w {
			t.Errorf("token %d: expected operator %q, got %s", i, w, tokens[i])
		}
	}
}

func TestScannerEOFIsSticky(t *testing.T) {
	s := NewScanner("x")
	if tok, _ := s.Next(); tok.Kind != Identifier {
		t.Fatalf("expected identifier, got %s", tok)
	}
	for i := 0; i < 3; i++ {
		tok, err := s.Next()
		if err != nil || tok.Kind != EOF {
			t.Fatalf("call %d: expected EOF, got %s (%v)", i, tok, err)
		}
	}
}

func TestScannerLexicalErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		col   int
	}{
		{"invalid character", "x = 3 # 4", 1, 7},
		{"lone dollar", "$ x", 1, 1},
		{"lone bang", "a ! b", 1, 3},
		{"malformed real", "\n  12.x", 2, 3},
		{"unterminated comment", "x [* never closed", 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScanner(tt.input).Tokenize()
			if err == nil {
				t.Fatalf("expected lexical error for %q", tt.input)
			}
			ce, ok := errors.As(err)
			if !ok {
				t.Fatalf("expected *CompileError, got %T", err)
			}
			if ce.Kind != errors.LexicalError {
				t.Errorf("expected LexicalError, got %s", ce.Kind)
			}
			if ce.Location.Line != tt.line || ce.Location.Column != tt.col {
				t.Errorf("expected position %d:%d, got %d:%d", tt.line, tt.col, ce.Location.Line, ce.Location.Column)
			}
		})
	}
}

func TestTokenString(t *testing.T) {
	tok := Token{Kind: Keyword, Lexeme: "while"}
	if got := tok.String(); got != "[KEYWORD] 'while'" {
		t.Errorf("unexpected rendering %q", got)
	}
	if got := (Token{Kind: EOF}).String(); got != "[EOF]" {
		t.Errorf("unexpected EOF rendering %q", got)
	}
}
