package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"rat25s/internal/errors"
)

// Scanner turns Rat25S source text into tokens, one per call to Next.
type Scanner struct {
	source string
	pos    int
	line   int
	column int
}

func NewScanner(source string) *Scanner {
	return &Scanner{
		source: source,
		line:   1,
		column: 1,
	}
}

// Next returns the next token. At end of input it returns a token of
// kind EOF; every later call returns EOF again.
func (s *Scanner) Next() (Token, error) {
	if err := s.skipTrivia(); err != nil {
		return Token{}, err
	}
	if s.isAtEnd() {
		return Token{Kind: EOF, Line: s.line, Column: s.column}, nil
	}

	line, col := s.line, s.column
	c := s.peek()

	switch {
	case c == '$':
		if s.peekNext() == '$' {
			s.advance()
			s.advance()
			return s.token(Separator, "$$", line, col), nil
		}
		return Token{}, s.errorf(line, col, "$", "invalid character '$' (did you mean '$$'?)")
	case isDigit(c):
		return s.number(line, col)
	case isAlpha(c):
		return s.identifier(line, col), nil
	}

	s.advance()
	switch c {
	case '+', '-', '*', '/':
		return s.token(Operator, string(c), line, col), nil
	case '=', '<', '>':
		if s.match('=') {
			return s.token(Operator, string(c)+"=", line, col), nil
		}
		return s.token(Operator, string(c), line, col), nil
	case '!':
		if s.match('=') {
			return s.token(Operator, "!=", line, col), nil
		}
		return Token{}, s.errorf(line, col, "!", "invalid character '!' (did you mean '!='?)")
	case '(', ')', '{', '}', '[', ']', ',', ';', ':', '.':
		return s.token(Separator, string(c), line, col), nil
	}

	// Step back so multi-byte characters are reported whole.
	s.pos--
	r, _ := utf8.DecodeRuneInString(s.source[s.pos:])
	return Token{}, s.errorf(line, col, string(r), "invalid character %q", r)
}

// Tokenize drains the scanner. The trailing EOF token is included.
func (s *Scanner) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := s.Next()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

func (s *Scanner) number(line, col int) (Token, error) {
	start := s.pos
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() != '.' {
		return s.token(Integer, s.source[start:s.pos], line, col), nil
	}

	s.advance()
	if !isDigit(s.peek()) {
		text := s.source[start:s.pos]
		return Token{}, s.errorf(line, col, text, "invalid real number format %q", text)
	}
	for isDigit(s.peek()) {
		s.advance()
	}
	return s.token(Real, s.source[start:s.pos], line, col), nil
}

func (s *Scanner) identifier(line, col int) Token {
	start := s.pos
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	text := s.source[start:s.pos]
	if IsKeyword(text) {
		return s.token(Keyword, text, line, col)
	}
	return s.token(Identifier, text, line, col)
}

// skipTrivia skips whitespace and [* ... *] comments.
func (s *Scanner) skipTrivia() error {
	for !s.isAtEnd() {
		c := s.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == '\v':
			s.advance()
		case c == '[' && s.peekNext() == '*':
			line, col := s.line, s.column
			end := strings.Index(s.source[s.pos+2:], "*]")
			if end < 0 {
				return s.errorf(line, col, "[*", "unterminated comment")
			}
			for n := end + 4; n > 0; n-- {
				s.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (s *Scanner) token(kind Kind, lexeme string, line, col int) Token {
	return Token{Kind: kind, Lexeme: lexeme, Line: line, Column: col}
}

func (s *Scanner) errorf(line, col int, text string, format string, args ...any) error {
	return errors.NewAt(errors.LexicalError, line, col, rawText(text), format, args...)
}

func (s *Scanner) advance() byte {
	c := s.source[s.pos]
	s.pos++
	if c == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}
	return c
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.pos] != expected {
		return false
	}
	s.advance()
	return true
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.source[s.pos]
}

func (s *Scanner) peekNext() byte {
	if s.pos+1 >= len(s.source) {
		return 0
	}
	return s.source[s.pos+1]
}

func (s *Scanner) isAtEnd() bool {
	return s.pos >= len(s.source)
}

// rawText renders source text that never became a token.
type rawText string

func (r rawText) String() string {
	return fmt.Sprintf("'%s'", string(r))
}

func isAlpha(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c) || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
