package lexer

import "fmt"

// Kind identifies the category of a lexed token.
type Kind int

const (
	EOF Kind = iota // end of input

	Identifier
	Integer
	Real
	Keyword
	Operator
	Separator
)

var kindNames = [...]string{
	EOF:        "EOF",
	Identifier: "IDENTIFIER",
	Integer:    "INTEGER",
	Real:       "REAL",
	Keyword:    "KEYWORD",
	Operator:   "OPERATOR",
	Separator:  "SEPARATOR",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a single lexical unit produced by the Scanner.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int // 1-based
	Column int // 1-based, first character of the lexeme
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "[EOF]"
	}
	return fmt.Sprintf("[%s] '%s'", t.Kind, t.Lexeme)
}

// Is reports whether the token has the given kind and lexeme.
func (t Token) Is(kind Kind, lexeme string) bool {
	return t.Kind == kind && t.Lexeme == lexeme
}

var keywords = map[string]bool{
	"while":    true,
	"if":       true,
	"else":     true,
	"endwhile": true,
	"endif":    true,
	"return":   true,
	"function": true,
	"integer":  true,
	"real":     true,
	"boolean":  true,
	"true":     true,
	"false":    true,
	"print":    true,
	"read":     true,
	"main":     true,
	"scan":     true,
}

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool {
	return keywords[word]
}
