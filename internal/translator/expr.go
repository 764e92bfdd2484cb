package translator

import (
	"strconv"

	"rat25s/internal/codegen"
	"rat25s/internal/errors"
	"rat25s/internal/lexer"
	"rat25s/internal/symtab"
)

// Condition := Expr Relop Expr
func (t *Translator) condition() error {
	t.production("<Condition> -> <Expression> <Relop> <Expression>")

	lt, err := t.expression()
	if err != nil {
		return err
	}

	relop := t.cur
	if relop.Kind != lexer.Operator {
		return t.syntaxError("expected relational operator")
	}
	if _, ok := codegen.RelationalOpcode(relop.Lexeme); !ok {
		return t.syntaxError("expected relational operator")
	}
	t.production("<Relop> -> == | != | > | < | <= | >=")
	if _, err := t.match(lexer.Operator, relop.Lexeme); err != nil {
		return err
	}

	rt, err := t.expression()
	if err != nil {
		return err
	}
	if !t.symbols.CheckCompatibility(lt, rt, relop.Lexeme) {
		return t.semanticf(errors.TypeMismatch, relop,
			"cannot compare %s with %s using '%s'", lt, rt, relop.Lexeme)
	}
	if _, err := t.gen.Relational(relop.Lexeme); err != nil {
		return semanticError(err, relop)
	}
	return nil
}

// Expr := Term [('+'|'-') Expr]
//
// The type of an expression is the type of its leftmost operand.
func (t *Translator) expression() (symtab.Type, error) {
	t.production("<Expression> -> <Term> | <Term> + <Expression> | <Term> - <Expression>")

	lt, err := t.term()
	if err != nil {
		return 0, err
	}
	if !t.check(lexer.Operator, "+") && !t.check(lexer.Operator, "-") {
		return lt, nil
	}
	return lt, t.binary(lt, t.expression)
}

// Term := Factor [('*'|'/') Term]
func (t *Translator) term() (symtab.Type, error) {
	t.production("<Term> -> <Factor> | <Factor> * <Term> | <Factor> / <Term>")

	lt, err := t.factor()
	if err != nil {
		return 0, err
	}
	if !t.check(lexer.Operator, "*") && !t.check(lexer.Operator, "/") {
		return lt, nil
	}
	return lt, t.binary(lt, t.term)
}

// binary consumes the operator at the current token, translates the right
// operand with rhs and emits the arithmetic instruction once both sides
// type-check.
func (t *Translator) binary(lt symtab.Type, rhs func() (symtab.Type, error)) error {
	op, err := t.match(lexer.Operator, "")
	if err != nil {
		return err
	}
	rt, err := rhs()
	if err != nil {
		return err
	}
	if !t.symbols.CheckCompatibility(lt, rt, op.Lexeme) {
		return t.semanticf(errors.TypeMismatch, op,
			"operator '%s' cannot combine %s with %s", op.Lexeme, lt, rt)
	}
	if _, err := t.gen.Arithmetic(op.Lexeme); err != nil {
		return semanticError(err, op)
	}
	return nil
}

// Factor := '-' Primary | Primary
func (t *Translator) factor() (symtab.Type, error) {
	t.production("<Factor> -> - <Primary> | <Primary>")

	if !t.check(lexer.Operator, "-") {
		return t.primary()
	}
	minus, err := t.match(lexer.Operator, "-")
	if err != nil {
		return 0, err
	}
	typ, err := t.primary()
	if err != nil {
		return 0, err
	}
	if typ == symtab.Boolean {
		return 0, t.semanticf(errors.InvalidOperandType, minus, "unary '-' applied to boolean operand")
	}
	t.gen.PushI(-1)
	t.gen.Emit(codegen.OpMul)
	return typ, nil
}

// Primary := Identifier | Integer | '(' Expr ')' | 'true' | 'false'
func (t *Translator) primary() (symtab.Type, error) {
	t.production("<Primary> -> <Identifier> | <Integer> | ( <Expression> ) | true | false")

	tok := t.cur
	switch {
	case tok.Kind == lexer.Identifier:
		entry, err := t.symbols.Lookup(tok.Lexeme)
		if err != nil {
			return 0, semanticError(err, tok)
		}
		if _, err := t.match(lexer.Identifier, ""); err != nil {
			return 0, err
		}
		t.gen.PushM(entry.Address)
		return entry.Type, nil

	case tok.Kind == lexer.Integer:
		v, err := strconv.Atoi(tok.Lexeme)
		if err != nil {
			return 0, t.semanticf(errors.LexicalError, tok, "integer literal %s out of range", tok.Lexeme)
		}
		if _, err := t.match(lexer.Integer, ""); err != nil {
			return 0, err
		}
		t.gen.PushI(v)
		return symtab.Integer, nil

	case tok.Kind == lexer.Real:
		return 0, t.semanticf(errors.UnsupportedType, tok, "real literals are not supported")

	case tok.Is(lexer.Separator, "("):
		if _, err := t.match(lexer.Separator, "("); err != nil {
			return 0, err
		}
		typ, err := t.expression()
		if err != nil {
			return 0, err
		}
		if _, err := t.match(lexer.Separator, ")"); err != nil {
			return 0, err
		}
		return typ, nil

	case tok.Is(lexer.Keyword, "true"), tok.Is(lexer.Keyword, "false"):
		if _, err := t.match(lexer.Keyword, tok.Lexeme); err != nil {
			return 0, err
		}
		if tok.Lexeme == "true" {
			t.gen.PushI(1)
		} else {
			t.gen.PushI(0)
		}
		return symtab.Boolean, nil

	case tok.Kind == lexer.EOF:
		return 0, t.syntaxError("unexpected end of input in expression")
	}
	return 0, t.syntaxError("invalid primary expression")
}
