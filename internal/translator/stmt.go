package translator

import (
	"rat25s/internal/codegen"
	"rat25s/internal/errors"
	"rat25s/internal/lexer"
	"rat25s/internal/symtab"
)

// program recognizes
//
//	Program := '$$' '$$' [DeclList] '$$' StmtList '$$'
//
// and requires end of input after the final marker.
func (t *Translator) program() error {
	t.production("<Rat25S> -> $$ $$ <Opt Declaration List> $$ <Statement List> $$")

	if _, err := t.match(lexer.Separator, "$$"); err != nil {
		return err
	}
	if t.check(lexer.Keyword, "function") {
		return t.syntaxError("function definitions are not supported")
	}
	if _, err := t.match(lexer.Separator, "$$"); err != nil {
		return err
	}
	if t.atQualifier() {
		if err := t.declarationList(); err != nil {
			return err
		}
	}
	if _, err := t.match(lexer.Separator, "$$"); err != nil {
		return err
	}
	if t.atStatementListEnd() {
		if t.cur.Kind == lexer.EOF {
			return t.syntaxError("unexpected end of input")
		}
		return t.syntaxError("expected at least one statement")
	}
	if err := t.statementList(); err != nil {
		return err
	}
	if _, err := t.match(lexer.Separator, "$$"); err != nil {
		return err
	}
	if t.cur.Kind != lexer.EOF {
		return t.syntaxError("expected end of input after the closing '$$'")
	}

	// A jump to the address after the last instruction needs something to
	// land on.
	if t.gen.Targets(t.gen.Next()) {
		t.gen.Label()
	}
	if err := t.gen.Verify(); err != nil {
		return err
	}
	return nil
}

func (t *Translator) atQualifier() bool {
	return t.check(lexer.Keyword, "integer") ||
		t.check(lexer.Keyword, "boolean") ||
		t.check(lexer.Keyword, "real")
}

// DeclList := Decl ';' [DeclList]
func (t *Translator) declarationList() error {
	t.production("<Declaration List> -> <Declaration> ; | <Declaration> ; <Declaration List>")
	for {
		if err := t.declaration(); err != nil {
			return err
		}
		if _, err := t.match(lexer.Separator, ";"); err != nil {
			return err
		}
		if !t.atQualifier() {
			return nil
		}
	}
}

// Decl := ('integer'|'boolean') IDs
func (t *Translator) declaration() error {
	t.production("<Declaration> -> <Qualifier> <IDs>")

	qual := t.cur
	if !t.atQualifier() {
		return t.syntaxError("expected type qualifier (integer or boolean)")
	}
	typ, err := symtab.ParseType(qual.Lexeme)
	if err != nil {
		return semanticError(err, qual)
	}
	if _, err := t.match(lexer.Keyword, ""); err != nil {
		return err
	}

	return t.ids(func(id lexer.Token) error {
		if _, err := t.symbols.Insert(id.Lexeme, typ); err != nil {
			return semanticError(err, id)
		}
		return nil
	})
}

// ids recognizes IDs := Identifier [',' IDs] and runs action on each
// identifier right after it is matched.
func (t *Translator) ids(action func(lexer.Token) error) error {
	t.production("<IDs> -> <Identifier> | <Identifier> , <IDs>")
	for {
		id, err := t.match(lexer.Identifier, "")
		if err != nil {
			return err
		}
		if err := action(id); err != nil {
			return err
		}
		if !t.check(lexer.Separator, ",") {
			return nil
		}
		if _, err := t.match(lexer.Separator, ","); err != nil {
			return err
		}
	}
}

func (t *Translator) atStatementListEnd() bool {
	return t.cur.Kind == lexer.EOF || t.check(lexer.Separator, "$$") || t.check(lexer.Separator, "}")
}

// StmtList := Stmt [StmtList], stopping at '$$' or '}'.
func (t *Translator) statementList() error {
	t.production("<Statement List> -> <Statement> | <Statement> <Statement List>")
	for !t.atStatementListEnd() {
		if err := t.statement(); err != nil {
			return err
		}
	}
	return nil
}

// Stmt := Compound | Assign | If | Print | Scan | While
func (t *Translator) statement() error {
	t.production("<Statement> -> <Compound> | <Assign> | <If> | <Print> | <Scan> | <While>")

	switch {
	case t.check(lexer.Separator, "{"):
		return t.compound()
	case t.cur.Kind == lexer.Identifier:
		return t.assign()
	case t.check(lexer.Keyword, "if"):
		return t.ifStatement()
	case t.check(lexer.Keyword, "print"):
		return t.printStatement()
	case t.check(lexer.Keyword, "scan"):
		return t.scanStatement()
	case t.check(lexer.Keyword, "while"):
		return t.whileStatement()
	case t.cur.Kind == lexer.EOF:
		return t.syntaxError("unexpected end of input")
	}
	return t.syntaxError("invalid statement")
}

// Compound := '{' [StmtList] '}'
func (t *Translator) compound() error {
	t.production("<Compound> -> { <Statement List> }")
	if _, err := t.match(lexer.Separator, "{"); err != nil {
		return err
	}
	if err := t.statementList(); err != nil {
		return err
	}
	_, err := t.match(lexer.Separator, "}")
	return err
}

// Assign := Identifier '=' Expr ';'
func (t *Translator) assign() error {
	t.production("<Assign> -> <Identifier> = <Expression> ;")

	id := t.cur
	target, err := t.symbols.Lookup(id.Lexeme)
	if err != nil {
		return semanticError(err, id)
	}
	if _, err := t.match(lexer.Identifier, ""); err != nil {
		return err
	}
	eq, err := t.match(lexer.Operator, "=")
	if err != nil {
		return err
	}

	typ, err := t.expression()
	if err != nil {
		return err
	}
	if !t.symbols.CheckCompatibility(target.Type, typ, "") {
		return t.semanticf(errors.TypeMismatch, eq,
			"cannot assign %s value to %s variable '%s'", typ, target.Type, target.Name)
	}
	t.gen.PopM(target.Address)

	_, err = t.match(lexer.Separator, ";")
	return err
}

// If := 'if' '(' Condition ')' Stmt ['else' Stmt] 'endif'
func (t *Translator) ifStatement() error {
	t.production("<If> -> if ( <Condition> ) <Statement> endif | if ( <Condition> ) <Statement> else <Statement> endif")

	if _, err := t.match(lexer.Keyword, "if"); err != nil {
		return err
	}
	if _, err := t.match(lexer.Separator, "("); err != nil {
		return err
	}
	if err := t.condition(); err != nil {
		return err
	}
	if _, err := t.match(lexer.Separator, ")"); err != nil {
		return err
	}

	skipThen := t.gen.Jump0()
	if err := t.statement(); err != nil {
		return err
	}

	if t.check(lexer.Keyword, "else") {
		if _, err := t.match(lexer.Keyword, "else"); err != nil {
			return err
		}
		skipElse := t.gen.Jump()
		if err := t.patch(skipThen); err != nil {
			return err
		}
		if err := t.statement(); err != nil {
			return err
		}
		if err := t.patch(skipElse); err != nil {
			return err
		}
	} else if err := t.patch(skipThen); err != nil {
		return err
	}

	_, err := t.match(lexer.Keyword, "endif")
	return err
}

// While := 'while' '(' Condition ')' Stmt 'endwhile'
func (t *Translator) whileStatement() error {
	t.production("<While> -> while ( <Condition> ) <Statement> endwhile")

	if _, err := t.match(lexer.Keyword, "while"); err != nil {
		return err
	}
	loopStart := t.gen.Next()
	if _, err := t.match(lexer.Separator, "("); err != nil {
		return err
	}
	if err := t.condition(); err != nil {
		return err
	}
	if _, err := t.match(lexer.Separator, ")"); err != nil {
		return err
	}

	exit := t.gen.Jump0()
	if err := t.statement(); err != nil {
		return err
	}
	t.gen.JumpTo(loopStart)
	if err := t.patch(exit); err != nil {
		return err
	}

	_, err := t.match(lexer.Keyword, "endwhile")
	return err
}

// Print := 'print' '(' Expr ')' ';'
func (t *Translator) printStatement() error {
	t.production("<Print> -> print ( <Expression> ) ;")

	if _, err := t.match(lexer.Keyword, "print"); err != nil {
		return err
	}
	if _, err := t.match(lexer.Separator, "("); err != nil {
		return err
	}
	if _, err := t.expression(); err != nil {
		return err
	}
	if _, err := t.match(lexer.Separator, ")"); err != nil {
		return err
	}
	t.gen.SOut()

	_, err := t.match(lexer.Separator, ";")
	return err
}

// Scan := 'scan' '(' IDs ')' ';'
func (t *Translator) scanStatement() error {
	t.production("<Scan> -> scan ( <IDs> ) ;")

	if _, err := t.match(lexer.Keyword, "scan"); err != nil {
		return err
	}
	if _, err := t.match(lexer.Separator, "("); err != nil {
		return err
	}
	if t.cur.Kind != lexer.Identifier {
		return t.syntaxError("expected identifier in scan")
	}
	err := t.ids(func(id lexer.Token) error {
		addr, err := t.symbols.Address(id.Lexeme)
		if err != nil {
			return semanticError(err, id)
		}
		t.gen.SIn()
		t.gen.PopM(addr)
		return nil
	})
	if err != nil {
		return err
	}
	if _, err := t.match(lexer.Separator, ")"); err != nil {
		return err
	}

	_, err = t.match(lexer.Separator, ";")
	return err
}

// patch resolves h to the next instruction address.
func (t *Translator) patch(h codegen.Handle) error {
	return t.gen.Backpatch(h, t.gen.Next())
}
