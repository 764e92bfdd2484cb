// cmd/rat25s/commands/compile.go
package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"rat25s/internal/codegen"
	"rat25s/internal/lexer"
	"rat25s/internal/llvm"
	"rat25s/internal/translator"
)

// CompileCommand translates one source file and writes the listing and
// symbol table to stdout or to -o. With -o a compile error is appended
// to the output file as well as returned.
func CompileCommand(args []string, env *Env) error {
	fs := env.flags("compile")
	out := fs.String("o", "", "write the listing to `file`")
	trace := fs.Bool("trace", false, "include matched tokens and productions")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	path, err := oneFile("compile", positional)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	var opts []translator.Option
	if *trace {
		opts = append(opts, translator.WithTrace(&buf))
	}
	res, terr := env.translateFile(path, opts...)
	if res == nil {
		return terr
	}
	if terr == nil {
		if *trace {
			buf.WriteByte('\n')
		}
		if err := res.WriteReport(&buf); err != nil {
			return errors.WithStack(err)
		}
	} else if *out != "" {
		fmt.Fprintln(&buf, terr.Error())
	}

	if *out == "" {
		if _, err := env.Stdout.Write(buf.Bytes()); err != nil {
			return errors.WithStack(err)
		}
		return terr
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "write output")
	}
	if terr == nil {
		fmt.Fprintf(env.Stdout, "%s: %d instructions, %d symbols -> %s\n",
			path, len(res.Code), res.Symbols.Len(), *out)
	}
	return terr
}

// TokensCommand prints the token stream of a source file.
func TokensCommand(args []string, env *Env) error {
	fs := env.flags("tokens")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	path, err := oneFile("tokens", positional)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return errors.WithStack(err)
	}
	toks, err := lexer.NewScanner(string(src)).Tokenize()
	for _, tok := range toks {
		if tok.Kind == lexer.EOF {
			break
		}
		fmt.Fprintf(env.Stdout, "%-12s %s\n", tok.Kind, tok.Lexeme)
	}
	return err
}

// LLVMCommand lowers a source file or a saved listing to LLVM IR.
func LLVMCommand(args []string, env *Env) error {
	fs := env.flags("llvm")
	out := fs.String("o", "", "write the IR to `file`")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	path, err := oneFile("llvm", positional)
	if err != nil {
		return err
	}

	res, err := env.load(path)
	if err != nil {
		return err
	}
	mod, err := llvm.Lower(res.Code, res.Symbols)
	if err != nil {
		return err
	}

	var w io.Writer = env.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return errors.WithStack(err)
		}
		defer f.Close()
		w = f
	}
	_, err = io.WriteString(w, mod.String())
	return errors.WithStack(err)
}

// load translates a .rat file or parses any other file as a listing.
func (e *Env) load(path string) (*translator.Result, error) {
	if isSource(path) {
		return e.translateFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	code, err := codegen.ParseListing(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse listing %s", path)
	}
	return &translator.Result{File: path, Code: code}, nil
}
