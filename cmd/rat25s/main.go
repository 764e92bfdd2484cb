// cmd/rat25s/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"rat25s/cmd/rat25s/commands"
	rerrors "rat25s/internal/errors"
)

const VERSION = "1.0.0"

// Build variables - can be set during build with ldflags
var (
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], commands.DefaultEnv()))
}

// run dispatches one command line and returns the process exit code.
func run(args []string, env *commands.Env) int {
	if len(args) == 0 {
		showUsage(env.Stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch args[0] {
	case "help", "-h", "--help":
		showUsage(env.Stdout)
		return 0
	case "version", "-v", "--version":
		fmt.Fprintf(env.Stdout, "rat25s %s (commit %s, built %s)\n", VERSION, GitCommit, BuildDate)
		return 0
	case "compile":
		err = commands.CompileCommand(args[1:], env)
	case "tokens":
		err = commands.TokensCommand(args[1:], env)
	case "run":
		err = commands.RunCommand(ctx, args[1:], env)
	case "llvm":
		err = commands.LLVMCommand(args[1:], env)
	case "build":
		err = commands.BuildCommand(ctx, args[1:], env)
	case "clean":
		err = commands.CleanCommand(args[1:], env)
	case "init":
		err = commands.InitCommand(args[1:], env)
	default:
		fmt.Fprintf(env.Stderr, "unknown command %q\n\n", args[0])
		showUsage(env.Stderr)
		return 2
	}

	if err == nil {
		return 0
	}
	reportError(env.Stderr, err)
	if errors.Is(err, commands.ErrUsage) {
		return 2
	}
	return 1
}

// reportError prints err, with the caret snippet for compile errors. The
// prefix is coloured when w is a terminal.
func reportError(w io.Writer, err error) {
	prefix := "Error: "
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		prefix = "\033[1;31mError:\033[0m "
	}

	if ce, ok := rerrors.As(err); ok {
		fmt.Fprint(w, prefix+ce.Detail())
		return
	}
	fmt.Fprintln(w, prefix+err.Error())
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, "rat25s - Rat25S compiler")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rat25s compile <file.rat> [-o out] [-trace]   Translate to an instruction listing")
	fmt.Fprintln(w, "  rat25s tokens <file.rat>                       Print the token stream")
	fmt.Fprintln(w, "  rat25s run <file> [-max-steps n]               Execute a source file or listing")
	fmt.Fprintln(w, "  rat25s llvm <file> [-o out]                    Emit LLVM IR")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Project Management:")
	fmt.Fprintln(w, "  rat25s init <name>                             Initialize a new project")
	fmt.Fprintln(w, "  rat25s build [dir]                             Build every source of the project")
	fmt.Fprintln(w, "  rat25s clean [dir]                             Remove build outputs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Set RAT25S_LOG=debug for verbose logging.")
}
