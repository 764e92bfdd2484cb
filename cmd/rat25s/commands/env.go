// cmd/rat25s/commands/env.go
package commands

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"rat25s/internal/translator"
)

// Env carries the streams and logger a command runs with.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Log    *slog.Logger
}

// DefaultEnv wires the process streams. RAT25S_LOG selects the log level
// (debug, info, warn, error); the default is warn.
func DefaultEnv() *Env {
	return &Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Log:    newLogger(os.Stderr, os.Getenv("RAT25S_LOG")),
	}
}

// newLogger logs to w at the named level. An unrecognised name keeps the
// warn level and is reported.
func newLogger(w io.Writer, name string) *slog.Logger {
	level := slog.LevelWarn
	var bad error
	if name != "" {
		if err := level.UnmarshalText([]byte(name)); err != nil {
			level, bad = slog.LevelWarn, err
		}
	}
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	if bad != nil {
		log.Warn("ignoring RAT25S_LOG", "value", name, "error", bad)
	}
	return log
}

// ErrUsage marks errors caused by bad command lines.
var ErrUsage = errors.New("usage error")

func usagef(format string, args ...any) error {
	return errors.Wrapf(ErrUsage, format, args...)
}

func (e *Env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.Stderr)
	return fs
}

// parse lets flags appear before and after positional arguments.
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, errors.Wrap(ErrUsage, err.Error())
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func oneFile(name string, positional []string) (string, error) {
	if len(positional) != 1 {
		return "", usagef("%s expects exactly one file, got %d", name, len(positional))
	}
	return positional[0], nil
}

// translateFile reads and translates path. The returned error of a failed
// translation is the *errors.CompileError itself.
func (e *Env) translateFile(path string, opts ...translator.Option) (*translator.Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	opts = append([]translator.Option{translator.WithFile(filepath.Base(path)), translator.WithLogger(e.Log)}, opts...)
	return translator.TranslateString(string(src), opts...)
}

func isSource(path string) bool {
	return strings.HasSuffix(path, ".rat")
}
