// cmd/rat25s/commands/project.go
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"rat25s/internal/build"
	"rat25s/internal/config"
)

const sampleProgram = `[* sum the integers below max *]
$$
$$
integer i, max, sum;
$$
sum = 0;
i = 1;
scan(max);
while (i < max) {
    sum = sum + i;
    i = i + 1;
} endwhile
print(sum);
$$
`

func projectRoot(args []string) (string, error) {
	switch len(args) {
	case 0:
		return ".", nil
	case 1:
		return args[0], nil
	}
	return "", usagef("expected at most one project directory, got %d", len(args))
}

// BuildCommand handles the build command
func BuildCommand(ctx context.Context, args []string, env *Env) error {
	fs := env.flags("build")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	root, err := projectRoot(positional)
	if err != nil {
		return err
	}

	builder, err := build.NewBuilder(root, build.WithLogger(env.Log))
	if err != nil {
		return errors.Wrap(err, "failed to initialize builder")
	}

	summary, err := builder.Build(ctx)
	if summary == nil {
		return err
	}
	for _, u := range summary.Failed() {
		fmt.Fprintf(env.Stderr, "%s: %s\n", u.Source, u.Error)
	}

	p := builder.Project()
	fmt.Fprintf(env.Stdout, "Built %s v%s: %s unit(s), %s instructions, %s written to %s\n",
		p.Name, p.Version,
		humanize.Comma(int64(len(summary.Units))),
		humanize.Comma(int64(summary.Instructions())),
		humanize.Bytes(dirSize(builder.OutputDir())),
		builder.OutputDir())
	return err
}

func dirSize(dir string) uint64 {
	var total uint64
	filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

// CleanCommand handles the clean command
func CleanCommand(args []string, env *Env) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	builder, err := build.NewBuilder(root, build.WithLogger(env.Log))
	if err != nil {
		return errors.Wrap(err, "failed to initialize builder")
	}
	if err := builder.Clean(); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Removed %s\n", builder.OutputDir())
	return nil
}

// InitCommand initializes a new Rat25S project
func InitCommand(args []string, env *Env) error {
	if len(args) != 1 {
		return usagef("init expects a project name")
	}
	name := args[0]

	manifest := filepath.Join(name, config.FileName)
	if _, err := os.Stat(manifest); err == nil {
		return errors.Errorf("%s already exists", manifest)
	}
	if err := os.MkdirAll(name, 0755); err != nil {
		return errors.WithStack(err)
	}

	p := config.Default(filepath.Base(name))
	if err := p.Write(manifest); err != nil {
		return err
	}
	src := filepath.Join(name, p.Sources[0])
	if err := os.WriteFile(src, []byte(sampleProgram), 0644); err != nil {
		return errors.WithStack(err)
	}

	fmt.Fprintf(env.Stdout, "Initialized project %s\n", name)
	fmt.Fprintf(env.Stdout, "  %s\n  %s\n", manifest, src)
	return nil
}
