// cmd/rat25s/commands/run.go
package commands

import (
	"context"
	"flag"

	"rat25s/internal/config"
	"rat25s/internal/vm"
)

// RunCommand executes a source file or a saved listing, reading SIN input
// from stdin. Without -max-steps the limit is the max_steps of a manifest
// next to the file, if there is one.
func RunCommand(ctx context.Context, args []string, env *Env) error {
	fs := env.flags("run")
	maxSteps := fs.Int("max-steps", config.DefaultMaxSteps, "stop after `n` instructions (0 for no limit)")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	path, err := oneFile("run", positional)
	if err != nil {
		return err
	}

	limit := *maxSteps
	if !isSet(fs, "max-steps") {
		p, err := config.ForFile(path)
		if err != nil {
			return err
		}
		if p != nil {
			limit = p.MaxSteps
			env.Log.Debug("step limit from manifest", "project", p.Name, "max_steps", limit)
		}
	}

	res, err := env.load(path)
	if err != nil {
		return err
	}
	m := vm.New(res.Code,
		vm.WithInput(env.Stdin),
		vm.WithOutput(env.Stdout),
		vm.WithMaxSteps(limit))
	if err := m.Run(ctx); err != nil {
		return err
	}
	env.Log.Debug("program finished", "file", path, "steps", m.Steps())
	return nil
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
