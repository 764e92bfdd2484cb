// internal/config/config.go
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FileName is the project manifest looked up by LoadDir.
const FileName = "rat25s.json"

// SourceExt is the extension of Rat25S source files.
const SourceExt = ".rat"

// DefaultMaxSteps bounds program execution when the manifest does not.
const DefaultMaxSteps = 1_000_000

// Project represents a Rat25S project manifest (rat25s.json)
type Project struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Sources     []string `json:"sources"`
	OutputDir   string   `json:"output_dir"`
	Trace       bool     `json:"trace"`
	EmitLLVM    bool     `json:"emit_llvm"`
	MaxSteps    int      `json:"max_steps"`
}

// Default returns the manifest written by "rat25s init".
func Default(name string) *Project {
	return &Project{
		Name:      name,
		Version:   "0.1.0",
		Sources:   []string{"main" + SourceExt},
		OutputDir: "dist",
		MaxSteps:  DefaultMaxSteps,
	}
}

// Load reads and validates the manifest at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}

	p := &Project{OutputDir: "dist", MaxSteps: DefaultMaxSteps}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid %s", path)
	}
	return p, nil
}

// LoadDir loads root/rat25s.json. Without a manifest the project is named
// after the directory and every .rat file under root is a source.
func LoadDir(root string) (*Project, error) {
	p, err := Load(filepath.Join(root, FileName))
	if err == nil {
		return p, nil
	}
	if !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	p = Default(filepath.Base(abs))
	if p.Sources, err = collectSources(root, p.OutputDir); err != nil {
		return nil, err
	}
	if len(p.Sources) == 0 {
		return nil, errors.Errorf("no %s files in %s and no %s", SourceExt, root, FileName)
	}
	return p, nil
}

// ForFile loads the manifest of the project directory holding path. It
// returns nil without error when that directory has no manifest.
func ForFile(path string) (*Project, error) {
	p, err := Load(filepath.Join(filepath.Dir(path), FileName))
	if os.IsNotExist(errors.Cause(err)) {
		return nil, nil
	}
	return p, err
}

// collectSources lists .rat files under root relative to it, skipping the
// output directory.
func collectSources(root, outputDir string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != root && (info.Name() == outputDir || strings.HasPrefix(info.Name(), ".")) {
			return filepath.SkipDir
		}
		if !info.IsDir() && strings.HasSuffix(path, SourceExt) {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "collect sources")
	}
	sort.Strings(files)
	return files, nil
}

// Validate checks the manifest for values the builder cannot use.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if len(p.Sources) == 0 {
		return errors.New("at least one source is required")
	}
	seen := make(map[string]bool)
	for _, src := range p.Sources {
		switch {
		case src == "":
			return errors.New("empty source path")
		case filepath.IsAbs(src):
			return errors.Errorf("source %s must be relative to the project root", src)
		case filepath.Ext(src) != SourceExt:
			return errors.Errorf("source %s does not have the %s extension", src, SourceExt)
		case seen[src]:
			return errors.Errorf("source %s listed twice", src)
		}
		seen[src] = true
	}
	if p.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if p.MaxSteps < 0 {
		return errors.Errorf("max_steps must not be negative, got %d", p.MaxSteps)
	}
	return nil
}

// Write stores the manifest as indented JSON.
func (p *Project) Write(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0644), "write manifest")
}
