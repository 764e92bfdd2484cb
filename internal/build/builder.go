// internal/build/builder.go
package build

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"rat25s/internal/config"
	"rat25s/internal/llvm"
	"rat25s/internal/translator"
)

// SummaryFile is written to the output directory after every build.
const SummaryFile = "build.json"

// Builder handles the build process for Rat25S projects
type Builder struct {
	projectRoot string
	project     *config.Project
	log         *slog.Logger
}

type Option func(*Builder)

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// NewBuilder creates a new builder instance
func NewBuilder(projectRoot string, opts ...Option) (*Builder, error) {
	project, err := config.LoadDir(projectRoot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load manifest")
	}

	b := &Builder{
		projectRoot: projectRoot,
		project:     project,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Builder) Project() *config.Project {
	return b.project
}

// OutputDir is the absolute or root-relative directory outputs go to.
func (b *Builder) OutputDir() string {
	if filepath.IsAbs(b.project.OutputDir) {
		return b.project.OutputDir
	}
	return filepath.Join(b.projectRoot, b.project.OutputDir)
}

// Unit describes the outputs of one translated source file.
type Unit struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Listing      string `json:"listing"`
	LLVM         string `json:"llvm,omitempty"`
	Trace        string `json:"trace,omitempty"`
	Instructions int    `json:"instructions"`
	Symbols      int    `json:"symbols"`
	Checksum     string `json:"checksum,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Summary is the content of build.json.
type Summary struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Units     []Unit    `json:"units"`
}

// Failed returns the units that did not translate.
func (s *Summary) Failed() []Unit {
	var out []Unit
	for _, u := range s.Units {
		if u.Error != "" {
			out = append(out, u)
		}
	}
	return out
}

// Instructions totals the instruction count over all units.
func (s *Summary) Instructions() int {
	n := 0
	for _, u := range s.Units {
		n += u.Instructions
	}
	return n
}

// Build translates every source of the project. Sources are independent
// compilation units and are translated concurrently. A compile error in
// one unit is recorded in its Unit and does not stop the others; the
// returned error then reports how many units failed. I/O failures abort
// the build.
func (b *Builder) Build(ctx context.Context) (*Summary, error) {
	b.log.Info("building", "project", b.project.Name, "version", b.project.Version,
		"sources", len(b.project.Sources))

	outDir := b.OutputDir()
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	summary := &Summary{
		Name:      b.project.Name,
		Version:   b.project.Version,
		Timestamp: time.Now().UTC(),
		Units:     make([]Unit, len(b.project.Sources)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range b.project.Sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			u, err := b.buildUnit(src, outDir)
			if err != nil {
				return errors.Wrapf(err, "build %s", src)
			}
			summary.Units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := writeSummary(summary, filepath.Join(outDir, SummaryFile)); err != nil {
		return nil, err
	}

	if failed := summary.Failed(); len(failed) > 0 {
		return summary, errors.Errorf("%d of %d source(s) failed to translate", len(failed), len(summary.Units))
	}
	b.log.Info("build complete", "output", outDir, "instructions", summary.Instructions())
	return summary, nil
}

// buildUnit translates one source. Only I/O problems are returned as errors.
func (b *Builder) buildUnit(src, outDir string) (Unit, error) {
	u := Unit{ID: uuid.NewString(), Source: src}

	text, err := os.ReadFile(filepath.Join(b.projectRoot, filepath.FromSlash(src)))
	if err != nil {
		return u, errors.WithStack(err)
	}

	stem := strings.TrimSuffix(filepath.FromSlash(src), config.SourceExt)
	base := filepath.Join(outDir, stem)
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return u, errors.WithStack(err)
	}
	u.Listing = outputName(outDir, base+"_code_generator.txt")

	opts := []translator.Option{translator.WithFile(src), translator.WithLogger(b.log)}
	var trace bytes.Buffer
	if b.project.Trace {
		opts = append(opts, translator.WithTrace(&trace))
	}

	res, terr := translator.TranslateString(string(text), opts...)

	if b.project.Trace {
		u.Trace = outputName(outDir, base+"_trace.txt")
		if err := os.WriteFile(base+"_trace.txt", trace.Bytes(), 0644); err != nil {
			return u, errors.WithStack(err)
		}
	}

	var report bytes.Buffer
	if terr != nil {
		u.Error = terr.Error()
		report.WriteString(terr.Error())
		report.WriteByte('\n')
		b.log.Warn("translation failed", "source", src, "error", terr)
		return u, errors.WithStack(os.WriteFile(base+"_code_generator.txt", report.Bytes(), 0644))
	}

	if err := res.WriteReport(&report); err != nil {
		return u, errors.WithStack(err)
	}
	if err := os.WriteFile(base+"_code_generator.txt", report.Bytes(), 0644); err != nil {
		return u, errors.WithStack(err)
	}
	u.Instructions = len(res.Code)
	u.Symbols = res.Symbols.Len()
	sum := sha256.Sum256([]byte(res.Listing()))
	u.Checksum = hex.EncodeToString(sum[:])

	if b.project.EmitLLVM {
		mod, err := llvm.Lower(res.Code, res.Symbols)
		if err != nil {
			return u, errors.Wrap(err, "lower to LLVM IR")
		}
		u.LLVM = outputName(outDir, base+".ll")
		if err := os.WriteFile(base+".ll", []byte(mod.String()), 0644); err != nil {
			return u, errors.WithStack(err)
		}
	}

	b.log.Debug("unit built", "source", src, "id", u.ID, "instructions", u.Instructions)
	return u, nil
}

// outputName reports path relative to the output directory.
func outputName(outDir, path string) string {
	rel, err := filepath.Rel(outDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func writeSummary(s *Summary, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0644), "write build summary")
}

// LoadSummary reads a build.json written by Build.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &s, nil
}

// Clean removes build artifacts
func (b *Builder) Clean() error {
	return errors.Wrap(os.RemoveAll(b.OutputDir()), "clean")
}
