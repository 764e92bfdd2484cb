package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kr/pretty"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	p := Default("demo")
	p.Sources = []string{"a.rat", "lib/b.rat"}
	p.EmitLLVM = true
	if err := p.Write(path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(p, got); len(diff) > 0 {
		t.Errorf("round trip mismatch: %v", diff)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `{"name": "x", "version": "1.0.0", "sources": ["main.rat"]}`)

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.OutputDir != "dist" || p.MaxSteps != DefaultMaxSteps {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestForFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.rat")
	writeFile(t, src, "")

	p, err := ForFile(src)
	if err != nil || p != nil {
		t.Fatalf("without manifest got %+v, %v", p, err)
	}

	writeFile(t, filepath.Join(dir, FileName), `{"name": "x", "version": "1.0.0", "sources": ["main.rat"], "max_steps": 7}`)
	p, err = ForFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.MaxSteps != 7 {
		t.Errorf("max_steps not loaded: %+v", p)
	}

	writeFile(t, filepath.Join(dir, FileName), `{"name": "x", "version": "1.0.0", "sources": ["main.rat"], "max_steps": -1}`)
	if _, err := ForFile(src); err == nil {
		t.Error("invalid manifest accepted")
	}
}

func TestLoadDirWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.rat"), "")
	writeFile(t, filepath.Join(dir, "sub", "a.rat"), "")
	writeFile(t, filepath.Join(dir, "dist", "old.rat"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")

	p, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b.rat", "sub/a.rat"}
	if diff := pretty.Diff(p.Sources, want); len(diff) > 0 {
		t.Errorf("sources: %v", diff)
	}
	if p.Name != filepath.Base(dir) {
		t.Errorf("name = %q", p.Name)
	}
}

func TestLoadDirErrors(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		if _, err := LoadDir(t.TempDir()); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("bad json", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, FileName), "{")
		if _, err := LoadDir(dir); err == nil {
			t.Error("expected error")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Project)
	}{
		{"no name", func(p *Project) { p.Name = " " }},
		{"no sources", func(p *Project) { p.Sources = nil }},
		{"empty source", func(p *Project) { p.Sources = []string{""} }},
		{"absolute source", func(p *Project) { p.Sources = []string{"/tmp/a.rat"} }},
		{"wrong extension", func(p *Project) { p.Sources = []string{"a.txt"} }},
		{"duplicate", func(p *Project) { p.Sources = []string{"a.rat", "a.rat"} }},
		{"no output dir", func(p *Project) { p.OutputDir = "" }},
		{"negative steps", func(p *Project) { p.MaxSteps = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default("demo")
			tt.mutate(p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Default("demo").Validate(); err != nil {
		t.Errorf("default manifest invalid: %v", err)
	}
}
