package vm_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rat25s/internal/codegen"
	"rat25s/internal/translator"
	"rat25s/internal/vm"
)

func compile(t *testing.T, src string) []codegen.Instruction {
	t.Helper()
	res, err := translator.TranslateString(src)
	if err != nil {
		t.Fatalf("translation failed: %v", err)
	}
	return res.Code
}

func run(t *testing.T, code []codegen.Instruction, input string) (string, error) {
	t.Helper()
	var out strings.Builder
	m := vm.New(code, vm.WithInput(strings.NewReader(input)), vm.WithOutput(&out))
	err := m.Run(context.Background())
	return out.String(), err
}

func TestSamplePrograms(t *testing.T) {
	tests := []struct {
		file  string
		input string
		want  string
	}{
		{"loop_sum.rat", "5", "15\n"},
		{"loop_sum.rat", "1", "1\n"},
		{"branches.rat", "", "5\n0\n"},
		{"control.rat", "4", "8\n1\n2\n3\n4\n1\n"},
		{"control.rat", "0", "0\n0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file+"/"+tt.input, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("..", "translator", "testdata", tt.file))
			if err != nil {
				t.Fatal(err)
			}
			got, err := run(t, compile(t, string(src)), tt.input)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("output %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"7 - 2 - 1", "6\n"}, // right recursive: 7 - (2 - 1)
		{"2 + 3 * 4", "14\n"},
		{"(2 + 3) * 4", "20\n"},
		{"-7 / 2", "-3\n"},
		{"-(3)", "-3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := run(t, compile(t, "$$ $$ $$ print("+tt.expr+"); $$"), "")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMemory(t *testing.T) {
	code := compile(t, "$$ $$ integer a, b; $$ a = 3; b = a * a; $$")

	m := vm.New(code)
	if err := m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Memory(10000) != 3 || m.Memory(10001) != 9 {
		t.Errorf("memory = %d, %d", m.Memory(10000), m.Memory(10001))
	}
	if m.Memory(12345) != 0 {
		t.Error("unwritten memory should read 0")
	}
	if len(m.Stack()) != 0 {
		t.Errorf("stack not empty: %v", m.Stack())
	}
	if m.Steps() != 6 {
		t.Errorf("steps = %d, want 6", m.Steps())
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(g *codegen.Generator)
		input string
		want  error
	}{
		{"underflow", func(g *codegen.Generator) { g.SOut() }, "", vm.ErrStackUnderflow},
		{"division by zero", func(g *codegen.Generator) {
			g.PushI(1)
			g.PushI(0)
			g.Emit(codegen.OpDiv)
		}, "", vm.ErrDivisionByZero},
		{"unresolved jump", func(g *codegen.Generator) { g.Jump() }, "", vm.ErrUnresolvedJump},
		{"jump out of range", func(g *codegen.Generator) { g.JumpTo(5) }, "", vm.ErrJumpOutOfRange},
		{"end of input", func(g *codegen.Generator) { g.SIn() }, "", vm.ErrBadInput},
		{"not an integer", func(g *codegen.Generator) { g.SIn() }, "abc", vm.ErrBadInput},
		{"infinite loop", func(g *codegen.Generator) { g.JumpTo(1) }, "", vm.ErrStepLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := codegen.NewGenerator()
			tt.build(g)
			m := vm.New(g.Instructions(), vm.WithInput(strings.NewReader(tt.input)), vm.WithMaxSteps(100))
			err := m.Run(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBooleanInput(t *testing.T) {
	out, err := run(t, compile(t, "$$ $$ boolean f; $$ scan(f); print(f); $$"), "true")
	if err != nil {
		t.Fatal(err)
	}
	if out != "1\n" {
		t.Errorf("got %q", out)
	}

	code := compile(t, "$$ $$ boolean f; $$ scan(f); if (f == true) print(1); else print(0); endif $$")
	for input, want := range map[string]string{"true": "1\n", "false": "0\n", "1": "1\n", "0": "0\n"} {
		got, err := run(t, code, input)
		if err != nil {
			t.Fatalf("input %q: %v", input, err)
		}
		if got != want {
			t.Errorf("input %q: got %q, want %q", input, got, want)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	_, err := run(t, compile(t, "$$ $$ integer x; $$ x = 0; print(5 / x); $$"), "")
	if err == nil || err.Error() != "vm: division by zero at 5 D" {
		t.Errorf("got %v", err)
	}

	_, err = run(t, compile(t, "$$ $$ integer x; $$ scan(x); $$"), "")
	if err == nil || err.Error() != "vm: bad input: unexpected end of input at 1 SIN" {
		t.Errorf("got %v", err)
	}
}

func TestDivisionOverflowWraps(t *testing.T) {
	g := codegen.NewGenerator()
	g.PushI(math.MinInt64)
	g.PushI(-1)
	g.Emit(codegen.OpDiv)
	g.SOut()

	got, err := run(t, g.Instructions(), "")
	if err != nil {
		t.Fatal(err)
	}
	if want := "-9223372036854775808\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestContextCancel(t *testing.T) {
	g := codegen.NewGenerator()
	g.JumpTo(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := vm.New(g.Instructions(), vm.WithMaxSteps(0)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
