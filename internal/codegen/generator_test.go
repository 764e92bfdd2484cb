package codegen

import (
	"strings"
	"testing"

	"github.com/kr/pretty"

	"rat25s/internal/errors"
)

func TestEmitAddressesAreContiguous(t *testing.T) {
	g := NewGenerator()
	if g.Next() != 1 {
		t.Fatalf("fresh generator should start at 1, got %d", g.Next())
	}

	addrs := []int{
		g.PushI(0),
		g.PopM(10000),
		g.PushM(10000),
		g.SOut(),
		g.SIn(),
		g.Label(),
	}
	for i, a := range addrs {
		if a != i+1 {
			t.Errorf("instruction %d got address %d", i, a)
		}
	}
	if g.Len() != 6 || g.Next() != 7 {
		t.Errorf("Len=%d Next=%d", g.Len(), g.Next())
	}
}

func TestOperatorEmission(t *testing.T) {
	tests := []struct {
		op   string
		want Opcode
		rel  bool
	}{
		{"+", OpAdd, false},
		{"-", OpSub, false},
		{"*", OpMul, false},
		{"/", OpDiv, false},
		{">", OpGrt, true},
		{"<", OpLes, true},
		{"==", OpEqu, true},
		{"!=", OpNeq, true},
		{">=", OpGeq, true},
		{"<=", OpLeq, true},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			g := NewGenerator()
			var err error
			if tt.rel {
				_, err = g.Relational(tt.op)
			} else {
				_, err = g.Arithmetic(tt.op)
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := g.Instructions()[0].Op; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	g := NewGenerator()
	if _, err := g.Arithmetic("=="); !errors.Is(err, errors.InternalError) {
		t.Errorf("expected error for relop passed as arithmetic, got %v", err)
	}
	if _, err := g.Relational("+"); !errors.Is(err, errors.InternalError) {
		t.Errorf("expected error for arithmetic passed as relop, got %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("failed emission must not append, got %d instructions", g.Len())
	}
}

func TestBackpatch(t *testing.T) {
	g := NewGenerator()
	g.PushM(10000)
	h := g.Jump0()
	g.PushI(1)

	if !g.Instructions()[h-1].Pending() {
		t.Fatal("fresh jump should be pending")
	}
	if err := g.Verify(); err == nil {
		t.Fatal("Verify should reject unresolved jumps")
	}
	if hs := g.Unresolved(); len(hs) != 1 || hs[0] != h {
		t.Fatalf("Unresolved = %v, want [%d]", hs, h)
	}

	if err := g.Backpatch(h, 3); err != nil {
		t.Fatalf("Backpatch failed: %v", err)
	}
	in := g.Instructions()[h-1]
	if in.Pending() || in.Operand != 3 {
		t.Errorf("expected resolved JMP0 3, got %s", in)
	}
	if err := g.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if !g.Targets(3) || g.Targets(1) {
		t.Error("Targets reported wrong addresses")
	}

	t.Run("SecondBackpatchRejected", func(t *testing.T) {
		err := g.Backpatch(h, 1)
		if !errors.Is(err, errors.InternalError) {
			t.Fatalf("expected InternalError, got %v", err)
		}
		if got := g.Instructions()[h-1].Operand; got != 3 {
			t.Errorf("operand changed to %d", got)
		}
	})

	t.Run("NonJumpRejected", func(t *testing.T) {
		if err := g.Backpatch(Handle(1), 2); err == nil {
			t.Error("backpatching PUSHM should fail")
		}
	})

	t.Run("UnknownHandleRejected", func(t *testing.T) {
		for _, h := range []Handle{0, -1, 99} {
			if err := g.Backpatch(h, 1); err == nil {
				t.Errorf("handle %d should be rejected", h)
			}
		}
	})
}

func TestVerifyRejectsOutOfRangeTargets(t *testing.T) {
	g := NewGenerator()
	h := g.Jump()
	if err := g.Backpatch(h, 2); err != nil {
		t.Fatal(err)
	}
	if err := g.Verify(); err == nil {
		t.Error("jump past the last instruction should fail Verify")
	}
	g.Label()
	if err := g.Verify(); err != nil {
		t.Errorf("landing label should satisfy Verify: %v", err)
	}
}

func TestListingRoundTrip(t *testing.T) {
	g := NewGenerator()
	g.PushM(10000)
	g.PushM(10001)
	g.Relational("<")
	h := g.Jump0()
	g.PushI(-1)
	g.SOut()
	g.JumpTo(1)
	g.Backpatch(h, g.Next())
	g.Label()

	want := strings.Join([]string{
		"1 PUSHM 10000",
		"2 PUSHM 10001",
		"3 LES",
		"4 JMP0 8",
		"5 PUSHI -1",
		"6 SOUT",
		"7 JMP 1",
		"8 LABEL",
		"",
	}, "\n")
	if got := g.String(); got != want {
		t.Fatalf("listing mismatch\n got:\n%s\nwant:\n%s", got, want)
	}

	parsed, err := ParseListing(strings.NewReader("Assembly Code Listing\n====\n" + want + "\nsum 10000 integer\n"))
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if diff := pretty.Diff(g.Instructions(), parsed); len(diff) > 0 {
		t.Errorf("round trip mismatch:\n%s", diff)
	}
}

func TestParseListingErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"gap in addresses", "1 SOUT\n3 SOUT\n", "line 2: expected address 2, got 3"},
		{"unknown opcode", "1 HALT\n", `line 1: unknown opcode "HALT"`},
		{"missing operand", "1 PUSHI\n", "line 1: PUSHI needs one operand"},
		{"extra operand", "1 SOUT 4\n", "line 1: SOUT takes no operand"},
		{"pending jump", "1 JMP ?\n", `line 1: bad operand "?"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseListing(strings.NewReader(tt.input))
			if err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			if err.Error() != tt.want {
				t.Errorf("error = %q, want %q", err, tt.want)
			}
		})
	}
}

func TestOpcodeNames(t *testing.T) {
	for op := OpPushI; op <= OpLabel; op++ {
		back, err := ParseOpcode(op.String())
		if err != nil || back != op {
			t.Errorf("%s did not round trip: %v %v", op, back, err)
		}
	}
	if !OpJmp0.IsJump() || !OpJmp.IsJump() || OpLabel.IsJump() {
		t.Error("IsJump wrong")
	}
	if OpSOut.HasOperand() || !OpPopM.HasOperand() {
		t.Error("HasOperand wrong")
	}
}
