package codegen

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"rat25s/internal/errors"
)

// Instruction is one entry of the instruction store. Address is 1-based
// and never changes; Operand of a jump is rewritten once by Backpatch.
type Instruction struct {
	Address int
	Op      Opcode
	Operand int
	pending bool
}

// Pending reports whether the instruction is a jump whose target has not
// been backpatched yet.
func (in Instruction) Pending() bool {
	return in.pending
}

// String renders "<address> <opcode> [<operand>]".
func (in Instruction) String() string {
	switch {
	case in.pending:
		return fmt.Sprintf("%d %s ?", in.Address, in.Op)
	case in.Op.HasOperand():
		return fmt.Sprintf("%d %s %d", in.Address, in.Op, in.Operand)
	default:
		return fmt.Sprintf("%d %s", in.Address, in.Op)
	}
}

// Handle identifies an emitted jump awaiting its target. It is the
// jump's instruction address.
type Handle int

// Generator owns the instruction sequence of one compilation unit.
type Generator struct {
	code []Instruction
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns the address the next emitted instruction will get.
func (g *Generator) Next() int {
	return len(g.code) + 1
}

func (g *Generator) Len() int {
	return len(g.code)
}

// Emit appends an instruction without operand and returns its address.
func (g *Generator) Emit(op Opcode) int {
	return g.append(Instruction{Op: op})
}

// EmitOperand appends an instruction carrying operand v.
func (g *Generator) EmitOperand(op Opcode, v int) int {
	return g.append(Instruction{Op: op, Operand: v})
}

func (g *Generator) append(in Instruction) int {
	in.Address = g.Next()
	g.code = append(g.code, in)
	return in.Address
}

func (g *Generator) PushI(v int) int    { return g.EmitOperand(OpPushI, v) }
func (g *Generator) PushM(addr int) int { return g.EmitOperand(OpPushM, addr) }
func (g *Generator) PopM(addr int) int  { return g.EmitOperand(OpPopM, addr) }
func (g *Generator) SOut() int          { return g.Emit(OpSOut) }
func (g *Generator) SIn() int           { return g.Emit(OpSIn) }
func (g *Generator) Label() int         { return g.Emit(OpLabel) }

// Arithmetic emits the opcode for + - * /.
func (g *Generator) Arithmetic(op string) (int, error) {
	code, ok := ArithmeticOpcode(op)
	if !ok {
		return 0, errors.New(errors.InternalError, "no arithmetic opcode for %q", op)
	}
	return g.Emit(code), nil
}

// Relational emits the comparison opcode for a relop.
func (g *Generator) Relational(op string) (int, error) {
	code, ok := RelationalOpcode(op)
	if !ok {
		return 0, errors.New(errors.InternalError, "no relational opcode for %q", op)
	}
	return g.Emit(code), nil
}

// Jump0 emits a conditional jump with an unresolved target.
func (g *Generator) Jump0() Handle {
	return Handle(g.append(Instruction{Op: OpJmp0, pending: true}))
}

// Jump emits an unconditional jump with an unresolved target.
func (g *Generator) Jump() Handle {
	return Handle(g.append(Instruction{Op: OpJmp, pending: true}))
}

// JumpTo emits an unconditional jump to an already known address.
func (g *Generator) JumpTo(target int) int {
	return g.EmitOperand(OpJmp, target)
}

// Backpatch sets the target of the jump identified by h. A handle can be
// resolved only once.
func (g *Generator) Backpatch(h Handle, target int) error {
	i := int(h) - 1
	if i < 0 || i >= len(g.code) {
		return errors.New(errors.InternalError, "backpatch of unknown instruction %d", h)
	}
	in := &g.code[i]
	if !in.Op.IsJump() {
		return errors.New(errors.InternalError, "backpatch of non-jump instruction %s", in)
	}
	if !in.pending {
		return errors.New(errors.InternalError, "jump at %d already backpatched to %d", h, in.Operand)
	}
	in.Operand = target
	in.pending = false
	return nil
}

// Unresolved returns the handles of jumps still waiting for a target.
func (g *Generator) Unresolved() []Handle {
	var hs []Handle
	for _, in := range g.code {
		if in.pending {
			hs = append(hs, Handle(in.Address))
		}
	}
	return hs
}

// Targets reports whether any resolved jump lands on addr.
func (g *Generator) Targets(addr int) bool {
	for _, in := range g.code {
		if in.Op.IsJump() && !in.pending && in.Operand == addr {
			return true
		}
	}
	return false
}

// Verify checks that every jump is resolved and lands inside the listing.
func (g *Generator) Verify() error {
	if hs := g.Unresolved(); len(hs) > 0 {
		return errors.New(errors.InternalError, "%d jump(s) never backpatched, first at %d", len(hs), hs[0])
	}
	for _, in := range g.code {
		if in.Op.IsJump() && (in.Operand < 1 || in.Operand > len(g.code)) {
			return errors.New(errors.InternalError, "jump %s targets address outside 1..%d", in, len(g.code))
		}
	}
	return nil
}

// Instructions returns a copy of the instruction store.
func (g *Generator) Instructions() []Instruction {
	out := make([]Instruction, len(g.code))
	copy(out, g.code)
	return out
}

// String renders the instruction listing, one instruction per line.
func (g *Generator) String() string {
	return Listing(g.code)
}

// Listing renders instructions one per line.
func Listing(code []Instruction) string {
	var sb strings.Builder
	for _, in := range code {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseListing reads a rendered listing back into instructions. Blank
// lines are skipped, as is anything that does not start with a digit
// (headers written by the build output).
func ParseListing(r io.Reader) ([]Instruction, error) {
	var code []Instruction
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0][0] < '0' || fields[0][0] > '9' {
			continue
		}

		addr, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, pkgerrors.Errorf("line %d: bad address %q", lineNo, fields[0])
		}
		if addr != len(code)+1 {
			return nil, pkgerrors.Errorf("line %d: expected address %d, got %d", lineNo, len(code)+1, addr)
		}
		if len(fields) < 2 {
			return nil, pkgerrors.Errorf("line %d: missing opcode", lineNo)
		}
		op, err := ParseOpcode(fields[1])
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d", lineNo)
		}

		in := Instruction{Address: addr, Op: op}
		switch {
		case op.HasOperand() && len(fields) != 3:
			return nil, pkgerrors.Errorf("line %d: %s needs one operand", lineNo, op)
		case !op.HasOperand() && len(fields) != 2:
			return nil, pkgerrors.Errorf("line %d: %s takes no operand", lineNo, op)
		case op.HasOperand():
			if in.Operand, err = strconv.Atoi(fields[2]); err != nil {
				return nil, pkgerrors.Errorf("line %d: bad operand %q", lineNo, fields[2])
			}
		}
		code = append(code, in)
	}
	if err := sc.Err(); err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	return code, nil
}
