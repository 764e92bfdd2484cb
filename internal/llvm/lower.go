// Package llvm lowers stack-machine listings to LLVM IR.
//
// Every memory address becomes an i64 stack slot in @main. The operand
// stack is simulated at compile time inside each basic block, so it must
// be empty whenever control crosses a block boundary. Translator output
// always satisfies this.
//
// The lowered program fails the way the vm package does: SIN accepts
// integers and true/false, and bad input or a zero divisor prints the
// machine's error message to stderr and exits with status 1.
package llvm

import (
	"fmt"
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"rat25s/internal/codegen"
	"rat25s/internal/symtab"
	"rat25s/internal/vm"
)

// wordSize bounds the input words SIN reads, terminator included.
const wordSize = 32

type lowerer struct {
	code  []codegen.Instruction
	mod   *ir.Module
	main  *ir.Func
	entry *ir.Block
	exit  *ir.Block

	printf, read, fail *ir.Func
	outFmt             constant.Constant
	slots              map[int]value.Value
	blocks             map[int]*ir.Block
	leaders            []int
}

// Lower builds a module with a single main function equivalent to code.
// symbols may be nil; named slots are used for the addresses it lists.
func Lower(code []codegen.Instruction, symbols *symtab.Table) (*ir.Module, error) {
	l := &lowerer{
		code:   code,
		mod:    ir.NewModule(),
		slots:  make(map[int]value.Value),
		blocks: make(map[int]*ir.Block),
	}
	if err := l.checkJumps(); err != nil {
		return nil, err
	}

	l.declareRuntime()
	l.main = l.mod.NewFunc("main", types.I32)
	l.entry = l.main.NewBlock("entry")
	l.allocate(symbols)

	l.findLeaders()
	for _, addr := range l.leaders {
		l.blocks[addr] = l.main.NewBlock(fmt.Sprintf("L%d", addr))
	}
	l.exit = l.main.NewBlock("exit")
	l.exit.NewRet(constant.NewInt(types.I32, 0))

	if len(l.leaders) == 0 {
		l.entry.NewBr(l.exit)
		return l.mod, nil
	}
	l.entry.NewBr(l.blocks[l.leaders[0]])

	for i, start := range l.leaders {
		end := len(code) + 1
		if i+1 < len(l.leaders) {
			end = l.leaders[i+1]
		}
		if err := l.lowerBlock(start, end); err != nil {
			return nil, err
		}
	}
	return l.mod, nil
}

func (l *lowerer) checkJumps() error {
	for _, in := range l.code {
		if !in.Op.IsJump() {
			continue
		}
		if in.Pending() {
			return fmt.Errorf("llvm: unresolved jump at %d", in.Address)
		}
		if in.Operand < 1 || in.Operand > len(l.code) {
			return fmt.Errorf("llvm: jump %s targets address outside 1..%d", in, len(l.code))
		}
	}
	return nil
}

func (l *lowerer) declareRuntime() {
	l.printf = l.mod.NewFunc("printf", types.I32, ir.NewParam("format", types.I8Ptr))
	l.printf.Sig.Variadic = true
	scanf := l.mod.NewFunc("scanf", types.I32, ir.NewParam("format", types.I8Ptr))
	scanf.Sig.Variadic = true
	strcmp := l.mod.NewFunc("strcmp", types.I32,
		ir.NewParam("a", types.I8Ptr), ir.NewParam("b", types.I8Ptr))
	strtoll := l.mod.NewFunc("strtoll", types.I64,
		ir.NewParam("s", types.I8Ptr), ir.NewParam("end", types.NewPointer(types.I8Ptr)), ir.NewParam("base", types.I32))
	write := l.mod.NewFunc("write", types.I64,
		ir.NewParam("fd", types.I32), ir.NewParam("buf", types.I8Ptr), ir.NewParam("n", types.I64))
	exit := l.mod.NewFunc("exit", types.Void, ir.NewParam("status", types.I32))

	l.outFmt = l.cstring("fmt.out", "%lld\n")
	l.defineFail(write, exit)
	l.defineRead(scanf, strcmp, strtoll)
}

// defineFail emits rat.fail(msg, n): write msg to stderr and exit(1).
func (l *lowerer) defineFail(write, exit *ir.Func) {
	msg := ir.NewParam("msg", types.I8Ptr)
	n := ir.NewParam("n", types.I64)
	l.fail = l.mod.NewFunc("rat.fail", types.Void, msg, n)
	b := l.fail.NewBlock("entry")
	b.NewCall(write, constant.NewInt(types.I32, 2), msg, n)
	b.NewCall(exit, constant.NewInt(types.I32, 1))
	b.NewUnreachable()
}

// defineRead emits rat.read(msg, n), which reads one word from stdin and
// returns 1 for true, 0 for false or the integer it spells. Anything else,
// end of input included, calls rat.fail with msg.
func (l *lowerer) defineRead(scanf, strcmp, strtoll *ir.Func) {
	msg := ir.NewParam("msg", types.I8Ptr)
	n := ir.NewParam("n", types.I64)
	l.read = l.mod.NewFunc("rat.read", types.I64, msg, n)

	entry := l.read.NewBlock("entry")
	word := l.read.NewBlock("word")
	notTrue := l.read.NewBlock("not.true")
	number := l.read.NewBlock("number")
	isTrue := l.read.NewBlock("true")
	isFalse := l.read.NewBlock("false")
	good := l.read.NewBlock("good")
	bad := l.read.NewBlock("bad")

	zero := constant.NewInt(types.I64, 0)
	bufType := types.NewArray(wordSize, types.I8)
	buf := entry.NewAlloca(bufType)
	end := entry.NewAlloca(types.I8Ptr)
	p := entry.NewGetElementPtr(bufType, buf, zero, zero)
	scanned := entry.NewCall(scanf, l.cstring("fmt.in", fmt.Sprintf("%%%ds", wordSize-1)), p)
	entry.NewCondBr(entry.NewICmp(enum.IPredEQ, scanned, constant.NewInt(types.I32, 1)), word, bad)

	cmpTrue := word.NewCall(strcmp, p, l.cstring("str.true", "true"))
	word.NewCondBr(word.NewICmp(enum.IPredEQ, cmpTrue, constant.NewInt(types.I32, 0)), isTrue, notTrue)
	isTrue.NewRet(constant.NewInt(types.I64, 1))

	cmpFalse := notTrue.NewCall(strcmp, p, l.cstring("str.false", "false"))
	notTrue.NewCondBr(notTrue.NewICmp(enum.IPredEQ, cmpFalse, constant.NewInt(types.I32, 0)), isFalse, number)
	isFalse.NewRet(zero)

	v := number.NewCall(strtoll, p, end, constant.NewInt(types.I32, 10))
	stop := number.NewLoad(types.I8Ptr, end)
	atEnd := number.NewICmp(enum.IPredEQ, number.NewLoad(types.I8, stop), constant.NewInt(types.I8, 0))
	moved := number.NewICmp(enum.IPredNE, stop, p)
	number.NewCondBr(number.NewAnd(atEnd, moved), good, bad)
	good.NewRet(v)

	bad.NewCall(l.fail, msg, n)
	bad.NewUnreachable()
}

// trap returns the message argument pair for a runtime error raised by in,
// worded as the vm reports it.
func (l *lowerer) trap(cause error, in codegen.Instruction) []value.Value {
	text := fmt.Sprintf("%v at %s\n", cause, in)
	msg := l.cstring(fmt.Sprintf("err.%d", in.Address), text)
	return []value.Value{msg, constant.NewInt(types.I64, int64(len(text)))}
}

func (l *lowerer) cstring(name, s string) constant.Constant {
	g := l.mod.NewGlobalDef(name, constant.NewCharArrayFromString(s+"\x00"))
	g.Immutable = true
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(g.ContentType, g, zero, zero)
}

// allocate creates one zeroed slot per declared symbol and per other
// address the code touches.
func (l *lowerer) allocate(symbols *symtab.Table) {
	slot := func(addr int, name string) {
		a := l.entry.NewAlloca(types.I64)
		a.SetName(name)
		l.entry.NewStore(constant.NewInt(types.I64, 0), a)
		l.slots[addr] = a
	}

	if symbols != nil {
		for _, e := range symbols.Entries() {
			slot(e.Address, e.Name)
		}
	}
	var extra []int
	for _, in := range l.code {
		if in.Op != codegen.OpPushM && in.Op != codegen.OpPopM {
			continue
		}
		if _, ok := l.slots[in.Operand]; !ok {
			l.slots[in.Operand] = nil
			extra = append(extra, in.Operand)
		}
	}
	sort.Ints(extra)
	for _, addr := range extra {
		slot(addr, fmt.Sprintf("m%d", addr))
	}
}

// findLeaders collects the first address, every jump target and every
// address that follows a jump.
func (l *lowerer) findLeaders() {
	if len(l.code) == 0 {
		return
	}
	seen := map[int]bool{1: true}
	for _, in := range l.code {
		if !in.Op.IsJump() {
			continue
		}
		seen[in.Operand] = true
		if in.Address < len(l.code) {
			seen[in.Address+1] = true
		}
	}
	for addr := range seen {
		l.leaders = append(l.leaders, addr)
	}
	sort.Ints(l.leaders)
}

func (l *lowerer) successor(end int) *ir.Block {
	if b, ok := l.blocks[end]; ok {
		return b
	}
	return l.exit
}

func (l *lowerer) lowerBlock(start, end int) error {
	b := l.blocks[start]
	var stack []value.Value

	pop := func(in codegen.Instruction) (value.Value, error) {
		if len(stack) == 0 {
			return nil, fmt.Errorf("llvm: stack underflow at %s", in)
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}
	pop2 := func(in codegen.Instruction) (value.Value, value.Value, error) {
		y, err := pop(in)
		if err != nil {
			return nil, nil, err
		}
		x, err := pop(in)
		return x, y, err
	}
	leave := func(in codegen.Instruction) error {
		if len(stack) != 0 {
			return fmt.Errorf("llvm: %d value(s) left on the stack at block boundary after %s", len(stack), in)
		}
		return nil
	}

	for addr := start; addr < end; addr++ {
		in := l.code[addr-1]
		switch in.Op {
		case codegen.OpPushI:
			stack = append(stack, constant.NewInt(types.I64, int64(in.Operand)))

		case codegen.OpPushM:
			stack = append(stack, b.NewLoad(types.I64, l.slots[in.Operand]))

		case codegen.OpPopM:
			v, err := pop(in)
			if err != nil {
				return err
			}
			b.NewStore(v, l.slots[in.Operand])

		case codegen.OpSOut:
			v, err := pop(in)
			if err != nil {
				return err
			}
			b.NewCall(l.printf, l.outFmt, v)

		case codegen.OpSIn:
			stack = append(stack, b.NewCall(l.read, l.trap(vm.ErrBadInput, in)...))

		case codegen.OpAdd, codegen.OpSub, codegen.OpMul, codegen.OpDiv:
			x, y, err := pop2(in)
			if err != nil {
				return err
			}
			var v value.Value
			switch in.Op {
			case codegen.OpAdd:
				v = b.NewAdd(x, y)
			case codegen.OpSub:
				v = b.NewSub(x, y)
			case codegen.OpMul:
				v = b.NewMul(x, y)
			default:
				b = l.guardDivisor(b, y, in)
				v = divide(b, x, y)
			}
			stack = append(stack, v)

		case codegen.OpGrt, codegen.OpLes, codegen.OpEqu, codegen.OpNeq, codegen.OpGeq, codegen.OpLeq:
			x, y, err := pop2(in)
			if err != nil {
				return err
			}
			cmp := b.NewICmp(predicates[in.Op], x, y)
			stack = append(stack, b.NewZExt(cmp, types.I64))

		case codegen.OpJmp:
			if err := leave(in); err != nil {
				return err
			}
			b.NewBr(l.blocks[in.Operand])

		case codegen.OpJmp0:
			v, err := pop(in)
			if err != nil {
				return err
			}
			if err := leave(in); err != nil {
				return err
			}
			zero := b.NewICmp(enum.IPredEQ, v, constant.NewInt(types.I64, 0))
			b.NewCondBr(zero, l.blocks[in.Operand], l.successor(addr+1))

		case codegen.OpLabel:

		default:
			return fmt.Errorf("llvm: unsupported instruction %s", in)
		}
	}

	if b.Term == nil {
		if err := leave(l.code[end-2]); err != nil {
			return err
		}
		b.NewBr(l.successor(end))
	}
	return nil
}

// guardDivisor branches to a failing block when y is zero and returns the
// block the division continues in.
func (l *lowerer) guardDivisor(b *ir.Block, y value.Value, in codegen.Instruction) *ir.Block {
	trap := l.main.NewBlock(fmt.Sprintf("L%d.zero", in.Address))
	trap.NewCall(l.fail, l.trap(vm.ErrDivisionByZero, in)...)
	trap.NewUnreachable()

	cont := l.main.NewBlock(fmt.Sprintf("L%d.div", in.Address))
	b.NewCondBr(b.NewICmp(enum.IPredEQ, y, constant.NewInt(types.I64, 0)), trap, cont)
	return cont
}

// divide truncates toward zero and wraps math.MinInt64 / -1 to
// math.MinInt64, as Go's integer division does. y is known to be non-zero.
func divide(b *ir.Block, x, y value.Value) value.Value {
	minusOne := b.NewICmp(enum.IPredEQ, y, constant.NewInt(types.I64, -1))
	q := b.NewSDiv(x, b.NewSelect(minusOne, constant.NewInt(types.I64, 1), y))
	return b.NewSelect(minusOne, b.NewSub(constant.NewInt(types.I64, 0), x), q)
}

var predicates = map[codegen.Opcode]enum.IPred{
	codegen.OpGrt: enum.IPredSGT,
	codegen.OpLes: enum.IPredSLT,
	codegen.OpEqu: enum.IPredEQ,
	codegen.OpNeq: enum.IPredNE,
	codegen.OpGeq: enum.IPredSGE,
	codegen.OpLeq: enum.IPredSLE,
}
