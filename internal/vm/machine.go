// Package vm executes instruction listings produced by the translator.
package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"rat25s/internal/codegen"
)

var (
	ErrStackUnderflow = errors.New("vm: stack underflow")
	ErrDivisionByZero = errors.New("vm: division by zero")
	ErrUnresolvedJump = errors.New("vm: unresolved jump")
	ErrJumpOutOfRange = errors.New("vm: jump out of range")
	ErrStepLimit      = errors.New("vm: step limit exceeded")
	ErrBadInput       = errors.New("vm: bad input")
	ErrUnknownOpcode  = errors.New("vm: unknown opcode")
)

const (
	DefaultMaxSteps = 1_000_000

	contextCheckPeriod = 1024
)

// Machine is a stack machine with a flat integer memory. Memory cells
// that were never written read as 0.
type Machine struct {
	code   []codegen.Instruction
	stack  []int
	memory map[int]int
	pc     int // 1-based address of the next instruction
	steps  int

	in       *bufio.Scanner
	out      *bufio.Writer
	maxSteps int
}

type Option func(*Machine)

// WithInput sets the stream SIN reads whitespace separated integers from.
func WithInput(r io.Reader) Option {
	return func(m *Machine) {
		m.in = bufio.NewScanner(r)
		m.in.Split(bufio.ScanWords)
	}
}

// WithOutput sets the stream SOUT writes to.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) { m.out = bufio.NewWriter(w) }
}

// WithMaxSteps bounds the number of executed instructions. A value <= 0
// removes the bound.
func WithMaxSteps(n int) Option {
	return func(m *Machine) { m.maxSteps = n }
}

func New(code []codegen.Instruction, opts ...Option) *Machine {
	m := &Machine{
		code:     code,
		memory:   make(map[int]int),
		pc:       1,
		maxSteps: DefaultMaxSteps,
	}
	WithInput(strings.NewReader(""))(m)
	WithOutput(io.Discard)(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Memory returns the value stored at addr.
func (m *Machine) Memory(addr int) int {
	return m.memory[addr]
}

// Stack returns a copy of the operand stack, bottom first.
func (m *Machine) Stack() []int {
	return append([]int(nil), m.stack...)
}

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() int {
	return m.steps
}

func (m *Machine) push(v int) {
	m.stack = append(m.stack, v)
}

func (m *Machine) pop() (int, error) {
	if len(m.stack) == 0 {
		return 0, ErrStackUnderflow
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) pop2() (a, b int, err error) {
	if b, err = m.pop(); err != nil {
		return 0, 0, err
	}
	if a, err = m.pop(); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Run executes from the current address until control falls off the end
// of the listing. Output is flushed before Run returns.
func (m *Machine) Run(ctx context.Context) (err error) {
	defer func() {
		if ferr := m.out.Flush(); err == nil {
			err = ferr
		}
	}()

	for m.pc >= 1 && m.pc <= len(m.code) {
		if m.maxSteps > 0 && m.steps >= m.maxSteps {
			return fmt.Errorf("%w after %d instructions", ErrStepLimit, m.steps)
		}
		if m.steps%contextCheckPeriod == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		in := m.code[m.pc-1]
		m.steps++
		if err := m.step(in); err != nil {
			return fmt.Errorf("%w at %s", err, in)
		}
	}
	return nil
}

func (m *Machine) step(in codegen.Instruction) error {
	next := m.pc + 1

	switch in.Op {
	case codegen.OpPushI:
		m.push(in.Operand)

	case codegen.OpPushM:
		m.push(m.memory[in.Operand])

	case codegen.OpPopM:
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.memory[in.Operand] = v

	case codegen.OpSOut:
		v, err := m.pop()
		if err != nil {
			return err
		}
		fmt.Fprintln(m.out, v)

	case codegen.OpSIn:
		v, err := m.read()
		if err != nil {
			return err
		}
		m.push(v)

	case codegen.OpAdd, codegen.OpSub, codegen.OpMul, codegen.OpDiv:
		a, b, err := m.pop2()
		if err != nil {
			return err
		}
		switch in.Op {
		case codegen.OpAdd:
			m.push(a + b)
		case codegen.OpSub:
			m.push(a - b)
		case codegen.OpMul:
			m.push(a * b)
		case codegen.OpDiv:
			if b == 0 {
				return ErrDivisionByZero
			}
			m.push(a / b)
		}

	case codegen.OpGrt, codegen.OpLes, codegen.OpEqu, codegen.OpNeq, codegen.OpGeq, codegen.OpLeq:
		a, b, err := m.pop2()
		if err != nil {
			return err
		}
		m.push(boolInt(compare(in.Op, a, b)))

	case codegen.OpJmp0, codegen.OpJmp:
		if in.Pending() {
			return ErrUnresolvedJump
		}
		if in.Operand < 1 || in.Operand > len(m.code) {
			return ErrJumpOutOfRange
		}
		if in.Op == codegen.OpJmp {
			next = in.Operand
			break
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		if v == 0 {
			next = in.Operand
		}

	case codegen.OpLabel:

	default:
		return ErrUnknownOpcode
	}

	m.pc = next
	return nil
}

func compare(op codegen.Opcode, a, b int) bool {
	switch op {
	case codegen.OpGrt:
		return a > b
	case codegen.OpLes:
		return a < b
	case codegen.OpEqu:
		return a == b
	case codegen.OpNeq:
		return a != b
	case codegen.OpGeq:
		return a >= b
	}
	return a <= b
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// read consumes one integer from the input. true and false are accepted
// as 1 and 0.
func (m *Machine) read() (int, error) {
	if err := m.out.Flush(); err != nil {
		return 0, err
	}
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		return 0, fmt.Errorf("%w: unexpected end of input", ErrBadInput)
	}
	word := m.in.Text()
	switch word {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.Atoi(word)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrBadInput, word)
	}
	return v, nil
}
