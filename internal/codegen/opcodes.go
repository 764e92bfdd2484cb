package codegen

import (
	"fmt"

	"github.com/pkg/errors"
)

// Opcode is one stack-machine instruction.
type Opcode uint8

const (
	OpPushI Opcode = iota + 1 // push immediate
	OpPushM                   // push memory
	OpPopM                    // pop into memory
	OpSOut                    // pop and print
	OpSIn                     // read and push
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpGrt
	OpLes
	OpEqu
	OpNeq
	OpGeq
	OpLeq
	OpJmp0 // pop, jump if zero
	OpJmp
	OpLabel
)

var opNames = [...]string{
	OpPushI: "PUSHI",
	OpPushM: "PUSHM",
	OpPopM:  "POPM",
	OpSOut:  "SOUT",
	OpSIn:   "SIN",
	OpAdd:   "A",
	OpSub:   "S",
	OpMul:   "M",
	OpDiv:   "D",
	OpGrt:   "GRT",
	OpLes:   "LES",
	OpEqu:   "EQU",
	OpNeq:   "NEQ",
	OpGeq:   "GEQ",
	OpLeq:   "LEQ",
	OpJmp0:  "JMP0",
	OpJmp:   "JMP",
	OpLabel: "LABEL",
}

func (op Opcode) String() string {
	if op > 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// HasOperand reports whether instructions with op carry an operand.
func (op Opcode) HasOperand() bool {
	switch op {
	case OpPushI, OpPushM, OpPopM, OpJmp0, OpJmp:
		return true
	}
	return false
}

// IsJump reports whether op transfers control.
func (op Opcode) IsJump() bool {
	return op == OpJmp0 || op == OpJmp
}

// ParseOpcode is the inverse of Opcode.String.
func ParseOpcode(name string) (Opcode, error) {
	for op, n := range opNames {
		if n != "" && n == name {
			return Opcode(op), nil
		}
	}
	return 0, errors.Errorf("unknown opcode %q", name)
}

// ArithmeticOpcode maps + - * / to A S M D.
func ArithmeticOpcode(op string) (Opcode, bool) {
	switch op {
	case "+":
		return OpAdd, true
	case "-":
		return OpSub, true
	case "*":
		return OpMul, true
	case "/":
		return OpDiv, true
	}
	return 0, false
}

// RelationalOpcode maps a relop lexeme to its comparison opcode.
func RelationalOpcode(op string) (Opcode, bool) {
	switch op {
	case ">":
		return OpGrt, true
	case "<":
		return OpLes, true
	case "==":
		return OpEqu, true
	case "!=":
		return OpNeq, true
	case ">=":
		return OpGeq, true
	case "<=":
		return OpLeq, true
	}
	return 0, false
}
