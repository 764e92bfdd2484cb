package symtab

import (
	"fmt"
	"strings"

	"rat25s/internal/errors"
)

// Type is the static type of a declared variable or an expression.
type Type int

const (
	Integer Type = iota + 1
	Boolean
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is one of the supported kinds.
func (t Type) Valid() bool {
	return t == Integer || t == Boolean
}

// ParseType maps a declaration qualifier to its Type.
func ParseType(qualifier string) (Type, error) {
	switch qualifier {
	case "integer":
		return Integer, nil
	case "boolean":
		return Boolean, nil
	}
	return 0, errors.New(errors.UnsupportedType,
		"type '%s' is not supported; only 'integer' and 'boolean' are allowed", qualifier)
}

// BaseAddress is the memory address given to the first declared variable.
const BaseAddress = 10000

// Entry is one declared identifier.
type Entry struct {
	Name    string
	Type    Type
	Address int
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %d %s", e.Name, e.Address, e.Type)
}

// Table maps identifiers to their type and memory address. Addresses are
// handed out in declaration order starting at BaseAddress.
type Table struct {
	index   map[string]int
	entries []Entry
	next    int
}

func NewTable() *Table {
	return &Table{
		index: make(map[string]int),
		next:  BaseAddress,
	}
}

// Insert declares name with type t and returns its address.
func (s *Table) Insert(name string, t Type) (int, error) {
	if _, ok := s.index[name]; ok {
		return 0, errors.New(errors.DuplicateDeclaration, "variable '%s' already declared", name)
	}
	if !t.Valid() {
		return 0, errors.New(errors.UnsupportedType, "type %s of '%s' is not supported", t, name)
	}

	addr := s.next
	s.next++
	s.index[name] = len(s.entries)
	s.entries = append(s.entries, Entry{Name: name, Type: t, Address: addr})
	return addr, nil
}

// Lookup returns the entry for name.
func (s *Table) Lookup(name string) (Entry, error) {
	i, ok := s.index[name]
	if !ok {
		return Entry{}, errors.New(errors.UndeclaredIdentifier, "variable '%s' used without declaration", name)
	}
	return s.entries[i], nil
}

func (s *Table) Type(name string) (Type, error) {
	e, err := s.Lookup(name)
	return e.Type, err
}

func (s *Table) Address(name string) (int, error) {
	e, err := s.Lookup(name)
	return e.Address, err
}

// CheckCompatibility reports whether t1 and t2 may be combined by op.
// Arithmetic on booleans is never allowed; otherwise the types must be
// identical. Pass an empty op for assignment.
func CheckCompatibility(t1, t2 Type, op string) bool {
	if IsArithmetic(op) && (t1 == Boolean || t2 == Boolean) {
		return false
	}
	return t1 == t2
}

// IsArithmetic reports whether op is one of + - * /.
func IsArithmetic(op string) bool {
	switch op {
	case "+", "-", "*", "/":
		return true
	}
	return false
}

// CheckCompatibility is the method form used by the translator.
func (s *Table) CheckCompatibility(t1, t2 Type, op string) bool {
	return CheckCompatibility(t1, t2, op)
}

// Entries returns the declared identifiers in declaration order.
func (s *Table) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Table) Len() int {
	return len(s.entries)
}

// String renders the symbol table listing, one "<name> <address> <type>"
// line per entry.
func (s *Table) String() string {
	var sb strings.Builder
	for _, e := range s.entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
