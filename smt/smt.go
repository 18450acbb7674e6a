// Package smt provides an array-free bit-vector expression backend.
//
// Expressions are hash-consed by a Builder so that structurally equal nodes
// are the same node with the same stable identifier. Identifiers let callers
// key caches by structure without holding on to deep trees.
package smt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWidthMismatch is returned when an operation is applied to expressions
// of incompatible bit widths.
var ErrWidthMismatch = errors.New("width mismatch")

// Op enumerates the expression node kinds.
type Op int

const (
	CONST = Op(iota + 1)
	SYMBOL

	NOT
	AND
	OR
	XOR

	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	SHL
	LSHR
	ASHR

	EQ
	ULT
	ULE
	SLT
	SLE

	ITE

	EXTRACT
	ZEXT
	SEXT
	CONCAT
)

var opNames = [...]string{
	CONST:   "const",
	SYMBOL:  "symbol",
	NOT:     "not",
	AND:     "and",
	OR:      "or",
	XOR:     "xor",
	ADD:     "add",
	SUB:     "sub",
	MUL:     "mul",
	UDIV:    "udiv",
	SDIV:    "sdiv",
	UREM:    "urem",
	SREM:    "srem",
	SHL:     "shl",
	LSHR:    "lshr",
	ASHR:    "ashr",
	EQ:      "eq",
	ULT:     "ult",
	ULE:     "ule",
	SLT:     "slt",
	SLE:     "sle",
	ITE:     "ite",
	EXTRACT: "extract",
	ZEXT:    "zext",
	SEXT:    "sext",
	CONCAT:  "concat",
}

// String returns the string representation of the operation.
func (op Op) String() string {
	if op > 0 && op < Op(len(opNames)) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op<%d>", op)
}

// Expr is an immutable, interned bit-vector expression. Two expressions built
// by the same Builder are structurally equal iff they are the same pointer,
// and iff their IDs are equal.
type Expr struct {
	id    uint64
	op    Op
	width uint

	value  uint64 // CONST
	name   string // SYMBOL
	offset uint   // EXTRACT

	args []*Expr
}

// ID returns the stable identifier assigned by the owning Builder.
func (e *Expr) ID() uint64 { return e.id }

// Op returns the node kind.
func (e *Expr) Op() Op { return e.op }

// Width returns the bit width of the expression.
func (e *Expr) Width() uint { return e.width }

// Value returns the constant value. Only meaningful for CONST nodes.
func (e *Expr) Value() uint64 { return e.value }

// Name returns the symbol name. Only meaningful for SYMBOL nodes.
func (e *Expr) Name() string { return e.name }

// Offset returns the extract bit offset. Only meaningful for EXTRACT nodes.
func (e *Expr) Offset() uint { return e.offset }

// Args returns the child expressions. Callers must not modify the slice.
func (e *Expr) Args() []*Expr { return e.args }

// IsConst returns true if the expression is a constant.
func (e *Expr) IsConst() bool { return e.op == CONST }

// IsTrue returns true if the expression is the boolean true constant.
func (e *Expr) IsTrue() bool {
	return e.op == CONST && e.width == 1 && e.value != 0
}

// IsFalse returns true if the expression is the boolean false constant.
func (e *Expr) IsFalse() bool {
	return e.op == CONST && e.width == 1 && e.value == 0
}

// String returns an s-expression representation.
func (e *Expr) String() string {
	switch e.op {
	case CONST:
		return fmt.Sprintf("(const %d %d)", e.value, e.width)
	case SYMBOL:
		return fmt.Sprintf("(symbol %s %d)", e.name, e.width)
	case EXTRACT:
		return fmt.Sprintf("(extract %s %d %d)", e.args[0], e.offset, e.width)
	case ZEXT, SEXT:
		return fmt.Sprintf("(%s %s %d)", e.op, e.args[0], e.width)
	default:
		var sb strings.Builder
		sb.WriteByte('(')
		sb.WriteString(e.op.String())
		for _, arg := range e.args {
			sb.WriteByte(' ')
			sb.WriteString(arg.String())
		}
		sb.WriteByte(')')
		return sb.String()
	}
}
