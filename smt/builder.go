package smt

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// BuilderStats holds counters describing the node table.
type BuilderStats struct {
	Lookups uint64 // intern table probes
	Hits    uint64 // probes that found an existing node
	Nodes   uint64 // distinct nodes created
}

// Builder creates interned expressions. Structurally equal expressions built
// by the same Builder share a single node, so pointer equality and ID equality
// both mean structural equality.
//
// A Builder is safe for concurrent use. Expressions from different builders
// must not be mixed.
type Builder struct {
	mu      sync.Mutex
	buckets map[uint64][]*Expr
	seq     uint64
	stats   BuilderStats
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{buckets: make(map[uint64][]*Expr)}
}

// Stats returns a snapshot of the node table counters.
func (b *Builder) Stats() BuilderStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// intern returns the canonical node for e, adding it to the table if needed.
func (b *Builder) intern(e *Expr) *Expr {
	h := hashExpr(e)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Lookups++
	for _, other := range b.buckets[h] {
		if shallowEq(e, other) {
			b.stats.Hits++
			return other
		}
	}

	b.seq++
	e.id = b.seq
	b.buckets[h] = append(b.buckets[h], e)
	b.stats.Nodes++
	return e
}

func hashExpr(e *Expr) uint64 {
	var buf [8]byte
	d := xxhash.New()

	buf[0] = byte(e.op)
	d.Write(buf[:1])
	binary.LittleEndian.PutUint64(buf[:], uint64(e.width))
	d.Write(buf[:])

	switch e.op {
	case CONST:
		binary.LittleEndian.PutUint64(buf[:], e.value)
		d.Write(buf[:])
	case SYMBOL:
		d.WriteString(e.name)
	case EXTRACT:
		binary.LittleEndian.PutUint64(buf[:], uint64(e.offset))
		d.Write(buf[:])
	}
	for _, arg := range e.args {
		binary.LittleEndian.PutUint64(buf[:], arg.id)
		d.Write(buf[:])
	}
	return d.Sum64()
}

func shallowEq(a, b *Expr) bool {
	if a.op != b.op || a.width != b.width || a.value != b.value ||
		a.name != b.name || a.offset != b.offset || len(a.args) != len(b.args) {
		return false
	}
	for i := range a.args {
		if a.args[i] != b.args[i] {
			return false
		}
	}
	return true
}

func bitmask(width uint) uint64 {
	return (uint64(1) << width) - 1
}

// toInt64 reinterprets the low width bits of v as a signed value.
func toInt64(v uint64, width uint) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

// Const returns the width-bit constant with the given value.
// The value is truncated to fit the width.
func (b *Builder) Const(value uint64, width uint) *Expr {
	return b.intern(&Expr{op: CONST, width: width, value: value & bitmask(width)})
}

// Bool returns the one-bit constant for a boolean.
func (b *Builder) Bool(value bool) *Expr {
	if value {
		return b.Const(1, 1)
	}
	return b.Const(0, 1)
}

// Symbol returns the width-bit free variable with the given name.
// Symbols with the same name and width are the same node.
func (b *Builder) Symbol(name string, width uint) *Expr {
	return b.intern(&Expr{op: SYMBOL, width: width, name: name})
}

// Not returns the bitwise complement of a.
func (b *Builder) Not(a *Expr) *Expr {
	if a.IsConst() {
		return b.Const(^a.value, a.width)
	}
	return b.intern(&Expr{op: NOT, width: a.width, args: []*Expr{a}})
}

// binary returns an interned width-preserving binary node, folding constants.
func (b *Builder) binary(op Op, lhs, rhs *Expr) (*Expr, error) {
	if lhs.width != rhs.width {
		return nil, fmt.Errorf("%s: %w: %d != %d", op, ErrWidthMismatch, lhs.width, rhs.width)
	}

	if lhs.IsConst() && rhs.IsConst() {
		if v, ok := foldBinary(op, lhs.value, rhs.value, lhs.width); ok {
			return b.Const(v, lhs.width), nil
		}
	}
	return b.intern(&Expr{op: op, width: lhs.width, args: []*Expr{lhs, rhs}}), nil
}

func foldBinary(op Op, lhs, rhs uint64, width uint) (uint64, bool) {
	switch op {
	case ADD:
		return lhs + rhs, true
	case SUB:
		return lhs - rhs, true
	case MUL:
		return lhs * rhs, true
	case UDIV:
		if rhs == 0 {
			return 0, false
		}
		return lhs / rhs, true
	case SDIV:
		if rhs == 0 {
			return 0, false
		}
		return uint64(toInt64(lhs, width) / toInt64(rhs, width)), true
	case UREM:
		if rhs == 0 {
			return 0, false
		}
		return lhs % rhs, true
	case SREM:
		if rhs == 0 {
			return 0, false
		}
		return uint64(toInt64(lhs, width) % toInt64(rhs, width)), true
	case AND:
		return lhs & rhs, true
	case OR:
		return lhs | rhs, true
	case XOR:
		return lhs ^ rhs, true
	case SHL:
		return lhs << rhs, true
	case LSHR:
		return lhs >> rhs, true
	case ASHR:
		if rhs >= uint64(width) {
			rhs = uint64(width) - 1
		}
		return uint64(toInt64(lhs, width) >> rhs), true
	default:
		return 0, false
	}
}

// Add returns lhs + rhs.
func (b *Builder) Add(lhs, rhs *Expr) (*Expr, error) { return b.binary(ADD, lhs, rhs) }

// Sub returns lhs - rhs.
func (b *Builder) Sub(lhs, rhs *Expr) (*Expr, error) { return b.binary(SUB, lhs, rhs) }

// Mul returns lhs * rhs.
func (b *Builder) Mul(lhs, rhs *Expr) (*Expr, error) { return b.binary(MUL, lhs, rhs) }

// UDiv returns the unsigned quotient of lhs and rhs.
func (b *Builder) UDiv(lhs, rhs *Expr) (*Expr, error) { return b.binary(UDIV, lhs, rhs) }

// SDiv returns the signed quotient of lhs and rhs.
func (b *Builder) SDiv(lhs, rhs *Expr) (*Expr, error) { return b.binary(SDIV, lhs, rhs) }

// URem returns the unsigned remainder of lhs divided by rhs.
func (b *Builder) URem(lhs, rhs *Expr) (*Expr, error) { return b.binary(UREM, lhs, rhs) }

// SRem returns the signed remainder of lhs divided by rhs.
func (b *Builder) SRem(lhs, rhs *Expr) (*Expr, error) { return b.binary(SREM, lhs, rhs) }

// And returns the bitwise AND of lhs and rhs.
func (b *Builder) And(lhs, rhs *Expr) (*Expr, error) { return b.binary(AND, lhs, rhs) }

// Or returns the bitwise OR of lhs and rhs.
func (b *Builder) Or(lhs, rhs *Expr) (*Expr, error) { return b.binary(OR, lhs, rhs) }

// Xor returns the bitwise XOR of lhs and rhs.
func (b *Builder) Xor(lhs, rhs *Expr) (*Expr, error) { return b.binary(XOR, lhs, rhs) }

// Shl returns lhs shifted left by rhs bits.
func (b *Builder) Shl(lhs, rhs *Expr) (*Expr, error) { return b.binary(SHL, lhs, rhs) }

// LShr returns lhs logically shifted right by rhs bits.
func (b *Builder) LShr(lhs, rhs *Expr) (*Expr, error) { return b.binary(LSHR, lhs, rhs) }

// AShr returns lhs arithmetically shifted right by rhs bits.
func (b *Builder) AShr(lhs, rhs *Expr) (*Expr, error) { return b.binary(ASHR, lhs, rhs) }

// compare returns an interned one-bit comparison node, folding constants.
func (b *Builder) compare(op Op, lhs, rhs *Expr) (*Expr, error) {
	if lhs.width != rhs.width {
		return nil, fmt.Errorf("%s: %w: %d != %d", op, ErrWidthMismatch, lhs.width, rhs.width)
	}

	if lhs.IsConst() && rhs.IsConst() {
		var v bool
		switch op {
		case EQ:
			v = lhs.value == rhs.value
		case ULT:
			v = lhs.value < rhs.value
		case ULE:
			v = lhs.value <= rhs.value
		case SLT:
			v = toInt64(lhs.value, lhs.width) < toInt64(rhs.value, rhs.width)
		case SLE:
			v = toInt64(lhs.value, lhs.width) <= toInt64(rhs.value, rhs.width)
		}
		return b.Bool(v), nil
	}

	// Interning makes pointer equality structural equality.
	if lhs == rhs {
		switch op {
		case EQ, ULE, SLE:
			return b.Bool(true), nil
		case ULT, SLT:
			return b.Bool(false), nil
		}
	}
	return b.intern(&Expr{op: op, width: 1, args: []*Expr{lhs, rhs}}), nil
}

// Eq returns the one-bit equality of lhs and rhs.
func (b *Builder) Eq(lhs, rhs *Expr) (*Expr, error) { return b.compare(EQ, lhs, rhs) }

// Ult returns the one-bit unsigned less-than comparison of lhs and rhs.
func (b *Builder) Ult(lhs, rhs *Expr) (*Expr, error) { return b.compare(ULT, lhs, rhs) }

// Ule returns the one-bit unsigned less-than-or-equal comparison of lhs and rhs.
func (b *Builder) Ule(lhs, rhs *Expr) (*Expr, error) { return b.compare(ULE, lhs, rhs) }

// Slt returns the one-bit signed less-than comparison of lhs and rhs.
func (b *Builder) Slt(lhs, rhs *Expr) (*Expr, error) { return b.compare(SLT, lhs, rhs) }

// Sle returns the one-bit signed less-than-or-equal comparison of lhs and rhs.
func (b *Builder) Sle(lhs, rhs *Expr) (*Expr, error) { return b.compare(SLE, lhs, rhs) }

// Ite returns then if cond is true, otherwise els. cond must be one bit wide
// and both branches must have the same width.
func (b *Builder) Ite(cond, then, els *Expr) (*Expr, error) {
	if cond.width != 1 {
		return nil, fmt.Errorf("ite: %w: condition must be 1 bit, got %d", ErrWidthMismatch, cond.width)
	} else if then.width != els.width {
		return nil, fmt.Errorf("ite: %w: %d != %d", ErrWidthMismatch, then.width, els.width)
	}

	if cond.IsConst() {
		if cond.value != 0 {
			return then, nil
		}
		return els, nil
	}
	if then == els {
		return then, nil
	}
	return b.intern(&Expr{op: ITE, width: then.width, args: []*Expr{cond, then, els}}), nil
}

// Extract returns width bits of a starting at the given bit offset.
func (b *Builder) Extract(a *Expr, offset, width uint) (*Expr, error) {
	if width == 0 || offset+width > a.width {
		return nil, fmt.Errorf("extract: %w: [%d,%d) out of %d", ErrWidthMismatch, offset, offset+width, a.width)
	}
	if width == a.width {
		return a, nil
	}
	if a.IsConst() {
		return b.Const(a.value>>offset, width), nil
	}
	return b.intern(&Expr{op: EXTRACT, width: width, offset: offset, args: []*Expr{a}}), nil
}

// ZExt returns a zero-extended to the given width.
func (b *Builder) ZExt(a *Expr, width uint) (*Expr, error) {
	if width < a.width {
		return nil, fmt.Errorf("zext: %w: %d < %d", ErrWidthMismatch, width, a.width)
	}
	if width == a.width {
		return a, nil
	}
	if a.IsConst() {
		return b.Const(a.value, width), nil
	}
	return b.intern(&Expr{op: ZEXT, width: width, args: []*Expr{a}}), nil
}

// SExt returns a sign-extended to the given width.
func (b *Builder) SExt(a *Expr, width uint) (*Expr, error) {
	if width < a.width {
		return nil, fmt.Errorf("sext: %w: %d < %d", ErrWidthMismatch, width, a.width)
	}
	if width == a.width {
		return a, nil
	}
	if a.IsConst() {
		return b.Const(uint64(toInt64(a.value, a.width)), width), nil
	}
	return b.intern(&Expr{op: SEXT, width: width, args: []*Expr{a}}), nil
}

// Concat returns the concatenation of msb over lsb.
func (b *Builder) Concat(msb, lsb *Expr) *Expr {
	if msb.IsConst() && lsb.IsConst() {
		return b.Const((msb.value<<lsb.width)|lsb.value, msb.width+lsb.width)
	}
	return b.intern(&Expr{op: CONCAT, width: msb.width + lsb.width, args: []*Expr{msb, lsb}})
}
