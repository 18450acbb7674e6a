package smt

import (
	"fmt"

	"github.com/SoptikHa2/chef"
)

// IteBuilderStats holds counters describing an IteBuilder's caches.
type IteBuilderStats struct {
	Materializations uint64 // arrays whose elements have been materialized
	ReadCacheHits    uint64
	ReadCacheMisses  uint64
}

// readKey identifies a read by the structure of its index, the root array and
// the head of the write history. Interned index IDs make structurally equal
// indexes share a key; a zero update ID means the history is empty.
type readKey struct {
	index  uint64
	array  uint64
	update uint64
}

// IteBuilder translates expressions over symbolic byte arrays into array-free
// bit-vector expressions. Reads at symbolic indexes become nested ite chains
// over the array's write history and its materialized elements.
//
// All caches are scoped to the instance and are never evicted, so an
// IteBuilder should live as long as the arrays it has materialized. Distinct
// instances share nothing except the Builder they were created with. An
// IteBuilder is not safe for concurrent use.
type IteBuilder struct {
	b *Builder

	// converted caches translated frontend expressions by node identity.
	converted map[chef.Expr]*Expr

	// elems caches per-array element expressions by array ID.
	elems map[uint64][]*Expr

	// reads caches resolved reads.
	reads map[readKey]*Expr

	stats IteBuilderStats
}

// NewIteBuilder returns an IteBuilder that creates expressions with b.
func NewIteBuilder(b *Builder) *IteBuilder {
	return &IteBuilder{
		b:         b,
		converted: make(map[chef.Expr]*Expr),
		elems:     make(map[uint64][]*Expr),
		reads:     make(map[readKey]*Expr),
	}
}

// Builder returns the expression builder used by t.
func (t *IteBuilder) Builder() *Builder { return t.b }

// Stats returns a snapshot of the cache counters.
func (t *IteBuilder) Stats() IteBuilderStats { return t.stats }

// Convert translates a frontend expression into the backend representation.
// Boolean expressions become one-bit vectors.
func (t *IteBuilder) Convert(expr chef.Expr) (*Expr, error) {
	if e, ok := t.converted[expr]; ok {
		return e, nil
	}

	e, err := t.convert(expr)
	if err != nil {
		return nil, err
	}
	t.converted[expr] = e
	return e, nil
}

func (t *IteBuilder) convert(expr chef.Expr) (*Expr, error) {
	switch expr := expr.(type) {
	case *chef.ConstantExpr:
		return t.b.Const(expr.Value, expr.Width), nil

	case *chef.NotOptimizedExpr:
		return t.Convert(expr.Src)

	case *chef.SelectExpr:
		return t.Read(expr)

	case *chef.ConcatExpr:
		msb, err := t.Convert(expr.MSB)
		if err != nil {
			return nil, err
		}
		lsb, err := t.Convert(expr.LSB)
		if err != nil {
			return nil, err
		}
		return t.b.Concat(msb, lsb), nil

	case *chef.ExtractExpr:
		src, err := t.Convert(expr.Expr)
		if err != nil {
			return nil, err
		}
		return t.b.Extract(src, expr.Offset, expr.Width)

	case *chef.NotExpr:
		src, err := t.Convert(expr.Expr)
		if err != nil {
			return nil, err
		}
		return t.b.Not(src), nil

	case *chef.CastExpr:
		src, err := t.Convert(expr.Src)
		if err != nil {
			return nil, err
		}
		if expr.Signed {
			return t.b.SExt(src, expr.Width)
		}
		return t.b.ZExt(src, expr.Width)

	case *chef.BinaryExpr:
		lhs, err := t.Convert(expr.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := t.Convert(expr.RHS)
		if err != nil {
			return nil, err
		}
		return t.convertBinary(expr.Op, lhs, rhs)

	default:
		return nil, fmt.Errorf("smt: cannot convert expression type: %T", expr)
	}
}

func (t *IteBuilder) convertBinary(op chef.BinaryOp, lhs, rhs *Expr) (*Expr, error) {
	switch op {
	case chef.ADD:
		return t.b.Add(lhs, rhs)
	case chef.SUB:
		return t.b.Sub(lhs, rhs)
	case chef.MUL:
		return t.b.Mul(lhs, rhs)
	case chef.UDIV:
		return t.b.UDiv(lhs, rhs)
	case chef.SDIV:
		return t.b.SDiv(lhs, rhs)
	case chef.UREM:
		return t.b.URem(lhs, rhs)
	case chef.SREM:
		return t.b.SRem(lhs, rhs)
	case chef.AND:
		return t.b.And(lhs, rhs)
	case chef.OR:
		return t.b.Or(lhs, rhs)
	case chef.XOR:
		return t.b.Xor(lhs, rhs)
	case chef.SHL:
		return t.b.Shl(lhs, rhs)
	case chef.LSHR:
		return t.b.LShr(lhs, rhs)
	case chef.ASHR:
		return t.b.AShr(lhs, rhs)
	case chef.EQ:
		return t.b.Eq(lhs, rhs)
	case chef.NE:
		eq, err := t.b.Eq(lhs, rhs)
		if err != nil {
			return nil, err
		}
		return t.b.Not(eq), nil
	case chef.ULT:
		return t.b.Ult(lhs, rhs)
	case chef.ULE:
		return t.b.Ule(lhs, rhs)
	case chef.UGT:
		return t.b.Ult(rhs, lhs)
	case chef.UGE:
		return t.b.Ule(rhs, lhs)
	case chef.SLT:
		return t.b.Slt(lhs, rhs)
	case chef.SLE:
		return t.b.Sle(lhs, rhs)
	case chef.SGT:
		return t.b.Slt(rhs, lhs)
	case chef.SGE:
		return t.b.Sle(rhs, lhs)
	default:
		return nil, fmt.Errorf("smt: cannot convert binary op: %s", op)
	}
}

// Read translates a one byte array read into an ite chain. The chain tests the
// write history newest to oldest and falls through to the array's elements.
func (t *IteBuilder) Read(expr *chef.SelectExpr) (*Expr, error) {
	index, err := t.Convert(expr.Index)
	if err != nil {
		return nil, err
	}
	if index.Width() != chef.WidthAddress {
		return nil, fmt.Errorf("read %q: index: %w: %d != %d", expr.Array.Name, ErrWidthMismatch, index.Width(), chef.WidthAddress)
	}
	return t.readForArray(expr.Array, expr.Array.Updates, index)
}

func (t *IteBuilder) readForArray(array *chef.Array, un *chef.ArrayUpdate, index *Expr) (*Expr, error) {
	key := readKey{index: index.ID(), array: array.ID}
	if un != nil {
		key.update = un.ID
	}
	if e, ok := t.reads[key]; ok {
		t.stats.ReadCacheHits++
		return e, nil
	}
	t.stats.ReadCacheMisses++

	var e *Expr
	var err error
	if un == nil {
		e, err = t.readForInitialArray(array, index)
	} else {
		e, err = t.readForUpdate(array, un, index)
	}
	if err != nil {
		return nil, err
	}

	t.reads[key] = e
	return e, nil
}

// readForUpdate resolves a read against the newest history node: if the
// indexes match the read yields the written value, otherwise it defers to the
// rest of the history.
func (t *IteBuilder) readForUpdate(array *chef.Array, un *chef.ArrayUpdate, index *Expr) (*Expr, error) {
	next, err := t.readForArray(array, un.Next, index)
	if err != nil {
		return nil, err
	}

	unIndex, err := t.Convert(un.Index)
	if err != nil {
		return nil, err
	}
	unValue, err := t.Convert(un.Value)
	if err != nil {
		return nil, err
	}
	if unIndex.Width() != chef.WidthAddress {
		return nil, fmt.Errorf("read %q: write index: %w: %d != %d", array.Name, ErrWidthMismatch, unIndex.Width(), chef.WidthAddress)
	} else if unValue.Width() != chef.Width8 {
		return nil, fmt.Errorf("read %q: write value: %w: %d != %d", array.Name, ErrWidthMismatch, unValue.Width(), chef.Width8)
	}

	cond, err := t.b.Eq(index, unIndex)
	if err != nil {
		return nil, err
	}
	return t.b.Ite(cond, unValue, next)
}

// readForInitialArray resolves a read against the array's initial contents as
// a chain of index comparisons over every element. Out of range indexes fall
// through to zero.
//
// TODO: balance this tree.
func (t *IteBuilder) readForInitialArray(array *chef.Array, index *Expr) (*Expr, error) {
	elems := t.arrayValues(array)

	e := t.b.Const(0, chef.Width8)
	for i, elem := range elems {
		cond, err := t.b.Eq(index, t.b.Const(uint64(i), chef.WidthAddress))
		if err != nil {
			return nil, err
		}
		if e, err = t.b.Ite(cond, elem, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// arrayValues returns one expression per element of the array, creating them
// on first use. Constant arrays yield constants; symbolic arrays yield fresh
// symbols named after the array and its ID, so same-named arrays stay
// distinct.
func (t *IteBuilder) arrayValues(array *chef.Array) []*Expr {
	if elems, ok := t.elems[array.ID]; ok {
		return elems
	}

	elems := make([]*Expr, array.Size)
	if array.IsConstant() {
		for i, v := range array.Values {
			elems[i] = t.b.Const(uint64(v), chef.Width8)
		}
	} else {
		for i := range elems {
			elems[i] = t.b.Symbol(fmt.Sprintf("%s_%d_%d", array.Name, array.ID, i), chef.Width8)
		}
	}

	t.elems[array.ID] = elems
	t.stats.Materializations++
	return elems
}
