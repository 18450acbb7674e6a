package smt

import "fmt"

// Eval computes the concrete value of e under the given symbol assignment.
// Assignment values are truncated to each symbol's width. Returns an error if
// a symbol is unbound or a division by zero occurs.
func Eval(e *Expr, symbols map[string]uint64) (uint64, error) {
	ev := evaluator{symbols: symbols, memo: make(map[uint64]uint64)}
	return ev.eval(e)
}

type evaluator struct {
	symbols map[string]uint64
	memo    map[uint64]uint64
}

func (ev *evaluator) eval(e *Expr) (uint64, error) {
	if v, ok := ev.memo[e.id]; ok {
		return v, nil
	}

	v, err := ev.evalExpr(e)
	if err != nil {
		return 0, err
	}
	ev.memo[e.id] = v
	return v, nil
}

func (ev *evaluator) evalExpr(e *Expr) (uint64, error) {
	switch e.op {
	case CONST:
		return e.value, nil

	case SYMBOL:
		v, ok := ev.symbols[e.name]
		if !ok {
			return 0, fmt.Errorf("eval: unbound symbol: %s", e.name)
		}
		return v & bitmask(e.width), nil

	case NOT:
		v, err := ev.eval(e.args[0])
		if err != nil {
			return 0, err
		}
		return (^v) & bitmask(e.width), nil

	case ADD, SUB, MUL, UDIV, SDIV, UREM, SREM, AND, OR, XOR, SHL, LSHR, ASHR:
		lhs, err := ev.eval(e.args[0])
		if err != nil {
			return 0, err
		}
		rhs, err := ev.eval(e.args[1])
		if err != nil {
			return 0, err
		}
		switch e.op {
		case UDIV, SDIV, UREM, SREM:
			if rhs == 0 {
				return 0, fmt.Errorf("eval: division by zero")
			}
		}
		v, ok := foldBinary(e.op, lhs, rhs, e.args[0].width)
		if !ok {
			return 0, fmt.Errorf("eval: cannot evaluate op: %s", e.op)
		}
		return v & bitmask(e.width), nil

	case EQ, ULT, ULE, SLT, SLE:
		lhs, err := ev.eval(e.args[0])
		if err != nil {
			return 0, err
		}
		rhs, err := ev.eval(e.args[1])
		if err != nil {
			return 0, err
		}
		w := e.args[0].width
		var v bool
		switch e.op {
		case EQ:
			v = lhs == rhs
		case ULT:
			v = lhs < rhs
		case ULE:
			v = lhs <= rhs
		case SLT:
			v = toInt64(lhs, w) < toInt64(rhs, w)
		case SLE:
			v = toInt64(lhs, w) <= toInt64(rhs, w)
		}
		if v {
			return 1, nil
		}
		return 0, nil

	case ITE:
		cond, err := ev.eval(e.args[0])
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return ev.eval(e.args[1])
		}
		return ev.eval(e.args[2])

	case EXTRACT:
		v, err := ev.eval(e.args[0])
		if err != nil {
			return 0, err
		}
		return (v >> e.offset) & bitmask(e.width), nil

	case ZEXT:
		return ev.eval(e.args[0])

	case SEXT:
		v, err := ev.eval(e.args[0])
		if err != nil {
			return 0, err
		}
		return uint64(toInt64(v, e.args[0].width)) & bitmask(e.width), nil

	case CONCAT:
		msb, err := ev.eval(e.args[0])
		if err != nil {
			return 0, err
		}
		lsb, err := ev.eval(e.args[1])
		if err != nil {
			return 0, err
		}
		return (msb << e.args[1].width) | lsb, nil

	default:
		return 0, fmt.Errorf("eval: invalid op: %s", e.op)
	}
}
