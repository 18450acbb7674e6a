package smt_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/SoptikHa2/chef"
	"github.com/SoptikHa2/chef/smt"
	"github.com/davecgh/go-spew/spew"
)

// symIndex returns a 32-bit symbolic index read from the first byte of a.
func symIndex(a *chef.Array) chef.Expr {
	return chef.NewCastExpr(a.Select(chef.NewConstantExpr32(0), 8, false), 32, false)
}

func TestIteBuilder_Read(t *testing.T) {
	t.Run("InitialArray", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		buf := chef.NewConstantArray(2, "buf", []byte{10, 20, 30, 40})

		tr := smt.NewIteBuilder(smt.NewBuilder())
		e, err := tr.Read(chef.NewSelectExpr(buf, symIndex(idx)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		} else if e.Width() != 8 {
			t.Fatalf("unexpected width: %d", e.Width())
		}

		// In-range indexes resolve to the element, out-of-range to zero.
		for i, want := range []uint64{10, 20, 30, 40, 0, 0} {
			v, err := smt.Eval(e, map[string]uint64{"idx_1_0": uint64(i)})
			if err != nil {
				t.Fatal(err)
			} else if v != want {
				t.Fatalf("index %d: unexpected value: %d\n%s", i, v, spew.Sdump(e))
			}
		}
	})

	t.Run("HistoryPrecedence", func(t *testing.T) {
		k := chef.NewArray(1, "k", 1)
		j := chef.NewArray(2, "j", 1)
		buf := chef.NewConstantArray(3, "buf", []byte{10, 20, 30, 40})

		// Newest write wins over older writes and over the initial contents.
		buf = buf.Store(symIndex(k), chef.NewConstantExpr8(7), false)

		tr := smt.NewIteBuilder(smt.NewBuilder())
		e, err := tr.Read(chef.NewSelectExpr(buf, symIndex(j)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		}

		for _, tt := range []struct {
			k, j uint64
			want uint64
		}{
			{k: 2, j: 2, want: 7},  // hit the write
			{k: 3, j: 1, want: 20}, // miss the write, initial contents
			{k: 0, j: 0, want: 7},  // write shadows initial contents
			{k: 0, j: 9, want: 0},  // out of range
		} {
			v, err := smt.Eval(e, map[string]uint64{"k_1_0": tt.k, "j_2_0": tt.j})
			if err != nil {
				t.Fatal(err)
			} else if v != tt.want {
				t.Fatalf("k=%d j=%d: unexpected value: %d", tt.k, tt.j, v)
			}
		}
	})

	t.Run("MatchesEvaluator", func(t *testing.T) {
		k := chef.NewArray(1, "k", 1)
		j := chef.NewArray(2, "j", 1)
		buf := chef.NewArray(3, "buf", 4)
		buf = buf.Store(symIndex(k), chef.NewConstantExpr8(0xEE), false)

		sel := chef.NewSelectExpr(buf, symIndex(j))
		tr := smt.NewIteBuilder(smt.NewBuilder())
		e, err := tr.Convert(sel)
		if err != nil {
			t.Fatal(err)
		}

		contents := []byte{10, 20, 30, 40}
		for ki := uint64(0); ki < 4; ki++ {
			for ji := uint64(0); ji < 4; ji++ {
				oracle := chef.NewExprEvaluator(
					[]*chef.Array{k, j, buf},
					[][]byte{{byte(ki)}, {byte(ji)}, contents},
				)
				want, err := oracle.Evaluate(sel)
				if err != nil {
					t.Fatal(err)
				}

				symbols := map[string]uint64{"k_1_0": ki, "j_2_0": ji}
				for i, v := range contents {
					symbols[fmt.Sprintf("buf_3_%d", i)] = uint64(v)
				}
				if v, err := smt.Eval(e, symbols); err != nil {
					t.Fatal(err)
				} else if v != want.Value {
					t.Fatalf("k=%d j=%d: got %d, want %d\n%s", ki, ji, v, want.Value, spew.Sdump(e))
				}
			}
		}
	})

	t.Run("Memoized", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		buf := chef.NewArray(2, "buf", 4)

		tr := smt.NewIteBuilder(smt.NewBuilder())

		// Structurally equal reads built separately share one resolution.
		e1, err := tr.Read(chef.NewSelectExpr(buf, symIndex(idx)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		}
		e2, err := tr.Read(chef.NewSelectExpr(buf, symIndex(idx)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		}
		if e1 != e2 {
			t.Fatal("expected same node")
		}

		// Both the index read and the buffer read resolve once; the second
		// call hits the cache for each.
		stats := tr.Stats()
		if stats.ReadCacheHits != 2 {
			t.Fatalf("unexpected read cache hits: %d", stats.ReadCacheHits)
		} else if stats.ReadCacheMisses != 2 {
			t.Fatalf("unexpected read cache misses: %d", stats.ReadCacheMisses)
		}
	})

	t.Run("SharedHistory", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		buf := chef.NewArray(2, "buf", 4)

		// Two versions forked from the same root share element expressions.
		v1 := buf.Store(symIndex(idx), chef.NewConstantExpr8(1), false)
		v2 := buf.Store(symIndex(idx), chef.NewConstantExpr8(2), false)

		tr := smt.NewIteBuilder(smt.NewBuilder())
		if _, err := tr.Read(chef.NewSelectExpr(v1, symIndex(idx)).(*chef.SelectExpr)); err != nil {
			t.Fatal(err)
		}
		if _, err := tr.Read(chef.NewSelectExpr(v2, symIndex(idx)).(*chef.SelectExpr)); err != nil {
			t.Fatal(err)
		}

		// One materialization for idx, one for the shared root of v1 & v2.
		if stats := tr.Stats(); stats.Materializations != 2 {
			t.Fatalf("unexpected materializations: %d", stats.Materializations)
		}
	})

	t.Run("EmptyArray", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		empty := chef.NewArray(2, "empty", 0)

		tr := smt.NewIteBuilder(smt.NewBuilder())
		e, err := tr.Read(chef.NewSelectExpr(empty, symIndex(idx)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		}
		if !e.IsConst() || e.Value() != 0 || e.Width() != 8 {
			t.Fatalf("unexpected expr: %s", e)
		}
	})

	t.Run("SymbolUniqueness", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		a := chef.NewArray(2, "dup", 2)
		b := chef.NewArray(3, "dup", 2)

		tr := smt.NewIteBuilder(smt.NewBuilder())
		e1, err := tr.Read(chef.NewSelectExpr(a, symIndex(idx)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		}
		e2, err := tr.Read(chef.NewSelectExpr(b, symIndex(idx)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		}
		if e1 == e2 {
			t.Fatal("expected distinct nodes for same-named arrays")
		}
	})

	t.Run("IndexWidthMismatch", func(t *testing.T) {
		buf := chef.NewArray(1, "buf", 4)
		tr := smt.NewIteBuilder(smt.NewBuilder())
		sel := &chef.SelectExpr{Array: buf, Index: chef.NewConstantExpr(0, 16)}
		if _, err := tr.Read(sel); !errors.Is(err, smt.ErrWidthMismatch) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("InstanceIsolation", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		buf := chef.NewArray(2, "buf", 2)

		b := smt.NewBuilder()
		tr1, tr2 := smt.NewIteBuilder(b), smt.NewIteBuilder(b)

		e1, err := tr1.Read(chef.NewSelectExpr(buf, symIndex(idx)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		}
		e2, err := tr2.Read(chef.NewSelectExpr(buf, symIndex(idx)).(*chef.SelectExpr))
		if err != nil {
			t.Fatal(err)
		}

		// Caches are per instance; the shared builder still interns the
		// resulting expressions to the same nodes.
		if tr1.Stats().Materializations != 2 || tr2.Stats().Materializations != 2 {
			t.Fatal("expected independent materialization")
		}
		if e1 != e2 {
			t.Fatal("expected same node from shared builder")
		}
	})
}

func TestIteBuilder_Convert(t *testing.T) {
	t.Run("Memoized", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		expr := symIndex(idx)

		tr := smt.NewIteBuilder(smt.NewBuilder())
		e1, err := tr.Convert(expr)
		if err != nil {
			t.Fatal(err)
		}
		e2, err := tr.Convert(expr)
		if err != nil {
			t.Fatal(err)
		}
		if e1 != e2 {
			t.Fatal("expected same node")
		}
	})

	t.Run("Constant", func(t *testing.T) {
		tr := smt.NewIteBuilder(smt.NewBuilder())
		e, err := tr.Convert(chef.NewConstantExpr(42, 8))
		if err != nil {
			t.Fatal(err)
		} else if !e.IsConst() || e.Value() != 42 || e.Width() != 8 {
			t.Fatalf("unexpected expr: %s", e)
		}
	})

	t.Run("Binary", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		k := idx.Select(chef.NewConstantExpr32(0), 8, false)
		expr := chef.NewBinaryExpr(chef.ULT, k, chef.NewConstantExpr8(4))

		tr := smt.NewIteBuilder(smt.NewBuilder())
		e, err := tr.Convert(expr)
		if err != nil {
			t.Fatal(err)
		} else if e.Width() != 1 {
			t.Fatalf("unexpected width: %d", e.Width())
		}

		if v, err := smt.Eval(e, map[string]uint64{"idx_1_0": 3}); err != nil {
			t.Fatal(err)
		} else if v != 1 {
			t.Fatalf("unexpected value: %d", v)
		}
		if v, err := smt.Eval(e, map[string]uint64{"idx_1_0": 4}); err != nil {
			t.Fatal(err)
		} else if v != 0 {
			t.Fatalf("unexpected value: %d", v)
		}
	})

	t.Run("Cast", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 1)
		k := idx.Select(chef.NewConstantExpr32(0), 8, false)

		tr := smt.NewIteBuilder(smt.NewBuilder())
		e, err := tr.Convert(chef.NewCastExpr(k, 16, true))
		if err != nil {
			t.Fatal(err)
		} else if e.Width() != 16 {
			t.Fatalf("unexpected width: %d", e.Width())
		}

		if v, err := smt.Eval(e, map[string]uint64{"idx_1_0": 0x80}); err != nil {
			t.Fatal(err)
		} else if v != 0xFF80 {
			t.Fatalf("unexpected value: 0x%04x", v)
		}
	})

	t.Run("Concat", func(t *testing.T) {
		idx := chef.NewArray(1, "idx", 2)
		expr := idx.Select(chef.NewConstantExpr32(0), 16, false)

		tr := smt.NewIteBuilder(smt.NewBuilder())
		e, err := tr.Convert(expr)
		if err != nil {
			t.Fatal(err)
		} else if e.Width() != 16 {
			t.Fatalf("unexpected width: %d", e.Width())
		}

		if v, err := smt.Eval(e, map[string]uint64{"idx_1_0": 0xAA, "idx_1_1": 0xBB}); err != nil {
			t.Fatal(err)
		} else if v != 0xAABB {
			t.Fatalf("unexpected value: 0x%04x", v)
		}
	})
}
