package chef_test

import (
	"testing"

	"github.com/SoptikHa2/chef"
	"github.com/google/go-cmp/cmp"
)

func TestArray(t *testing.T) {
	t.Run("Concrete", func(t *testing.T) {
		t.Run("Bool", func(t *testing.T) {
			a := chef.NewArray(0, "a", 4)
			a = a.Store(chef.NewConstantExpr(3, 32), chef.NewConstantExpr(1, 1), false)
			if expr, ok := a.Select(chef.NewConstantExpr(3, 32), 1, false).(*chef.ConstantExpr); !ok {
				t.Fatal("expected constant expr")
			} else if expr.Value != 1 {
				t.Fatal("unexpected value")
			} else if expr.Width != 1 {
				t.Fatal("unexpected width")
			}
		})

		t.Run("BigEndian", func(t *testing.T) {
			a := chef.NewArray(0, "a", 4)
			a = a.Store(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0xAABBCCDD, 32), false)
			if expr, ok := a.Select(chef.NewConstantExpr(0, 32), 32, false).(*chef.ConstantExpr); !ok {
				t.Fatal("expected constant expr")
			} else if expr.Value != 0xAABBCCDD {
				t.Fatal("unexpected value")
			}
		})

		t.Run("LittleEndian", func(t *testing.T) {
			a := chef.NewArray(0, "a", 4)
			a = a.Store(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0xAABBCCDD, 32), true)
			if expr, ok := a.Select(chef.NewConstantExpr(0, 32), 32, true).(*chef.ConstantExpr); !ok {
				t.Fatal("expected constant expr")
			} else if expr.Value != 0xAABBCCDD {
				t.Fatal("unexpected value")
			}
		})

		t.Run("InitialContents", func(t *testing.T) {
			a := chef.NewConstantArray(0, "a", []byte{0xDD, 0xCC, 0xBB, 0xAA})
			if expr, ok := a.Select(chef.NewConstantExpr(0, 32), 32, true).(*chef.ConstantExpr); !ok {
				t.Fatal("expected constant expr")
			} else if expr.Value != 0xAABBCCDD {
				t.Fatalf("unexpected value: 0x%08x", expr.Value)
			}
		})

		t.Run("InitialContentsOverwritten", func(t *testing.T) {
			a := chef.NewConstantArray(0, "a", []byte{1, 2})
			a = a.Store(chef.NewConstantExpr(1, 32), chef.NewConstantExpr8(9), false)
			if expr, ok := a.Select(chef.NewConstantExpr(1, 32), 8, false).(*chef.ConstantExpr); !ok {
				t.Fatal("expected constant expr")
			} else if expr.Value != 9 {
				t.Fatalf("unexpected value: %d", expr.Value)
			}
		})
	})

	t.Run("Symbolic", func(t *testing.T) {
		t.Run("Empty", func(t *testing.T) {
			t.Run("SingleByte", func(t *testing.T) {
				a := chef.NewArray(0, "a", 4)
				if diff := cmp.Diff(
					a.Select(chef.NewConstantExpr32(0), 8, false),
					&chef.SelectExpr{
						Array: a,
						Index: chef.NewConstantExpr32(0),
					},
				); diff != "" {
					t.Fatal(diff)
				}
			})

			t.Run("BigEndian", func(t *testing.T) {
				a := chef.NewArray(0, "a", 4)
				if diff := cmp.Diff(
					a.Select(chef.NewConstantExpr32(2), 16, false),
					&chef.ConcatExpr{
						MSB: &chef.SelectExpr{
							Array: a,
							Index: chef.NewConstantExpr32(2),
						},
						LSB: &chef.SelectExpr{
							Array: a,
							Index: chef.NewConstantExpr32(3),
						},
					},
				); diff != "" {
					t.Fatal(diff)
				}
			})

			t.Run("LittleEndian", func(t *testing.T) {
				a := chef.NewArray(0, "a", 4)
				if diff := cmp.Diff(
					a.Select(chef.NewConstantExpr32(2), 16, true),
					&chef.ConcatExpr{
						MSB: &chef.SelectExpr{
							Array: a,
							Index: chef.NewConstantExpr32(3),
						},
						LSB: &chef.SelectExpr{
							Array: a,
							Index: chef.NewConstantExpr32(2),
						},
					},
				); diff != "" {
					t.Fatal(diff)
				}
			})

			// Ensure stores using selects from other arrays return references
			// to that original array's expressions.
			t.Run("MultiArray", func(t *testing.T) {
				a, b := chef.NewArray(0, "a", 4), chef.NewArray(1, "b", 8)
				b = b.Store(
					chef.NewConstantExpr32(6),
					a.Select(chef.NewConstantExpr32(2), 16, false),
					false,
				)

				if diff := cmp.Diff(
					&chef.ConcatExpr{
						MSB: &chef.SelectExpr{
							Array: b,
							Index: chef.NewConstantExpr32(4),
						},
						LSB: &chef.ConcatExpr{
							MSB: &chef.SelectExpr{
								Array: b,
								Index: chef.NewConstantExpr32(5),
							},
							LSB: &chef.ConcatExpr{
								MSB: &chef.SelectExpr{
									Array: a,
									Index: chef.NewConstantExpr32(2),
								},
								LSB: &chef.SelectExpr{
									Array: a,
									Index: chef.NewConstantExpr32(3),
								},
							},
						},
					},
					b.Select(chef.NewConstantExpr32(4), 32, false),
				); diff != "" {
					t.Fatal(diff)
				}
			})

			// Ensure selection of an array that contains a store with a
			// symbolic index will simply a read from the array.
			t.Run("SymbolicIndex", func(t *testing.T) {
				a, b, c := chef.NewArray(0, "a", 8), chef.NewArray(1, "b", 8), chef.NewArray(2, "c", 8)

				// Write concrete zeros.
				c = c.Store(
					chef.NewConstantExpr32(0),
					chef.NewConstantExpr64(0),
					false,
				)

				// Overwrite with store using symbolic index.
				c = c.Store(
					b.Select(chef.NewConstantExpr32(0), 32, false),
					a.Select(chef.NewConstantExpr32(0), 8, false),
					false,
				)

				if diff := cmp.Diff(
					&chef.ConcatExpr{
						MSB: &chef.SelectExpr{
							Array: c,
							Index: chef.NewConstantExpr32(0),
						},
						LSB: &chef.SelectExpr{
							Array: c,
							Index: chef.NewConstantExpr32(1),
						},
					},
					c.Select(chef.NewConstantExpr32(0), 16, false),
				); diff != "" {
					t.Fatal(diff)
				}
			})
		})
	})

	t.Run("GC", func(t *testing.T) {
		t.Run("ConcreteIndex", func(t *testing.T) {
			a := chef.NewArray(0, "a", 2)
			a = a.Store(chef.NewConstantExpr32(0), chef.NewConstantExpr8(0), false)
			a = a.Store(chef.NewConstantExpr32(1), chef.NewConstantExpr8(1), false)
			a = a.Store(chef.NewConstantExpr32(0), chef.NewConstantExpr8(2), false)
			if expr, ok := a.Select(chef.NewConstantExpr32(0), 16, false).(*chef.ConstantExpr); !ok {
				t.Fatal("expected constant expr")
			} else if expr.Value != 0x0201 {
				t.Fatalf("unexpected value: 0x%04x", expr.Value)
			}

			if cmp := chef.CompareArrayUpdate(
				a.Updates,
				chef.NewArrayUpdate(
					chef.NewConstantExpr32(0),
					chef.NewConstantExpr8(2),
					chef.NewArrayUpdate(
						chef.NewConstantExpr32(1),
						chef.NewConstantExpr8(1),
						nil,
					),
				),
			); cmp != 0 {
				t.Fatalf("unexpected update chain: %d", cmp)
			}
		})

		t.Run("SymbolicIndex", func(t *testing.T) {
			a, b := chef.NewArray(0, "a", 2), chef.NewArray(1, "b", 1)
			a = a.Store(chef.NewConstantExpr32(0), chef.NewConstantExpr8(0), false)
			a = a.Store(b.Select(chef.NewConstantExpr32(0), 8, false), chef.NewConstantExpr8(1), false) // symbolic index
			a = a.Store(chef.NewConstantExpr32(0), chef.NewConstantExpr8(2), false)

			if cmp := chef.CompareArrayUpdate(
				a.Updates,
				chef.NewArrayUpdate(
					chef.NewConstantExpr32(0),
					chef.NewConstantExpr8(2),
					chef.NewArrayUpdate(
						b.Select(chef.NewConstantExpr32(0), 8, false),
						chef.NewConstantExpr8(1),
						chef.NewArrayUpdate(
							chef.NewConstantExpr32(0),
							chef.NewConstantExpr8(0),
							nil,
						),
					),
				),
			); cmp != 0 {
				t.Fatalf("unexpected update chain: %d", cmp)
			}
		})
	})

	t.Run("IsSymbolic", func(t *testing.T) {
		t.Run("AllConcrete", func(t *testing.T) {
			a := chef.NewArray(0, "a", 2)
			a = a.Store(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), false)
			a = a.Store(chef.NewConstantExpr(1, 32), chef.NewConstantExpr(0, 8), false)
			if a.IsSymbolic() {
				t.Fatal("expected concrete")
			}
		})

		t.Run("UnsetByte", func(t *testing.T) {
			a := chef.NewArray(0, "a", 2)
			a = a.Store(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), false)
			if !a.IsSymbolic() {
				t.Fatal("expected symbolic")
			}
		})

		t.Run("ConstantArray", func(t *testing.T) {
			a := chef.NewConstantArray(0, "a", []byte{1, 2})
			if a.IsSymbolic() {
				t.Fatal("expected concrete")
			}
		})

		t.Run("ConstantArraySymbolicStore", func(t *testing.T) {
			a, b := chef.NewConstantArray(0, "a", []byte{1, 2}), chef.NewArray(1, "b", 2)
			a = a.Store(chef.NewConstantExpr(0, 32), b.Select(chef.NewConstantExpr(0, 32), 8, false), false)
			if !a.IsSymbolic() {
				t.Fatal("expected symbolic")
			}
		})

		t.Run("ContainsSelectValue", func(t *testing.T) {
			a, b := chef.NewArray(0, "a", 2), chef.NewArray(1, "b", 2)
			a = a.Store(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), false)
			a = a.Store(chef.NewConstantExpr(1, 32), b.Select(chef.NewConstantExpr(0, 32), 8, false), false)
			if !a.IsSymbolic() {
				t.Fatal("expected symbolic")
			}
		})

		t.Run("ContainsSelectIndex", func(t *testing.T) {
			a, b := chef.NewArray(0, "a", 2), chef.NewArray(1, "b", 2)
			a = a.Store(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), false)
			a = a.Store(b.Select(chef.NewConstantExpr(0, 32), 8, false), chef.NewConstantExpr(0, 32), false)
			if !a.IsSymbolic() {
				t.Fatal("expected symbolic")
			}
		})
	})
}

func TestArray_Equal(t *testing.T) {
	t.Run("SizeMismatch", func(t *testing.T) {
		a, b := chef.NewArray(0, "a", 2), chef.NewArray(1, "b", 4)
		if expr := a.Equal(b); !chef.IsConstantFalse(expr) {
			t.Fatalf("unexpected expr: %s", expr)
		}
	})

	t.Run("Concrete", func(t *testing.T) {
		a := chef.NewConstantArray(0, "a", []byte{1, 2})
		b := chef.NewConstantArray(1, "b", []byte{1, 2})
		if expr := a.Equal(b); !chef.IsConstantTrue(expr) {
			t.Fatalf("unexpected expr: %s", expr)
		}

		b = b.Store(chef.NewConstantExpr32(1), chef.NewConstantExpr8(3), false)
		if expr := a.Equal(b); !chef.IsConstantFalse(expr) {
			t.Fatalf("unexpected expr: %s", expr)
		}
	})

	t.Run("Symbolic", func(t *testing.T) {
		a, b := chef.NewArray(0, "a", 1), chef.NewArray(1, "b", 1)
		expr, ok := a.Equal(b).(*chef.BinaryExpr)
		if !ok {
			t.Fatalf("expected binary expr, got %T", a.Equal(b))
		} else if expr.Op != chef.EQ {
			t.Fatalf("unexpected op: %s", expr.Op)
		}
	})
}

func TestArray_NotEqual(t *testing.T) {
	t.Run("SizeMismatch", func(t *testing.T) {
		a, b := chef.NewArray(0, "a", 2), chef.NewArray(1, "b", 4)
		if expr := a.NotEqual(b); !chef.IsConstantTrue(expr) {
			t.Fatalf("unexpected expr: %s", expr)
		}
	})

	t.Run("Concrete", func(t *testing.T) {
		a := chef.NewConstantArray(0, "a", []byte{1, 2})
		b := chef.NewConstantArray(1, "b", []byte{1, 3})
		if expr := a.NotEqual(b); !chef.IsConstantTrue(expr) {
			t.Fatalf("unexpected expr: %s", expr)
		}
	})
}

func TestCompareArray(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if cmp := chef.CompareArray(nil, nil); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArray(nil, chef.NewArray(0, "a", 2)); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArray(chef.NewArray(0, "a", 2), nil); cmp != 1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})

	t.Run("ID", func(t *testing.T) {
		if cmp := chef.CompareArray(chef.NewArray(0, "a", 2), chef.NewArray(0, "a", 2)); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArray(chef.NewArray(0, "a", 2), chef.NewArray(1, "a", 2)); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArray(chef.NewArray(1, "a", 2), chef.NewArray(0, "a", 2)); cmp != 1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})

	t.Run("Size", func(t *testing.T) {
		if cmp := chef.CompareArray(chef.NewArray(0, "a", 2), chef.NewArray(0, "a", 2)); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArray(chef.NewArray(0, "a", 1), chef.NewArray(0, "a", 2)); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArray(chef.NewArray(0, "a", 2), chef.NewArray(0, "a", 1)); cmp != 1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})
}

func TestCompareArrayUpdate(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		upd := chef.NewArrayUpdate(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), nil)
		if cmp := chef.CompareArrayUpdate(nil, nil); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArrayUpdate(nil, upd); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArrayUpdate(upd, nil); cmp != 1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})

	t.Run("Index", func(t *testing.T) {
		a := chef.NewArrayUpdate(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), nil)
		b := chef.NewArrayUpdate(chef.NewConstantExpr(1, 32), chef.NewConstantExpr(0, 8), nil)
		if cmp := chef.CompareArrayUpdate(a, a); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArrayUpdate(a, b); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArrayUpdate(b, a); cmp != 1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})

	t.Run("Value", func(t *testing.T) {
		a := chef.NewArrayUpdate(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), nil)
		b := chef.NewArrayUpdate(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(1, 8), nil)
		if cmp := chef.CompareArrayUpdate(a, a); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArrayUpdate(a, b); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArrayUpdate(b, a); cmp != 1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})

	t.Run("Next", func(t *testing.T) {
		a := chef.NewArrayUpdate(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), nil)
		b := chef.NewArrayUpdate(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), chef.NewArrayUpdate(chef.NewConstantExpr(0, 32), chef.NewConstantExpr(0, 8), nil))
		if cmp := chef.CompareArrayUpdate(a, a); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArrayUpdate(a, b); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		} else if cmp := chef.CompareArrayUpdate(b, a); cmp != 1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})
}
