package chef

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
)

// arraySeq is the source of array identifiers. Identifiers are unique for the
// lifetime of the process so caches keyed by them never collide across forks.
var arraySeq uint64

// Memory is a flat byte-addressable address space backed by symbolic arrays.
// Clones share structure, so forking a state is cheap and arrays written after
// the fork diverge without copying the whole heap.
type Memory struct {
	heap *immutable.SortedMap

	littleEndian bool
}

// NewMemory returns an empty little-endian address space.
func NewMemory() *Memory {
	return &Memory{
		heap:         immutable.NewSortedMap(&uint64Comparer{}),
		littleEndian: true,
	}
}

// Clone returns a copy of the address space that shares the underlying heap.
func (m *Memory) Clone() *Memory {
	return &Memory{
		heap:         m.heap,
		littleEndian: m.littleEndian,
	}
}

// IsLittleEndian returns true if multi-byte loads & stores use little-endian order.
func (m *Memory) IsLittleEndian() bool { return m.littleEndian }

// Alloc reserves size bytes and returns the base address along with the
// backing symbolic array.
func (m *Memory) Alloc(name string, size uint) (*ConstantExpr, *Array) {
	addr := m.nextAddr()
	array := NewArray(atomic.AddUint64(&arraySeq, 1), name, size)
	m.heap = m.heap.Set(addr, array)
	return NewConstantExpr(addr, WidthAddress), array
}

// AllocConstant reserves len(values) bytes initialized to the given contents
// and returns the base address along with the backing array.
func (m *Memory) AllocConstant(name string, values []byte) (*ConstantExpr, *Array) {
	addr := m.nextAddr()
	array := NewConstantArray(atomic.AddUint64(&arraySeq, 1), name, values)
	m.heap = m.heap.Set(addr, array)
	return NewConstantExpr(addr, WidthAddress), array
}

// nextAddr returns the next available address on the heap.
// Ensures the address is always non-zero.
func (m *Memory) nextAddr() uint64 {
	itr := m.heap.Iterator()
	itr.Last()
	if k, v := itr.Prev(); k != nil {
		return k.(uint64) + uint64(v.(*Array).Size)
	}
	return uint64(WidthAddress)
}

// ArrayAt returns the array allocated exactly at addr, if any.
func (m *Memory) ArrayAt(addr *ConstantExpr) *Array {
	if value, _ := m.heap.Get(addr.Value); value != nil {
		return value.(*Array)
	}
	return nil
}

func (m *Memory) findAllocContainingAddr(addr *ConstantExpr) (base *ConstantExpr, array *Array) {
	// Seek to the given address or the next available address.
	itr := m.heap.Iterator()
	if itr.Seek(addr.Value); itr.Done() {
		itr.Last()
	}

	// Move backwards until address range too low.
	for !itr.Done() {
		k, v := itr.Prev()
		if k == nil {
			break
		}

		base, array := k.(uint64), v.(*Array)
		if base > addr.Value {
			continue
		} else if addr.Value >= base+uint64(array.Size) {
			break
		}
		return NewConstantExpr(base, WidthAddress), array
	}
	return nil, nil
}

// Store writes value to the bytes at addr.
func (m *Memory) Store(addr *ConstantExpr, value Expr) error {
	base, array := m.findAllocContainingAddr(addr)
	if array == nil {
		return fmt.Errorf("store: allocation not found: addr=%d", addr.Value)
	}
	newArray := array.Store(newSubExpr(addr, base), value, m.littleEndian)
	m.heap = m.heap.Set(base.Value, newArray)
	return nil
}

// StoreAt writes value through a possibly symbolic offset from the
// allocation at base. The write lands in the array's history, not its
// initial contents.
func (m *Memory) StoreAt(base *ConstantExpr, offset Expr, value Expr) error {
	array := m.ArrayAt(base)
	if array == nil {
		return fmt.Errorf("store: allocation not found: addr=%d", base.Value)
	}
	newArray := array.Store(offset, value, m.littleEndian)
	m.heap = m.heap.Set(base.Value, newArray)
	return nil
}

// Load reads a width-bit expression from the bytes at addr.
func (m *Memory) Load(addr *ConstantExpr, width uint) (Expr, error) {
	base, array := m.findAllocContainingAddr(addr)
	if array == nil {
		return nil, fmt.Errorf("load: allocation not found: addr=%d", addr.Value)
	}
	return array.Select(newSubExpr(addr, base), width, m.littleEndian), nil
}

// LoadAt reads a width-bit expression through a possibly symbolic offset
// from the allocation at base.
func (m *Memory) LoadAt(base *ConstantExpr, offset Expr, width uint) (Expr, error) {
	array := m.ArrayAt(base)
	if array == nil {
		return nil, fmt.Errorf("load: allocation not found: addr=%d", base.Value)
	}
	return array.Select(offset, width, m.littleEndian), nil
}

// Dump returns a human-readable listing of the heap.
func (m *Memory) Dump() string {
	var buf bytes.Buffer
	itr := m.heap.Iterator()
	for {
		k, v := itr.Next()
		if k == nil {
			return buf.String()
		}
		array := v.(*Array)
		fmt.Fprintf(&buf, "%08x: %s\n", k.(uint64), array)
	}
}

// uint64Comparer compares two 64-bit unsigned integers. Implements immutable.Comparer.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not an int.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}
