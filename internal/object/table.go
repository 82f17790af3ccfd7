package object

import (
	"math"
	"unsafe"
)

// entry is one (key, value) pair slot in the hash part. An empty slot has
// both fields Nil; a tombstone (§4.2, "Tombstone" in the glossary) has a
// Nil key but a non-Nil value, and must be skipped-over rather than
// treated as a probe terminator.
type entry struct {
	key   Value
	value Value
}

// Table is the hybrid array+hash aggregate of §3/§4.2: a dense array part
// for 1-based integer keys at the low end, and an open-addressed linear
// probing hash part for everything else (grounded on
// original_source/src/table.c's find_pair/table_set_array/move_hash_to_array,
// adapted to Go slices rather than manually managed capacities).
type Table struct {
	array []Value

	entries   []entry
	hashLive  int // live (non-tombstone) entries
	hashUsed  int // live + tombstones, for load-factor accounting
}

func NewTable() *Table { return &Table{} }

// ArrayLen reports the size of the dense array segment (for tests/debug).
func (t *Table) ArrayLen() int { return len(t.array) }

// HashLen reports the number of live entries in the hash segment.
func (t *Table) HashLen() int { return t.hashLive }

func asArrayIndex(k Value) (int, bool) {
	if k.Kind() != KNumber {
		return 0, false
	}
	n := k.AsNumber()
	i := int64(n)
	if float64(i) != n || i < 1 || i > math.MaxInt32 {
		return 0, false
	}
	return int(i), true
}

// Get implements §4.2's get(t,k).
func (t *Table) Get(k Value) Value {
	if i, ok := asArrayIndex(k); ok && i <= len(t.array) {
		return t.array[i-1]
	}
	v, found := t.hashGet(k)
	if !found {
		return Nil()
	}
	return v
}

// Set implements §4.2's set(t,k,v). Nil and NaN keys are rejected with a
// runtime error; assigning Nil to an existing key behaves as unset (the
// conventional Lua "t[k] = nil" idiom), matching invariant 3 of §8.
func (t *Table) Set(k, v Value) error {
	if k.IsNil() {
		return errTableIndexNil
	}
	if k.Kind() == KNumber && math.IsNaN(k.AsNumber()) {
		return errTableIndexNaN
	}

	if i, ok := asArrayIndex(k); ok {
		switch {
		case i <= len(t.array):
			t.array[i-1] = v
			return nil
		case i == len(t.array)+1 && !v.IsNil():
			t.array = append(t.array, v)
			t.migrateFromHash()
			return nil
		}
	}

	if v.IsNil() {
		t.Unset(k)
		return nil
	}
	t.hashSet(k, v)
	return nil
}

// migrateFromHash implements the promotion rule of invariant (iv): once a
// value lands at array index len(array)+1, any consecutive integer keys
// already sitting in the hash part migrate into the array too.
func (t *Table) migrateFromHash() {
	for {
		next := Number(float64(len(t.array) + 1))
		v, found := t.hashGet(next)
		if !found {
			return
		}
		t.array = append(t.array, v)
		t.hashDelete(next)
	}
}

// Unset implements §4.2's unset(t,k): places a tombstone, count unchanged.
func (t *Table) Unset(k Value) {
	if i, ok := asArrayIndex(k); ok && i <= len(t.array) {
		t.array[i-1] = Nil()
		return
	}
	t.hashDelete(k)
}

// Length implements the `#` operator per §3/§4.2.
func (t *Table) Length() int {
	n := len(t.array)
	if n == 0 {
		return 0
	}
	if !t.array[n-1].IsNil() {
		return n
	}
	lo, hi := 0, n
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if !t.array[mid-1].IsNil() {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// Next implements §4.2's next(t,prev_key): physical order of the hash
// part's entries slice, starting at the slot after prev_key (or 0 when
// prev_key is Nil). Returns ok=false once the chain is exhausted.
// A generic for-in over the array part is not part of this spec's
// opcode set (§1 Non-goals: no generic for beyond the numeric FOR_*
// instructions), so Next walks only the hash segment, exactly as §4.2
// describes it.
func (t *Table) Next(prevKey Value) (key, value Value, ok bool, err error) {
	start := 0
	if !prevKey.IsNil() {
		idx, found := t.hashFind(prevKey)
		if !found {
			return Value{}, Value{}, false, errNextKeyNotFound
		}
		start = idx + 1
	}
	for i := start; i < len(t.entries); i++ {
		e := t.entries[i]
		if e.key.IsNil() {
			continue // empty or tombstone
		}
		return e.key, e.value, true, nil
	}
	return Value{}, Value{}, false, nil
}

// hashFind returns the physical slot index currently holding k.
func (t *Table) hashFind(k Value) (int, bool) {
	if len(t.entries) == 0 {
		return 0, false
	}
	cap := uint32(len(t.entries))
	idx := hashValue(k) & (cap - 1)
	for {
		e := &t.entries[idx]
		if e.key.IsNil() {
			if e.value.IsNil() {
				return 0, false
			}
			// tombstone: keep probing
		} else if e.key.Equal(k) {
			return int(idx), true
		}
		idx = (idx + 1) & (cap - 1)
	}
}

func (t *Table) hashGet(k Value) (Value, bool) {
	idx, found := t.hashFind(k)
	if !found {
		return Nil(), false
	}
	return t.entries[idx].value, true
}

const hashInitialCap = 8

func (t *Table) hashSet(k, v Value) {
	if len(t.entries) == 0 {
		t.growHash(hashInitialCap)
	} else if (t.hashUsed+1)*4 > len(t.entries)*3 {
		t.growHash(len(t.entries) * 2)
	}

	cap := uint32(len(t.entries))
	idx := hashValue(k) & (cap - 1)
	tombstone := -1
	for {
		e := &t.entries[idx]
		if e.key.IsNil() {
			if e.value.IsNil() {
				slot := int(idx)
				if tombstone >= 0 {
					slot = tombstone
				} else {
					t.hashUsed++
				}
				t.entries[slot] = entry{key: k, value: v}
				t.hashLive++
				return
			}
			if tombstone < 0 {
				tombstone = int(idx)
			}
		} else if e.key.Equal(k) {
			e.value = v
			return
		}
		idx = (idx + 1) & (cap - 1)
	}
}

func (t *Table) hashDelete(k Value) {
	idx, found := t.hashFind(k)
	if !found {
		return
	}
	t.entries[idx] = entry{key: Nil(), value: Boolean(true)}
	t.hashLive--
}

func (t *Table) growHash(newCap int) {
	old := t.entries
	t.entries = make([]entry, newCap)
	t.hashUsed = 0
	t.hashLive = 0
	for _, e := range old {
		if e.key.IsNil() {
			continue // drop empty slots and tombstones on rehash
		}
		t.rehashInsert(e.key, e.value)
	}
}

// rehashInsert is hashSet's insert loop without the load-factor check,
// used only while rebuilding into a table known to have room.
func (t *Table) rehashInsert(k, v Value) {
	cap := uint32(len(t.entries))
	idx := hashValue(k) & (cap - 1)
	for {
		e := &t.entries[idx]
		if e.key.IsNil() && e.value.IsNil() {
			t.entries[idx] = entry{key: k, value: v}
			t.hashUsed++
			t.hashLive++
			return
		}
		idx = (idx + 1) & (cap - 1)
	}
}

func hashValue(k Value) uint32 {
	switch k.Kind() {
	case KNil:
		return 0
	case KBoolean:
		return uint32(k.num)
	case KNumber:
		n := k.AsNumber()
		if n == 0 {
			n = 0 // normalize -0.0 so it hashes identically to 0.0
		}
		bits := math.Float64bits(n)
		return uint32(bits) ^ uint32(bits>>32)
	case KString:
		return k.AsString().Hash()
	default:
		return hashPointer(k.obj)
	}
}

func hashPointer(obj any) uint32 {
	var p uintptr
	switch o := obj.(type) {
	case *Table:
		p = uintptr(unsafe.Pointer(o))
	case *Closure:
		p = uintptr(unsafe.Pointer(o))
	case *Chunk:
		p = uintptr(unsafe.Pointer(o))
	case unsafe.Pointer:
		p = uintptr(o)
	}
	return uint32(p) ^ uint32(p>>32)
}

var (
	errTableIndexNil   = tableError("table index is nil")
	errTableIndexNaN   = tableError("table index is NaN")
	errNextKeyNotFound = tableError("invalid key to 'next'")
)

// tableError is a minimal sentinel error type; the VM (internal/vm)
// wraps these with source/line attribution via internal/lerr before they
// ever reach a caller, so object carries no dependency on the
// error-formatting package.
type tableError string

func (e tableError) Error() string { return string(e) }
