package object

import (
	"testing"

	"github.com/kr/pretty"
)

func TestTableArrayPart(t *testing.T) {
	tbl := NewTable()
	for i := 1; i <= 4; i++ {
		if err := tbl.Set(Number(float64(i)), Number(float64(i*10))); err != nil {
			t.Fatalf("Set(%d): %v", i, err)
		}
	}
	if tbl.ArrayLen() != 4 {
		t.Fatalf("ArrayLen() = %d, want 4", tbl.ArrayLen())
	}
	if got := tbl.Get(Number(3)); got.AsNumber() != 30 {
		t.Errorf("Get(3) = %v, want 30", got)
	}
	if tbl.Length() != 4 {
		t.Errorf("Length() = %d, want 4", tbl.Length())
	}
}

func TestTableHashPartAndMigration(t *testing.T) {
	tbl := NewTable()
	interned := NewInternTable()
	key := StringValue(interned.InternString("name"))
	if err := tbl.Set(key, Number(42)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := tbl.Get(key); got.AsNumber() != 42 {
		t.Errorf("Get(name) = %v, want 42", got)
	}

	// Set index 2 into the hash part before 1 exists, then filling index 1
	// must migrate the run of consecutive integer keys into the array.
	if err := tbl.Set(Number(2), Number(200)); err != nil {
		t.Fatalf("Set(2): %v", err)
	}
	if tbl.ArrayLen() != 0 {
		t.Fatalf("index 2 with no index 1 yet must stay in the hash part, ArrayLen() = %d", tbl.ArrayLen())
	}
	if err := tbl.Set(Number(1), Number(100)); err != nil {
		t.Fatalf("Set(1): %v", err)
	}
	if tbl.ArrayLen() != 2 {
		t.Fatalf("setting index 1 must migrate index 2 too, ArrayLen() = %d", tbl.ArrayLen())
	}
	if got := tbl.Get(Number(2)); got.AsNumber() != 200 {
		t.Errorf("Get(2) after migration = %v, want 200", got)
	}
}

func TestTableUnsetLeavesTombstone(t *testing.T) {
	tbl := NewTable()
	interned := NewInternTable()
	k1 := StringValue(interned.InternString("a"))
	k2 := StringValue(interned.InternString("b"))
	tbl.Set(k1, Number(1))
	tbl.Set(k2, Number(2))
	tbl.Unset(k1)
	if !tbl.Get(k1).IsNil() {
		t.Error("unset key must read back as nil")
	}
	if got := tbl.Get(k2); got.AsNumber() != 2 {
		t.Errorf("unrelated key must survive a neighbor's tombstone, got %v", got)
	}
}

func TestTableSetNilValueUnsets(t *testing.T) {
	tbl := NewTable()
	interned := NewInternTable()
	k := StringValue(interned.InternString("k"))
	tbl.Set(k, Number(1))
	if err := tbl.Set(k, Nil()); err != nil {
		t.Fatalf("Set(k, nil): %v", err)
	}
	if !tbl.Get(k).IsNil() {
		t.Error("assigning nil must behave as unset")
	}
}

func TestTableRejectsNilAndNaNKeys(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Set(Nil(), Number(1)); err == nil {
		t.Error("Set(nil, ...) must return an error")
	}
	nan := Number(nanValue())
	if err := tbl.Set(nan, Number(1)); err == nil {
		t.Error("Set(NaN, ...) must return an error")
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestTableLengthWithHoleBinarySearch(t *testing.T) {
	tbl := NewTable()
	for i := 1; i <= 8; i++ {
		tbl.Set(Number(float64(i)), Number(float64(i)))
	}
	tbl.Unset(Number(8)) // leaves a nil border at the array's tail
	n := tbl.Length()
	if n != 7 {
		t.Errorf("Length() with a hole at the tail = %d, want a border at 7", n)
	}
}

func TestTableNextWalksHashSegment(t *testing.T) {
	tbl := NewTable()
	interned := NewInternTable()
	keys := []Value{
		StringValue(interned.InternString("a")),
		StringValue(interned.InternString("b")),
		StringValue(interned.InternString("c")),
	}
	for i, k := range keys {
		tbl.Set(k, Number(float64(i)))
	}

	seen := map[string]bool{}
	cur := Nil()
	for {
		k, v, ok, err := tbl.Next(cur)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		seen[k.AsString().Text()] = true
		_ = v
		cur = k
	}
	if len(seen) != 3 {
		t.Errorf("Next walk visited %d keys, want 3: %v", len(seen), seen)
	}
}

func TestTableNextInvalidKey(t *testing.T) {
	tbl := NewTable()
	interned := NewInternTable()
	_, _, _, err := tbl.Next(StringValue(interned.InternString("never set")))
	if err == nil {
		t.Error("Next with an unknown previous key must error")
	}
}

// TestTableArrayContentsMatch uses pretty.Diff for a readable failure
// message on a multi-element mismatch, rather than a bare
// reflect.DeepEqual/%v dump of the whole array.
func TestTableArrayContentsMatch(t *testing.T) {
	tbl := NewTable()
	want := []float64{10, 20, 30}
	for i, v := range want {
		tbl.Set(Number(float64(i+1)), Number(v))
	}
	got := make([]float64, tbl.ArrayLen())
	for i := range got {
		got[i] = tbl.Get(Number(float64(i + 1))).AsNumber()
	}
	if diff := pretty.Diff(want, got); len(diff) > 0 {
		t.Errorf("array contents differ: %v", diff)
	}
}
