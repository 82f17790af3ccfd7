package object

// String is an immutable interned byte sequence (§3, §4.1). Exactly one
// String exists per distinct byte sequence for the lifetime of the VM;
// thereafter string equality is pointer equality (invariant 2, §8).
type String struct {
	bytes []byte
	hash  uint32
}

func (s *String) Text() string { return string(s.bytes) }
func (s *String) Bytes() []byte { return s.bytes }
func (s *String) Len() int { return len(s.bytes) }
func (s *String) Hash() uint32 { return s.hash }

const (
	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619
)

// fnv1a32 is the hash specified by §4.1: a 32-bit FNV-1a over the byte
// content. Hand-rolled rather than stdlib hash/fnv because the intern
// table and the hybrid table (§4.2) both need the bare uint32 value
// inline, without the io.Writer ceremony of the stdlib hash.Hash32
// interface.
func fnv1a32(b []byte) uint32 {
	h := fnvOffset32
	for _, c := range b {
		h ^= uint32(c)
		h *= fnvPrime32
	}
	return h
}

// internNode is one link in a bucket's collision chain.
type internNode struct {
	str  *String
	next *internNode
}

// InternTable deduplicates every string value seen by the lexer, the
// constant folder and the runtime's string-producing opcodes (§4.1).
// Open addressing is "chained": bucket index is hash&(cap-1), and each
// bucket holds a singly-linked collision chain walked on lookup.
type InternTable struct {
	buckets []*internNode
	count   int
}

const internInitialCap = 32

func NewInternTable() *InternTable {
	return &InternTable{buckets: make([]*internNode, internInitialCap)}
}

func (t *InternTable) Count() int { return t.count }

// Intern returns the canonical *String for bytes, allocating one on
// first sight. The returned pointer is stable for the table's lifetime.
func (t *InternTable) Intern(bytes []byte) *String {
	h := fnv1a32(bytes)
	idx := h & uint32(len(t.buckets)-1)
	for n := t.buckets[idx]; n != nil; n = n.next {
		if n.str.hash == h && string(n.str.bytes) == string(bytes) {
			return n.str
		}
	}

	s := &String{bytes: append([]byte(nil), bytes...), hash: h}
	t.insert(idx, s)
	t.count++
	if t.count*4 > len(t.buckets)*3 {
		t.grow()
	}
	return s
}

func (t *InternTable) InternString(s string) *String {
	return t.Intern([]byte(s))
}

func (t *InternTable) insert(idx uint32, s *String) {
	t.buckets[idx] = &internNode{str: s, next: t.buckets[idx]}
}

func (t *InternTable) grow() {
	old := t.buckets
	t.buckets = make([]*internNode, len(old)*2)
	for _, head := range old {
		for n := head; n != nil; {
			next := n.next
			idx := n.str.hash & uint32(len(t.buckets)-1)
			n.next = t.buckets[idx]
			t.buckets[idx] = n
			n = next
		}
	}
}
