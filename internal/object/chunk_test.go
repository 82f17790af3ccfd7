package object

import (
	"testing"

	"lulu/internal/code"
)

func TestChunkAddConstantDedup(t *testing.T) {
	c := NewChunk("test")
	i1 := c.AddConstant(Number(1))
	i2 := c.AddConstant(Number(1))
	if i1 != i2 {
		t.Errorf("equal constants must dedup: %d != %d", i1, i2)
	}
	i3 := c.AddConstant(Number(2))
	if i3 == i1 {
		t.Error("distinct constants must get distinct slots")
	}
	if len(c.Constants) != 2 {
		t.Errorf("Constants has %d entries, want 2", len(c.Constants))
	}
}

func TestChunkEmitAndLineTable(t *testing.T) {
	c := NewChunk("test")
	pc0 := c.Emit(code.CreateABC(code.MOVE, 0, 1, 0), 1)
	pc1 := c.Emit(code.CreateABC(code.MOVE, 0, 1, 0), 1)
	pc2 := c.Emit(code.CreateABC(code.MOVE, 0, 1, 0), 2)

	if pc0 != 0 || pc1 != 1 || pc2 != 2 {
		t.Fatalf("Emit returned pcs %d,%d,%d, want 0,1,2", pc0, pc1, pc2)
	}
	if c.LineForPC(0) != 1 || c.LineForPC(1) != 1 {
		t.Errorf("pc 0,1 must map to line 1")
	}
	if c.LineForPC(2) != 2 {
		t.Errorf("pc 2 must map to line 2")
	}
	// Beyond the last emitted instruction, LineForPC falls back to the
	// last known line rather than panicking.
	if c.LineForPC(50) != 2 {
		t.Errorf("LineForPC past the end = %d, want 2", c.LineForPC(50))
	}
}

func TestChunkSetInstruction(t *testing.T) {
	c := NewChunk("test")
	pc := c.Emit(code.CreateABC(code.JUMP, 0, 0, 0), 1)
	patched := code.CreateAsBx(code.JUMP, 0, 5)
	c.SetInstruction(pc, patched)
	if c.Code[pc].SBx() != 5 {
		t.Errorf("SetInstruction did not take effect: SBx() = %d, want 5", c.Code[pc].SBx())
	}
}

func TestChunkAddLocal(t *testing.T) {
	c := NewChunk("test")
	idx := c.AddLocal("x", 0, 2)
	if idx != 0 {
		t.Fatalf("first local's index = %d, want 0", idx)
	}
	if c.Locals[0].Name != "x" || c.Locals[0].Reg != 2 {
		t.Errorf("Locals[0] = %+v, want Name=x Reg=2", c.Locals[0])
	}
	if c.Locals[0].EndPC != -1 {
		t.Errorf("a freshly declared local's EndPC must be -1 (still live), got %d", c.Locals[0].EndPC)
	}
}
