package code

import "testing"

func TestCreateABCRoundTrip(t *testing.T) {
	i := CreateABC(ADD, 3, 260, 5)
	if i.OpCode() != ADD {
		t.Errorf("OpCode() = %v, want ADD", i.OpCode())
	}
	if i.A() != 3 {
		t.Errorf("A() = %d, want 3", i.A())
	}
	if i.B() != 260 {
		t.Errorf("B() = %d, want 260", i.B())
	}
	if i.C() != 5 {
		t.Errorf("C() = %d, want 5", i.C())
	}
}

func TestCreateABxRoundTrip(t *testing.T) {
	i := CreateABx(CONSTANT, 7, 123456)
	if i.OpCode() != CONSTANT {
		t.Errorf("OpCode() = %v, want CONSTANT", i.OpCode())
	}
	if i.A() != 7 {
		t.Errorf("A() = %d, want 7", i.A())
	}
	if i.Bx() != 123456 {
		t.Errorf("Bx() = %d, want 123456", i.Bx())
	}
}

func TestCreateAsBxRoundTripNegative(t *testing.T) {
	i := CreateAsBx(JUMP, 0, -42)
	if i.SBx() != -42 {
		t.Errorf("SBx() = %d, want -42", i.SBx())
	}
	i2 := CreateAsBx(JUMP, 0, MaxSBx)
	if i2.SBx() != MaxSBx {
		t.Errorf("SBx() at MaxSBx = %d, want %d", i2.SBx(), MaxSBx)
	}
}

func TestSetAPreservesOtherFields(t *testing.T) {
	i := CreateABC(MOVE, 1, 2, 3)
	i = i.SetA(9)
	if i.A() != 9 {
		t.Errorf("A() after SetA = %d, want 9", i.A())
	}
	if i.B() != 2 || i.C() != 3 || i.OpCode() != MOVE {
		t.Errorf("SetA must not disturb B/C/op: %+v", i)
	}
}

func TestSetSBxPreservesOtherFields(t *testing.T) {
	i := CreateAsBx(JUMP, 4, 10)
	i = i.SetSBx(-10)
	if i.SBx() != -10 {
		t.Errorf("SBx() after SetSBx = %d, want -10", i.SBx())
	}
	if i.A() != 4 || i.OpCode() != JUMP {
		t.Errorf("SetSBx must not disturb A/op: %+v", i)
	}
}

func TestSetCPreservesOtherFields(t *testing.T) {
	i := CreateABC(TEST_SET, 1, 2, 1)
	i = i.SetC(0)
	if i.C() != 0 {
		t.Errorf("C() after SetC = %d, want 0", i.C())
	}
	if i.A() != 1 || i.B() != 2 {
		t.Errorf("SetC must not disturb A/B: %+v", i)
	}
}

func TestRKEncoding(t *testing.T) {
	reg := MakeR(5)
	if IsK(reg) {
		t.Error("a register operand must not report IsK")
	}
	k := MakeK(12)
	if !IsK(k) {
		t.Error("a constant operand must report IsK")
	}
	if ConstIndex(k) != 12 {
		t.Errorf("ConstIndex(MakeK(12)) = %d, want 12", ConstIndex(k))
	}
}

func TestOpCodeIsTest(t *testing.T) {
	for _, op := range []OpCode{EQ, LT, LEQ, TEST, TEST_SET} {
		if !op.IsTest() {
			t.Errorf("%v.IsTest() = false, want true", op)
		}
	}
	for _, op := range []OpCode{ADD, MOVE, CALL, JUMP} {
		if op.IsTest() {
			t.Errorf("%v.IsTest() = true, want false", op)
		}
	}
}

func TestOpCodeString(t *testing.T) {
	if ADD.String() != "ADD" {
		t.Errorf("ADD.String() = %q, want ADD", ADD.String())
	}
	if OpCode(255).String() != "UNKNOWN" {
		t.Errorf("out-of-range OpCode.String() = %q, want UNKNOWN", OpCode(255).String())
	}
}
