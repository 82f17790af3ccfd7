package object

import "testing"

func TestValueTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nil(), false},
		{Boolean(false), false},
		{Boolean(true), true},
		{Number(0), true},
		{Number(-1), true},
		{StringValue(&String{bytes: []byte("")}), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("%v.Truthy() = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestValueEqualPrimitives(t *testing.T) {
	if !Number(1).Equal(Number(1)) {
		t.Error("1 should equal 1")
	}
	if Number(1).Equal(Number(2)) {
		t.Error("1 should not equal 2")
	}
	if !Nil().Equal(Nil()) {
		t.Error("nil should equal nil")
	}
	if Number(0).Equal(Boolean(false)) {
		t.Error("0 and false must not be equal (different kinds)")
	}
}

func TestValueEqualStringsByInterning(t *testing.T) {
	interned := NewInternTable()
	a := StringValue(interned.InternString("hi"))
	b := StringValue(interned.InternString("hi"))
	if !a.Equal(b) {
		t.Error("two interns of the same text must be pointer-equal")
	}
}

func TestValueEqualTablesByIdentity(t *testing.T) {
	t1 := TableValue(NewTable())
	t2 := TableValue(NewTable())
	if t1.Equal(t2) {
		t.Error("distinct tables must not be equal")
	}
	if !t1.Equal(t1) {
		t.Error("a table must equal itself")
	}
}

func TestValueTypeName(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Nil(), "nil"},
		{Boolean(true), "boolean"},
		{Number(1), "number"},
		{TableValue(NewTable()), "table"},
	}
	for _, c := range cases {
		if got := c.v.TypeName(); got != c.want {
			t.Errorf("TypeName() = %q, want %q", got, c.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	cases := []struct {
		n    float64
		want string
	}{
		{3, "3"},
		{-3, "-3"},
		{3.5, "3.5"},
		{0, "0"},
	}
	for _, c := range cases {
		if got := Number(c.n).String(); got != c.want {
			t.Errorf("Number(%v).String() = %q, want %q", c.n, got, c.want)
		}
	}
}
