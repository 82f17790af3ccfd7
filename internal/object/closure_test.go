package object

import "testing"

func TestNewLuaClosure(t *testing.T) {
	chunk := NewChunk("script.lua")
	chunk.NumParams = 2
	c := NewLuaClosure(chunk)
	if c.IsNative() {
		t.Error("a Lua closure must not report IsNative")
	}
	if c.Arity() != 2 {
		t.Errorf("Arity() = %d, want 2", c.Arity())
	}
	if c.Name != "script.lua" {
		t.Errorf("Name = %q, want script.lua", c.Name)
	}
}

func TestNewNativeClosure(t *testing.T) {
	fn := func(args []Value) ([]Value, error) { return args, nil }
	c := NewNativeClosure("print", fn)
	if !c.IsNative() {
		t.Error("a native closure must report IsNative")
	}
	if c.Arity() != 0 {
		t.Errorf("a native closure's Arity() = %d, want 0 (no declared chunk)", c.Arity())
	}
	results, err := c.Native([]Value{Number(1)})
	if err != nil || len(results) != 1 || results[0].AsNumber() != 1 {
		t.Errorf("Native passthrough failed: %v, %v", results, err)
	}
}
