// Host-facing stack-manipulation API of §6. Indices are 1-based absolute
// from the base of the current frame's window when positive, relative
// to the top when negative, matching real Lua's `lua_State` index
// convention; there are no frames pushed yet before the first `Load`, so
// "the current frame's window" is simply `[0, vm.top)` in that case.
package vm

import (
	"lulu/internal/compiler"
	"lulu/internal/object"
)

func (vm *VM) frameBase() int {
	if vm.frameTop == 0 {
		return 0
	}
	return vm.currentFrame().base
}

// absIndex resolves a 1-based (or negative, top-relative) index to an
// absolute stack slot.
func (vm *VM) absIndex(idx int) int {
	base := vm.frameBase()
	if idx > 0 {
		return base + idx - 1
	}
	return vm.top + idx
}

func (vm *VM) at(idx int) object.Value {
	i := vm.absIndex(idx)
	if i < 0 || i >= vm.top {
		return object.Nil()
	}
	return vm.stack[i]
}

func (vm *VM) pushValue(v object.Value) error {
	if err := vm.ensure(vm.top + 1); err != nil {
		return err
	}
	vm.stack[vm.top] = v
	vm.top++
	return nil
}

func (vm *VM) PushNil() error           { return vm.pushValue(object.Nil()) }
func (vm *VM) PushBoolean(b bool) error { return vm.pushValue(object.Boolean(b)) }
func (vm *VM) PushNumber(n float64) error { return vm.pushValue(object.Number(n)) }
func (vm *VM) PushString(s string) error {
	return vm.pushValue(object.StringValue(vm.InternString(s)))
}
func (vm *VM) PushValue(v object.Value) error { return vm.pushValue(v) }

func (vm *VM) PushCFunction(name string, fn object.NativeFunc) error {
	closure := object.NewNativeClosure(name, fn)
	vm.track(closure)
	return vm.pushValue(object.ClosureValue(closure))
}

// Pop shrinks the window by n, clamped to the base of the current frame.
func (vm *VM) Pop(n int) {
	base := vm.frameBase()
	vm.top -= n
	if vm.top < base {
		vm.top = base
	}
}

// GetTop reports the number of values in the current frame's window.
func (vm *VM) GetTop() int { return vm.top - vm.frameBase() }

// SetTop resizes the window to n values, padding with Nil when growing.
func (vm *VM) SetTop(n int) error {
	base := vm.frameBase()
	newTop := base + n
	if newTop > vm.top {
		if err := vm.ensure(newTop); err != nil {
			return err
		}
		for i := vm.top; i < newTop; i++ {
			vm.stack[i] = object.Nil()
		}
	}
	vm.top = newTop
	return nil
}

func (vm *VM) Type(idx int) object.Kind  { return vm.at(idx).Kind() }
func (vm *VM) TypeName(idx int) string   { return vm.at(idx).TypeName() }
func (vm *VM) IsNil(idx int) bool        { return vm.at(idx).IsNil() }
func (vm *VM) IsNumber(idx int) bool     { return vm.at(idx).IsNumber() }
func (vm *VM) IsString(idx int) bool     { return vm.at(idx).IsString() }
func (vm *VM) IsTable(idx int) bool      { return vm.at(idx).IsTable() }
func (vm *VM) IsFunction(idx int) bool   { return vm.at(idx).IsFunction() }

// ToNumber returns the value at idx as a number, or 0 if it is not one
// (§6: "to_number returns 0 on failure").
func (vm *VM) ToNumber(idx int) float64 {
	v := vm.at(idx)
	if v.IsNumber() {
		return v.AsNumber()
	}
	return 0
}

// ToString returns the value at idx's text, or "" if it is not a string
// (§6: "to_string returns null for non-strings").
func (vm *VM) ToString(idx int) (string, bool) {
	v := vm.at(idx)
	if !v.IsString() {
		return "", false
	}
	return v.AsString().Text(), true
}

func (vm *VM) ToBoolean(idx int) bool { return vm.at(idx).Truthy() }

// GetGlobal pushes globals[name].
func (vm *VM) GetGlobal(name string) error {
	key := object.StringValue(vm.InternString(name))
	return vm.pushValue(vm.globals.Get(key))
}

// SetGlobal pops the top value and assigns globals[name] = value.
func (vm *VM) SetGlobal(name string) error {
	v := vm.at(-1)
	key := object.StringValue(vm.InternString(name))
	if err := vm.globals.Set(key, v); err != nil {
		return vm.runtimeErrorNoFrame("%s", err.Error())
	}
	vm.Pop(1)
	return nil
}

// Concat replaces the top n values with their string concatenation
// (§6 concat(n)), using the same coercion rules as the CONCAT opcode.
func (vm *VM) Concat(n int) error {
	if n <= 0 {
		return vm.PushString("")
	}
	start := vm.top - n
	var b []byte
	for i := start; i < vm.top; i++ {
		v := vm.stack[i]
		switch {
		case v.IsString():
			b = append(b, v.AsString().Bytes()...)
		case v.IsNumber():
			b = append(b, v.String()...)
		default:
			return vm.runtimeErrorNoFrame("attempt to concatenate a %s value", v.TypeName())
		}
	}
	vm.top = start
	return vm.PushString(string(b))
}

// Load compiles source read from reader (§6 load(source_name, reader,
// user)) and pushes the resulting function on success; it does not run
// it. The returned error, if any, is a SYNTAX lerr.Error.
func (vm *VM) Load(sourceName string, reader Reader, user any) error {
	src := readAll(reader, user)
	chunk, err := compiler.Compile(string(src), sourceName, vm.strings)
	if err != nil {
		return err
	}
	closure := object.NewLuaClosure(chunk)
	vm.track(closure)
	return vm.pushValue(object.ClosureValue(closure))
}

// CallTop invokes the function at `top-nArgs-1` (§6 call(n_args,
// n_rets)): the callee and its arguments are popped, and exactly nRets
// results, padded with nil (VarargAll keeps them all), are pushed in
// their place. Unlike
// PCallTop, a runtime error is not recovered; it propagates to the Go
// caller.
func (vm *VM) CallTop(nArgs, nRets int) error {
	fnIdx := vm.top - nArgs - 1
	fnVal := vm.stack[fnIdx]
	if fnVal.Kind() != object.KFunction {
		return vm.runtimeErrorNoFrame("attempt to call a %s value", fnVal.TypeName())
	}
	args := append([]object.Value(nil), vm.stack[fnIdx+1:vm.top]...)
	results, err := vm.Call(fnVal.AsClosure(), args)
	if err != nil {
		return err
	}
	vm.top = fnIdx
	return vm.pushResults(results, nRets)
}

// PCallTop is CallTop's protected counterpart (§6 pcall(n_args,
// n_rets)): a thrown error is caught, the window restored to its
// pre-call depth, and the error message pushed as the sole result.
func (vm *VM) PCallTop(nArgs, nRets int) error {
	fnIdx := vm.top - nArgs - 1
	fnVal := vm.stack[fnIdx]
	if fnVal.Kind() != object.KFunction {
		vm.top = fnIdx
		return vm.PushString("attempt to call a " + fnVal.TypeName() + " value")
	}
	args := append([]object.Value(nil), vm.stack[fnIdx+1:vm.top]...)
	results, err := vm.PCall(fnVal.AsClosure(), args)
	vm.top = fnIdx
	if err != nil {
		return vm.PushString(err.Error())
	}
	return vm.pushResults(results, nRets)
}

const VarargAll = varargAll

func (vm *VM) pushResults(results []object.Value, nRets int) error {
	if nRets == VarargAll {
		for _, r := range results {
			if err := vm.pushValue(r); err != nil {
				return err
			}
		}
		return nil
	}
	for i := 0; i < nRets; i++ {
		if i < len(results) {
			if err := vm.pushValue(results[i]); err != nil {
				return err
			}
		} else if err := vm.PushNil(); err != nil {
			return err
		}
	}
	return nil
}
