// Dispatch loop and call/return mechanics of §4.8: fetch opcode, switch,
// instruction-count runaway guard, and a CALL/RETURN pair adapted from a
// stack machine's push/pop-around-each-opcode style to a register
// machine's: operands read and write `R(base+n)` directly, and
// CALL/RETURN move a contiguous result window rather than pushing or
// popping single values.
package vm

import (
	"github.com/dustin/go-humanize"

	"lulu/internal/code"
	"lulu/internal/object"
)

const maxInstructions = 100_000_000 // runaway-execution guard, §5 "no suspension points"

// Call invokes closure with args and runs it to completion, returning
// every result it produces. A native closure is invoked synchronously
// in the calling goroutine per §5; a Lua closure gets a fresh root frame
// and the dispatch loop runs until that frame (and everything it calls)
// has returned.
func (vm *VM) Call(closure *object.Closure, args []object.Value) ([]object.Value, error) {
	if closure.IsNative() {
		return closure.Native(args)
	}
	stopAt := vm.frameTop
	if err := vm.pushLuaFrame(closure, args, varargAll, 0, true); err != nil {
		return nil, err
	}
	return vm.run(stopAt)
}

// pushLuaFrame sets up closure's register window at the current stack
// top, copying args into its declared parameters (extras are dropped;
// missing ones become Nil, matching §4.5's adjustment rule for fixed
// parameter lists). resultBase/nRets describe where and how many results
// a nested CALL wants back; isRoot marks a frame pushed directly by
// Call/PCall rather than by a CALL instruction.
func (vm *VM) pushLuaFrame(closure *object.Closure, args []object.Value, nRets, resultBase int, isRoot bool) error {
	if vm.frameTop >= maxFrames {
		return vm.runtimeErrorNoFrame("stack overflow (%s frames)", humanize.Comma(int64(maxFrames)))
	}
	chunk := closure.Chunk
	base := vm.top
	if err := vm.ensure(base + chunk.StackUsed); err != nil {
		return err
	}
	for i := 0; i < chunk.NumParams; i++ {
		if i < len(args) {
			vm.stack[base+i] = args[i]
		} else {
			vm.stack[base+i] = object.Nil()
		}
	}
	vm.top = base + chunk.StackUsed
	vm.frames = append(vm.frames, CallFrame{
		closure:    closure,
		base:       base,
		ip:         0,
		nRets:      nRets,
		resultBase: resultBase,
		isRoot:     isRoot,
	})
	vm.frameTop++
	return nil
}

// run executes instructions until the frame stack depth returns to
// stopAt, returning the results of whichever frame was at stopAt+1.
func (vm *VM) run(stopAt int) ([]object.Value, error) {
	for vm.frameTop > stopAt {
		if err := vm.step(); err != nil {
			return nil, err
		}
	}
	return vm.lastResults, nil
}

// step decodes and executes exactly one instruction of the current
// frame, or performs a CALL/RETURN's frame push/pop.
func (vm *VM) step() error {
	vm.instrCount++
	if vm.instrCount > maxInstructions {
		return vm.runtimeError("execution limit exceeded")
	}

	frame := vm.currentFrame()
	chunk := frame.closure.Chunk
	if frame.ip >= len(chunk.Code) {
		return vm.runtimeError("program counter out of bounds")
	}
	instr := chunk.Code[frame.ip]
	frame.ip++

	switch instr.OpCode() {
	case code.CONSTANT:
		*vm.reg(instr.A()) = chunk.Constants[instr.Bx()]
	case code.LOAD_NIL:
		for r := instr.A(); r <= int(instr.B()); r++ {
			*vm.reg(r) = object.Nil()
		}
	case code.LOAD_BOOL:
		*vm.reg(instr.A()) = object.Boolean(instr.B() != 0)
		if instr.C() != 0 {
			frame.ip++
		}
	case code.GET_GLOBAL:
		key := chunk.Constants[instr.Bx()]
		*vm.reg(instr.A()) = vm.globals.Get(key)
	case code.SET_GLOBAL:
		key := chunk.Constants[instr.Bx()]
		if err := vm.globals.Set(key, *vm.reg(instr.A())); err != nil {
			return vm.runtimeError(err.Error())
		}
	case code.NEW_TABLE:
		*vm.reg(instr.A()) = object.TableValue(vm.NewTable())
	case code.GET_TABLE:
		tv := *vm.reg(int(instr.B()))
		if !tv.IsTable() {
			return vm.typeErrorAt("index", int(instr.B()), tv)
		}
		*vm.reg(instr.A()) = tv.AsTable().Get(vm.rk(instr.C(), chunk))
	case code.SET_TABLE:
		tv := *vm.reg(instr.A())
		if !tv.IsTable() {
			return vm.typeErrorAt("index", instr.A(), tv)
		}
		key := vm.rk(instr.B(), chunk)
		val := vm.rk(instr.C(), chunk)
		if err := tv.AsTable().Set(key, val); err != nil {
			return vm.runtimeError(err.Error())
		}
	case code.MOVE:
		*vm.reg(instr.A()) = *vm.reg(int(instr.B()))
	case code.ADD, code.SUB, code.MUL, code.DIV, code.MOD, code.POW:
		if err := vm.arith(instr, chunk); err != nil {
			return err
		}
	case code.UNM:
		v := *vm.reg(int(instr.B()))
		if !v.IsNumber() {
			return vm.typeErrorAt("perform arithmetic on", int(instr.B()), v)
		}
		*vm.reg(instr.A()) = object.Number(-v.AsNumber())
	case code.NOT:
		v := *vm.reg(int(instr.B()))
		*vm.reg(instr.A()) = object.Boolean(!v.Truthy())
	case code.LEN:
		v := *vm.reg(int(instr.B()))
		switch {
		case v.IsString():
			*vm.reg(instr.A()) = object.Number(float64(v.AsString().Len()))
		case v.IsTable():
			*vm.reg(instr.A()) = object.Number(float64(v.AsTable().Length()))
		default:
			return vm.typeErrorAt("get length of", int(instr.B()), v)
		}
	case code.CONCAT:
		if err := vm.concat(instr); err != nil {
			return err
		}
	case code.EQ, code.LT, code.LEQ:
		if err := vm.compareAndSkip(instr, chunk, frame); err != nil {
			return err
		}
	case code.TEST:
		v := *vm.reg(instr.A())
		want := instr.C() != 0
		if v.Truthy() != want {
			frame.ip++
		}
	case code.TEST_SET:
		v := *vm.reg(int(instr.B()))
		want := instr.C() != 0
		if v.Truthy() == want {
			*vm.reg(instr.A()) = v
		} else {
			frame.ip++
		}
	case code.JUMP:
		frame.ip += instr.SBx()
	case code.CALL:
		if err := vm.execCall(instr, frame); err != nil {
			return err
		}
	case code.RETURN:
		if err := vm.execReturn(instr, frame); err != nil {
			return err
		}
	case code.FOR_PREP:
		if err := vm.forPrep(instr); err != nil {
			return err
		}
	case code.FOR_LOOP:
		vm.forLoop(instr)
	default:
		return vm.runtimeError("bad opcode")
	}
	return nil
}
