// Opcode handlers too large to inline in step()'s switch: arithmetic,
// comparison (§4.3's "comparison produces a jump" pair with the JUMP
// that always immediately follows it), concatenation, the CALL/RETURN
// frame protocol, and the numeric FOR_PREP/FOR_LOOP pair (§4.7).
//
// Grounded on the teacher's internal/vm/vm.go arithmetic/comparison op handlers and
// its OpCall/OpReturn pair, generalized the same way call.go is: register
// windows instead of stack push/pop, and RK operand resolution wherever
// the compiler emits a constant-or-register operand.
package vm

import (
	"fmt"
	"math"
	"strings"

	"lulu/internal/code"
	"lulu/internal/lerr"
	"lulu/internal/object"
)

func luaMod(a, b float64) float64 { return a - math.Floor(a/b)*b }

// arith handles ADD/SUB/MUL/DIV/MOD/POW A B C, where B and C are RK
// operands (§4.3 "RK encoding") and A is a plain destination register.
func (vm *VM) arith(instr code.Instruction, chunk *object.Chunk) error {
	bv := vm.rk(instr.B(), chunk)
	cv := vm.rk(instr.C(), chunk)
	if !bv.IsNumber() {
		return vm.rkTypeError("perform arithmetic on", instr.B(), chunk, bv)
	}
	if !cv.IsNumber() {
		return vm.rkTypeError("perform arithmetic on", instr.C(), chunk, cv)
	}
	b, c := bv.AsNumber(), cv.AsNumber()
	var result float64
	switch instr.OpCode() {
	case code.ADD:
		result = b + c
	case code.SUB:
		result = b - c
	case code.MUL:
		result = b * c
	case code.DIV:
		result = b / c
	case code.MOD:
		result = luaMod(b, c)
	case code.POW:
		result = math.Pow(b, c)
	}
	*vm.reg(instr.A()) = object.Number(result)
	return nil
}

// rkTypeError reports a type error for an RK operand: a constant operand
// has no source register to attribute, so it falls back to the
// scope-less phrasing; a register operand gets the full §4.9 attribution.
func (vm *VM) rkTypeError(op string, operand uint16, chunk *object.Chunk, v object.Value) error {
	if code.IsK(operand) {
		return vm.runtimeError(fmt.Sprintf("attempt to %s a %s value", op, v.TypeName()))
	}
	return vm.typeErrorAt(op, int(operand), v)
}

// concat handles CONCAT A B C: A is a plain destination register, B and
// C the inclusive bounds of a contiguous run of plain (non-RK) source
// registers (§4.5's "consecutive CONCAT of a rising run" peephole relies
// on this range being contiguous after discharge).
func (vm *VM) concat(instr code.Instruction) error {
	lo, hi := int(instr.B()), int(instr.C())
	parts := make([]string, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		v := *vm.reg(r)
		switch {
		case v.IsString():
			parts = append(parts, v.AsString().Text())
		case v.IsNumber():
			parts = append(parts, v.String())
		default:
			return vm.typeErrorAt("concatenate", r, v)
		}
	}
	result := strings.Join(parts, "")
	*vm.reg(instr.A()) = object.StringValue(vm.InternString(result))
	return nil
}

// compareAndSkip handles EQ/LT/LEQ A B C, which never write a register:
// A is the sense to test for (0 or 1), B and C are RK operands, and the
// compiler always follows this instruction with an unconditional JUMP
// (§4.6 emitCompare). When the comparison's truth value disagrees with
// A, the following JUMP is skipped; otherwise it executes, taking the
// "true" branch the compiler wired it to.
func (vm *VM) compareAndSkip(instr code.Instruction, chunk *object.Chunk, frame *CallFrame) error {
	bv := vm.rk(instr.B(), chunk)
	cv := vm.rk(instr.C(), chunk)
	result, err := vm.compareValues(instr.OpCode(), bv, cv)
	if err != nil {
		return err
	}
	want := instr.A() != 0
	if result != want {
		frame.ip++
	}
	return nil
}

func (vm *VM) compareValues(op code.OpCode, b, c object.Value) (bool, error) {
	switch op {
	case code.EQ:
		return b.Equal(c), nil
	case code.LT, code.LEQ:
		switch {
		case b.IsNumber() && c.IsNumber():
			if op == code.LT {
				return b.AsNumber() < c.AsNumber(), nil
			}
			return b.AsNumber() <= c.AsNumber(), nil
		case b.IsString() && c.IsString():
			bs, cs := b.AsString().Text(), c.AsString().Text()
			if op == code.LT {
				return bs < cs, nil
			}
			return bs <= cs, nil
		default:
			return false, vm.runtimeError(fmt.Sprintf("attempt to compare %s with %s", b.TypeName(), c.TypeName()))
		}
	}
	return false, vm.runtimeError("bad comparison opcode")
}

// execCall handles CALL A B C (§4.8): the function and its arguments
// occupy a contiguous run of registers starting at A, B encodes the
// argument count (0 meaning "through top", for a trailing vararg call
// argument), and C encodes the caller's wanted result count the same way
// (0 meaning "keep all").
func (vm *VM) execCall(instr code.Instruction, frame *CallFrame) error {
	fnAbs := frame.base + instr.A()
	fnVal := vm.stack[fnAbs]
	if fnVal.Kind() != object.KFunction {
		return vm.typeErrorAt("call", instr.A(), fnVal)
	}
	closure := fnVal.AsClosure()

	argStart := fnAbs + 1
	b := int(instr.B())
	argCount := b - 1
	if b == 0 {
		argCount = vm.top - argStart
	}
	args := append([]object.Value(nil), vm.stack[argStart:argStart+argCount]...)

	c := int(instr.C())
	nRetsWanted := c - 1
	if c == 0 {
		nRetsWanted = varargAll
	}

	if closure.IsNative() {
		results, err := closure.Native(args)
		if err != nil {
			return vm.runtimeError(err.Error())
		}
		return vm.writeResults(frame, fnAbs, nRetsWanted, results)
	}
	return vm.pushLuaFrame(closure, args, nRetsWanted, fnAbs, false)
}

// writeResults copies results into dest within the register window of
// frame (the frame that is current once the call has finished, i.e. the
// caller), honoring nWanted the way §4.5's adjustValues does: padded
// with Nil or truncated for a fixed count, passed through verbatim (and
// extending vm.top, for "through top" chaining into an enclosing vararg
// CALL/RETURN) when nWanted is varargAll.
func (vm *VM) writeResults(frame *CallFrame, dest, nWanted int, results []object.Value) error {
	if nWanted == varargAll {
		if err := vm.ensure(dest + len(results)); err != nil {
			return err
		}
		copy(vm.stack[dest:], results)
		vm.top = dest + len(results)
		return nil
	}
	chunk := frame.closure.Chunk
	need := frame.base + chunk.StackUsed
	if dest+nWanted > need {
		need = dest + nWanted
	}
	if err := vm.ensure(need); err != nil {
		return err
	}
	for i := 0; i < nWanted; i++ {
		if i < len(results) {
			vm.stack[dest+i] = results[i]
		} else {
			vm.stack[dest+i] = object.Nil()
		}
	}
	vm.top = frame.base + chunk.StackUsed
	return nil
}

// execReturn handles RETURN A B: results span R(A)..vm.top-1 when B==0
// ("through top", for a trailing vararg return expression), else the
// fixed range R(A)..R(A+B-2) (B = count+1, mirroring CALL's convention).
func (vm *VM) execReturn(instr code.Instruction, frame *CallFrame) error {
	start := frame.base + instr.A()
	b := int(instr.B())
	n := b - 1
	if b == 0 {
		n = vm.top - start
		if n < 0 {
			n = 0
		}
	}
	results := append([]object.Value(nil), vm.stack[start:start+n]...)
	return vm.popFrame(results)
}

// popFrame discards the top frame and either hands results to the Go
// caller of Call/PCall (a root frame) or writes them back into the
// resuming frame's register window (a frame CALL pushed).
func (vm *VM) popFrame(results []object.Value) error {
	popped := vm.frames[vm.frameTop-1]
	vm.frameTop--
	vm.frames = vm.frames[:vm.frameTop]

	if popped.isRoot {
		vm.lastResults = results
		vm.top = popped.base
		return nil
	}
	caller := vm.currentFrame()
	return vm.writeResults(caller, popped.resultBase, popped.nRets, results)
}

// forPrep handles FOR_PREP A sBx (§4.7): biases the index back by one
// step and jumps to the paired FOR_LOOP, which performs the first real
// check before ever running the body.
func (vm *VM) forPrep(instr code.Instruction) error {
	a := instr.A()
	idxV, limV, stepV := *vm.reg(a), *vm.reg(a+1), *vm.reg(a+2)
	if !idxV.IsNumber() {
		return vm.runtimeError("'for' initial value must be a number")
	}
	if !limV.IsNumber() {
		return vm.runtimeError("'for' limit must be a number")
	}
	if !stepV.IsNumber() {
		return vm.runtimeError("'for' step must be a number")
	}
	*vm.reg(a) = object.Number(idxV.AsNumber() - stepV.AsNumber())
	vm.currentFrame().ip += instr.SBx()
	return nil
}

// forLoop handles FOR_LOOP A sBx (§4.7): advances the index by the step,
// and if still within range (direction-aware, since step may be
// negative), publishes it to the visible loop variable at A+3 and jumps
// back into the body.
func (vm *VM) forLoop(instr code.Instruction) {
	a := instr.A()
	step := vm.reg(a + 2).AsNumber()
	idx := vm.reg(a).AsNumber() + step
	limit := vm.reg(a + 1).AsNumber()
	inRange := idx <= limit
	if step < 0 {
		inRange = idx >= limit
	}
	if inRange {
		*vm.reg(a) = object.Number(idx)
		*vm.reg(a + 3) = object.Number(idx)
		vm.currentFrame().ip += instr.SBx()
	}
}

// runtimeErrorNoFrame is runtimeError's counterpart for failures that
// can occur with no frame yet pushed (stack overflow while pushing the
// very first frame of a top-level Call).
func (vm *VM) runtimeErrorNoFrame(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if vm.frameTop == 0 {
		return lerr.NewRuntime("", 0, msg)
	}
	return vm.runtimeError(msg)
}
