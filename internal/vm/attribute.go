// Runtime error attribution of §4.9: given a register that held the
// wrong type at the instruction that faulted, walk the current
// function's instructions from the start up to (but not including) the
// faulting pc and remember which instruction last wrote that register.
// This is a "limited symbolic replay", not full data-flow analysis: it
// only recognizes the handful of instruction shapes whose destination
// is readily nameable (globals, table fields with a constant key,
// locals via the chunk's debug-local table) and falls back to the
// generic phrasing for everything else.
//
// Since the fused parser/codegen never builds an AST, the name behind a
// register is otherwise lost by the time the value is used; this replay
// recovers it.
package vm

import (
	"fmt"

	"lulu/internal/code"
	"lulu/internal/object"
)

// describeRegister reports the scope ("global"/"field"/"local") and
// name of whichever instruction before faultPC last wrote reg, within
// the given chunk. ok is false when no such instruction (or no nameable
// one) is found.
func describeRegister(chunk *object.Chunk, faultPC, reg int) (scope, name string, ok bool) {
	for pc := 0; pc < faultPC && pc < len(chunk.Code); pc++ {
		instr := chunk.Code[pc]
		switch instr.OpCode() {
		case code.GET_GLOBAL:
			if instr.A() == reg {
				scope, name, ok = "global", constantName(chunk, int(instr.Bx())), true
			}
		case code.GET_TABLE:
			if instr.A() == reg {
				if code.IsK(instr.C()) {
					scope, name, ok = "field", constantName(chunk, code.ConstIndex(instr.C())), true
				} else {
					ok = false
				}
			}
		case code.MOVE:
			if instr.A() == reg {
				if local, found := localAt(chunk, pc, int(instr.B())); found {
					scope, name, ok = "local", local, true
				} else {
					ok = false
				}
			}
		case code.CONSTANT, code.LOAD_NIL, code.LOAD_BOOL, code.NEW_TABLE,
			code.ADD, code.SUB, code.MUL, code.DIV, code.MOD, code.POW,
			code.UNM, code.NOT, code.LEN, code.CONCAT, code.CALL:
			if instr.A() == reg {
				ok = false
			}
		}
	}
	if local, found := localAt(chunk, faultPC, reg); found && !ok {
		scope, name, ok = "local", local, true
	}
	return
}

func constantName(chunk *object.Chunk, k int) string {
	if k < 0 || k >= len(chunk.Constants) {
		return ""
	}
	c := chunk.Constants[k]
	if c.IsString() {
		return c.AsString().Text()
	}
	return c.String()
}

// localAt finds the name of the local variable occupying reg whose
// scope (StartPC..EndPC) covers pc, using Chunk.Locals's debug table.
func localAt(chunk *object.Chunk, pc, reg int) (string, bool) {
	for i := len(chunk.Locals) - 1; i >= 0; i-- {
		l := chunk.Locals[i]
		if l.Reg != reg {
			continue
		}
		if pc >= l.StartPC && (l.EndPC < 0 || pc < l.EndPC) {
			return l.Name, true
		}
	}
	return "", false
}

// typeErrorAt formats §4.9's "attempt to <op> <scope> '<name>' (a <type>
// value)" or its scope-less fallback, for the value that faulted at reg
// in the currently executing frame.
func (vm *VM) typeErrorAt(op string, reg int, v object.Value) error {
	frame := vm.currentFrame()
	chunk := frame.closure.Chunk
	what := fmt.Sprintf("attempt to %s a %s value", op, v.TypeName())
	if scope, name, ok := describeRegister(chunk, frame.ip-1, reg); ok && name != "" {
		what = fmt.Sprintf("attempt to %s %s '%s' (a %s value)", op, scope, name, v.TypeName())
	}
	return vm.runtimeError(what)
}
