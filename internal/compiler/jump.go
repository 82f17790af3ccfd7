// Jump-list operations of §4.6. A jump list is a chain of JUMP pcs
// threaded through their own (not-yet-patched) sBx fields: an unpatched
// jump's sBx holds the pc of the next jump in the list, in the same
// pc-relative encoding a patched jump uses for its real destination,
// terminated by NO_JUMP. This is the same trick real Lua's lcode.c
// plays: an AST-based compiler could patch structured Go control flow
// directly, but a fused single-pass compiler with no tree needs an
// explicit backpatching list instead.
package compiler

import (
	"lulu/internal/code"
	"lulu/internal/object"
)

func emitJump(fs *FuncState, line int) int {
	return fs.chunk.Emit(code.CreateAsBx(code.JUMP, 0, code.NoJump), line)
}

func getJumpDest(chunk *object.Chunk, pc int) int {
	offset := chunk.Code[pc].SBx()
	if offset == code.NoJump {
		return code.NoJump
	}
	return pc + 1 + offset
}

func fixJump(chunk *object.Chunk, pc, dest int) {
	offset := dest - (pc + 1)
	chunk.Code[pc] = chunk.Code[pc].SetSBx(offset)
}

// concatJump appends list2 (a single jump or a list) onto the tail of
// list1 and returns the merged head.
func concatJump(chunk *object.Chunk, list1, list2 int) int {
	if list2 == code.NoJump {
		return list1
	}
	if list1 == code.NoJump {
		return list2
	}
	pc := list1
	for {
		next := getJumpDest(chunk, pc)
		if next == code.NoJump {
			break
		}
		pc = next
	}
	fixJump(chunk, pc, list2)
	return list1
}

// patchTestReg rewrites the TEST_SET that immediately precedes a
// conditional jump so it targets reg, or demotes it to a plain TEST
// (dropping the write) when reg is NoReg — the "patch" contract of
// §4.6: "optionally patch its destination register ... or rewrite it
// into a plain TEST if no register is needed".
func patchTestReg(chunk *object.Chunk, jumpPC, reg int) {
	if jumpPC == 0 {
		return
	}
	prev := chunk.Code[jumpPC-1]
	if prev.OpCode() != code.TEST_SET {
		return
	}
	if reg != code.NoReg && reg != prev.A() {
		chunk.Code[jumpPC-1] = code.CreateABC(code.TEST_SET, reg, int(prev.B()), int(prev.C()))
	} else {
		// Demote to a plain TEST of the source register: no write, A
		// doubles as the tested register, C keeps the sense.
		chunk.Code[jumpPC-1] = code.CreateABC(code.TEST, int(prev.B()), 0, int(prev.C()))
	}
}

// patchListWithReg walks list, patching each TEST_SET's destination to
// reg (NoReg to demote to a plain TEST) and each jump's target to
// target.
func patchListWithReg(chunk *object.Chunk, list, target, reg int) {
	for list != code.NoJump {
		next := getJumpDest(chunk, list)
		patchTestReg(chunk, list, reg)
		fixJump(chunk, list, target)
		list = next
	}
}

func patchList(chunk *object.Chunk, list, target int) {
	patchListWithReg(chunk, list, target, code.NoReg)
}

// patchToHere is patch(list, current pc), marking the current pc as a
// jump target per §4.6.
func patchToHere(fs *FuncState, list int) {
	fs.markJumpTarget()
	patchList(fs.chunk, list, fs.chunk.PC())
}
