package compiler

import (
	"lulu/internal/code"
	"lulu/internal/object"
)

// localVar is one entry in a function's active-locals stack (§4.5
// "register allocation": locals occupy the low registers).
type localVar struct {
	name string
	reg  int
}

// blockState is one lexical block, chained to its enclosing block.
// Loop blocks (isLoop) accumulate a break-jump list patched when the
// loop's final pc is known (§4.6 "break").
type blockState struct {
	parent     *blockState
	isLoop     bool
	breakList  int
	firstLocal int // len(actives) at block entry; locals above this pop on exit
}

// FuncState is the per-function compile-time context: one per chunk
// being assembled, chained to its lexically enclosing function so
// nested function literals can each get their own register space and
// constant pool (§3 "Chunk", §4.5).
type FuncState struct {
	chunk  *object.Chunk
	parent *FuncState

	freeReg int
	actives []localVar

	block *blockState

	lastTarget int // pc most recently marked as a jump target; -1 if none
}

func newFuncState(chunk *object.Chunk, parent *FuncState) *FuncState {
	return &FuncState{chunk: chunk, parent: parent, lastTarget: -1}
}

func (fs *FuncState) enterBlock(isLoop bool) {
	fs.block = &blockState{parent: fs.block, isLoop: isLoop, breakList: code.NoJump, firstLocal: len(fs.actives)}
}

// leaveBlock pops the block's locals, reclaims their registers, and
// returns the block so the caller can patch its break list. Resetting
// free_reg to the remaining active-local count mirrors real Lua's
// leaveblock: every temporary above the locals is assumed already freed
// by the LIFO discharge discipline, so the locals being popped are the
// only registers still in use above that point.
func (fs *FuncState) leaveBlock() *blockState {
	b := fs.block
	fs.actives = fs.actives[:b.firstLocal]
	fs.freeReg = len(fs.actives)
	fs.block = b.parent
	return b
}

// enclosingLoop walks outward for the nearest loop block, for `break`.
func (fs *FuncState) enclosingLoop() *blockState {
	for b := fs.block; b != nil; b = b.parent {
		if b.isLoop {
			return b
		}
	}
	return nil
}

func (fs *FuncState) resolveLocal(name string) (int, bool) {
	for i := len(fs.actives) - 1; i >= 0; i-- {
		if fs.actives[i].name == name {
			return fs.actives[i].reg, true
		}
	}
	return 0, false
}

// declareLocal allocates the next free register for a new local named
// name, recording it into the chunk's debug local-info table.
func (fs *FuncState) declareLocal(name string) int {
	reg := fs.freeReg
	fs.reserveRegs(1)
	fs.actives = append(fs.actives, localVar{name: name, reg: reg})
	fs.chunk.AddLocal(name, fs.chunk.PC(), reg)
	return reg
}

// reserveRegs bumps free_reg by n and raises chunk.StackUsed as the
// high-water mark. overflowed() reports whether the 250-register
// ceiling of §4.5 was crossed; callers check it at statement boundaries
// rather than threading an error return through every expression helper.
func (fs *FuncState) reserveRegs(n int) {
	fs.freeReg += n
	if fs.freeReg > fs.chunk.StackUsed {
		fs.chunk.StackUsed = fs.freeReg
	}
}

// overflowed reports whether register allocation has exceeded the
// 250-register ceiling (§4.5: "attempting to exceed 250 registers
// raises a compile error").
func (fs *FuncState) overflowed() bool {
	return fs.freeReg > code.MaxRegisters
}

// freeTempReg reclaims reg if it is both a temporary (above the active
// locals) and exactly the top of the free-register stack — the LIFO
// discharge discipline of §4.5: registers are only ever freed in the
// reverse order they were allocated.
func (fs *FuncState) freeTempReg(reg int) {
	if reg >= len(fs.actives) && reg == fs.freeReg-1 {
		fs.freeReg--
	}
}

// markJumpTarget records the current pc as a jump destination in
// lastTarget (§4.6 patch_to_here). Nothing in the compiler reads
// lastTarget: adjacent LOAD_NIL instructions are emitted as they are,
// without coalescing.
func (fs *FuncState) markJumpTarget() {
	fs.lastTarget = fs.chunk.PC()
}
