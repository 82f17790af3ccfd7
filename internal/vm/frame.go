package vm

import "lulu/internal/object"

// CallFrame is the window of §3 "Call frame": `[base..top)` into the
// shared stack, the executing closure, a saved ip, and the number of
// results the caller asked for (a fixed count, or varargAll for the
// VARARG sentinel of §6).
type CallFrame struct {
	closure *object.Closure
	base    int
	ip      int
	nRets   int // caller's requested result count; -1 = keep all (VARARG)

	// resultBase is where this frame's results get copied back into the
	// caller's register window on RETURN; unused when isRoot is set.
	resultBase int

	// isRoot marks a frame pushed directly by Call/PCall rather than by a
	// nested CALL instruction: its RETURN hands results to the Go caller
	// (vm.lastResults) instead of writing them into a Lua register window.
	isRoot bool
}

const varargAll = -1

// errorHandler is one node of the stack-allocated handler chain pcall
// installs (§3 "Error handler", §4.8 "Protected execution"). Go's own
// panic/recover stands in for a setjmp/longjmp pair; the fields
// recorded here are exactly what a throw must restore.
type errorHandler struct {
	parent     *errorHandler
	stackDepth int
	frameDepth int
}
