// Protected execution of §4.8/§7: pcall installs a handler, runs the
// body, and on throw restores the saved stack/frame depth and reports a
// non-OK status with the error message on top. Go's panic/recover plays
// the setjmp/longjmp role; LIFO nesting of handlers falls out of Go's
// own call-stack discipline for free.
//
// Adapted from an explicit resumable-at-catchIP handler model (jumping
// back into the middle of a running frame) to a recover-and-unwind one,
// since Go has no goto-to-arbitrary-pc primitive and only the saved
// depths need restoring, not execution resumed mid-frame.
package vm

import (
	"fmt"

	"lulu/internal/lerr"
	"lulu/internal/object"
)

// PCall invokes closure protected: a panic raised anywhere during
// execution (including inside a nested native callback) is recovered,
// the stack and frame depth are restored to what they were before the
// call, and the error message is returned as the sole "result" alongside
// a non-nil error. A clean return yields (results, nil).
func (vm *VM) PCall(closure *object.Closure, args []object.Value) (results []object.Value, err error) {
	h := &errorHandler{parent: vm.handlers, stackDepth: vm.top, frameDepth: vm.frameTop}
	vm.handlers = h
	defer func() {
		vm.handlers = h.parent
		if r := recover(); r != nil {
			vm.top = h.stackDepth
			vm.frameTop = h.frameDepth
			vm.frames = vm.frames[:h.frameDepth]
			err = panicToError(r)
			results = nil
		}
	}()
	results, err = vm.Call(closure, args)
	if err != nil {
		vm.top = h.stackDepth
		vm.frameTop = h.frameDepth
		vm.frames = vm.frames[:h.frameDepth]
		return nil, err
	}
	return results, nil
}

func panicToError(r any) error {
	if e, ok := r.(error); ok {
		return lerr.As(e, "", 0)
	}
	return lerr.NewRuntime("", 0, fmt.Sprint(r))
}

// runtimeError builds a §7 RUNTIME error attributed to the currently
// executing frame's source and line, matching the per-chunk line table
// lookup §4.9 specifies.
func (vm *VM) runtimeError(what string) error {
	frame := vm.currentFrame()
	chunk := frame.closure.Chunk
	line := chunk.LineForPC(frame.ip - 1)
	return lerr.NewRuntime(chunk.SourceName, line, what)
}
