// Package vm implements §4.8/§5/§6: the register-based dispatch loop, a
// growable value stack windowed per call frame, the globals table, the
// protected-call (pcall) handler chain, and the host-facing stack API.
//
// A preallocated value stack, a frame slice with a base per frame, an
// instruction-count runaway guard, and a handler-frame stack for
// protected calls; dispatch addresses operands directly as `R(base+n)`
// (no value is ever pushed only to be immediately read back), since
// §4.3's instruction set is iABC/iABx register-addressed rather than
// stack-addressed.
package vm

import (
	"lulu/internal/code"
	"lulu/internal/lerr"
	"lulu/internal/object"
)

const (
	defaultStackSize = 256
	maxFrames        = 256
)

// VM is the single-threaded cooperative interpreter of §5: exactly one
// frame executes at a time, and only host-initiated C closures may call
// back into it.
type VM struct {
	stack []object.Value

	frames    []CallFrame
	frameTop  int

	globals *object.Table
	strings *object.InternTable

	// objects links the heap objects created through the VM (track: new
	// strings from InternString, NewTable, Load and PushCFunction
	// closures) for lifetime bookkeeping; objects the compiler creates
	// directly are not linked (§3 "Lifetimes", §9 design note on the
	// object list); Go's own GC
	// does the actual reclamation; this list exists so ObjectCount can
	// observe allocation pressure the way a manual-free VM would track
	// its live set.
	objects []any

	handlers *errorHandler // LIFO chain installed by pcall (§4.8 "Protected execution")

	top int // index of the first free stack slot (the "top" of §6's stack API)

	instrCount uint64

	// lastResults holds the most recently completed outermost Call/PCall's
	// results, handed back by run() once the frame stack unwinds to the
	// depth it started at.
	lastResults []object.Value

	// alloc mirrors §6's allocator callback. Go's own collector does the
	// real memory management, so this hook is advisory: a host that wants
	// to enforce a memory ceiling can refuse a growth request, which the
	// VM turns into a MEMORY throw and unwinds, matching §6's "must
	// return a non-null pointer or the VM raises MEMORY" contract.
	alloc     Allocator
	allocUser any
}

func New() *VM {
	vm := &VM{
		stack:   make([]object.Value, defaultStackSize),
		frames:  make([]CallFrame, 0, maxFrames),
		globals: object.NewTable(),
		strings: object.NewInternTable(),
	}
	return vm
}

// Strings exposes the VM-owned intern table so the lexer/compiler pass
// shares it with the running VM (§4.1: one canonical table per VM).
func (vm *VM) Strings() *object.InternTable { return vm.strings }

// Globals exposes the VM-owned globals table for host code that wants
// to pre-populate entries (e.g. a stdlib loader) before running a chunk.
func (vm *VM) Globals() *object.Table { return vm.globals }

// ObjectCount reports the number of heap allocations linked into the
// VM's object list since creation (§9 design note: tracked for
// observability, not manually freed — see DESIGN.md open question 4).
func (vm *VM) ObjectCount() int { return len(vm.objects) }

func (vm *VM) track(obj any) {
	vm.objects = append(vm.objects, obj)
}

// InternString wraps the shared intern table, tracking the result the
// first time a given byte sequence is interned.
func (vm *VM) InternString(s string) *object.String {
	n := vm.strings.Count()
	str := vm.strings.InternString(s)
	if vm.strings.Count() != n {
		vm.track(str)
	}
	return str
}

func (vm *VM) NewTable() *object.Table {
	t := object.NewTable()
	vm.track(t)
	return t
}

// SetAllocator installs the host's allocator hook (§6), consulted only
// when the value stack needs to grow past its current capacity.
func (vm *VM) SetAllocator(fn Allocator, user any) {
	vm.alloc = fn
	vm.allocUser = user
}

func (vm *VM) growStack(n int) error {
	old := len(vm.stack)
	if vm.alloc != nil && !vm.alloc(vm.allocUser, old, n) {
		return lerr.NewMemory("stack growth")
	}
	for len(vm.stack) < n {
		vm.stack = append(vm.stack, make([]object.Value, len(vm.stack))...)
	}
	return nil
}

func (vm *VM) ensure(top int) error {
	if top > len(vm.stack) {
		return vm.growStack(top)
	}
	return nil
}

func (vm *VM) currentFrame() *CallFrame {
	return &vm.frames[vm.frameTop-1]
}

// reg returns a pointer to R(n) of the currently executing frame.
func (vm *VM) reg(n int) *object.Value {
	return &vm.stack[vm.currentFrame().base+n]
}

// rk resolves a B/C operand that may be an RK-encoded register or a
// constant-pool index (§4.3 "RK encoding").
func (vm *VM) rk(operand uint16, chunk *object.Chunk) object.Value {
	if code.IsK(operand) {
		return chunk.Constants[code.ConstIndex(operand)]
	}
	return *vm.reg(int(operand))
}
