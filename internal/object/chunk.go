package object

import (
	"github.com/google/uuid"

	"lulu/internal/code"
)

// LineRun is one compressed range of the line-info table (§3): pc values
// in [StartPC, StartPC+Count) all map to Line.
type LineRun struct {
	StartPC int
	Count   int
	Line    int
}

// LocalInfo describes one declared local's live range, for debug/error
// attribution (§3, §4.9).
type LocalInfo struct {
	Name    string
	StartPC int
	EndPC   int
	Reg     int
}

// Chunk is the compiled form of a source unit or function body (§3).
type Chunk struct {
	ID uuid.UUID // random identity assigned by NewChunk; each compile gets a fresh one

	Code      []code.Instruction
	Constants []Value
	constIdx  map[constKey]int // dedup map for the constant pool

	Lines  []LineRun
	Locals []LocalInfo

	StackUsed  int // highest register index touched, +1
	NumParams  int
	IsVararg   bool
	SourceName string
}

func NewChunk(sourceName string) *Chunk {
	return &Chunk{
		ID:         uuid.New(),
		constIdx:   make(map[constKey]int),
		SourceName: sourceName,
	}
}

// constKey is the map key for constant-pool dedup: a copy of a Value's
// kind, number and object fields. Its `any` field is comparable because
// the objects a Value holds (string/table/closure/chunk) are all
// pointers; a non-comparable dynamic type there would panic on lookup.
type constKey struct {
	kind Kind
	num  float64
	obj  any
}

func keyOf(v Value) constKey { return constKey{kind: v.kind, num: v.num, obj: v.obj} }

// AddConstant interns v into the constant pool, returning its index. Equal
// constants (by Value.Equal, which for strings is pointer identity after
// interning) share a slot.
func (c *Chunk) AddConstant(v Value) int {
	k := keyOf(v)
	if idx, ok := c.constIdx[k]; ok {
		return idx
	}
	idx := len(c.Constants)
	c.Constants = append(c.Constants, v)
	c.constIdx[k] = idx
	return idx
}

// AddLocal records a declared local's scope, used by the parser and by
// runtime error attribution (§4.9).
func (c *Chunk) AddLocal(name string, startPC, reg int) int {
	c.Locals = append(c.Locals, LocalInfo{Name: name, StartPC: startPC, EndPC: -1, Reg: reg})
	return len(c.Locals) - 1
}

// LineForPC returns the source line for pc via the compressed line table.
func (c *Chunk) LineForPC(pc int) int {
	for _, run := range c.Lines {
		if pc >= run.StartPC && pc < run.StartPC+run.Count {
			return run.Line
		}
	}
	if len(c.Lines) > 0 {
		return c.Lines[len(c.Lines)-1].Line
	}
	return 0
}

// PC returns the current instruction count, i.e. the pc of the next
// emitted instruction.
func (c *Chunk) PC() int { return len(c.Code) }

// Emit appends instr, recording line against the compressed line table,
// and returns instr's own pc.
func (c *Chunk) Emit(instr code.Instruction, line int) int {
	pc := len(c.Code)
	c.Code = append(c.Code, instr)
	if n := len(c.Lines); n > 0 && c.Lines[n-1].Line == line {
		c.Lines[n-1].Count++
	} else {
		c.Lines = append(c.Lines, LineRun{StartPC: pc, Count: 1, Line: line})
	}
	return pc
}

// SetInstruction overwrites the instruction at pc. The compiler's jump
// patcher and register-relocation discharge write Code[pc] directly
// instead of calling it.
func (c *Chunk) SetInstruction(pc int, instr code.Instruction) {
	c.Code[pc] = instr
}
