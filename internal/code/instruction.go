package code

// Instruction is the 32-bit packed word of §4.3:
//
//	bit  31........23 22........14 13......6  5....0
//	     B (9)        C (9)        A (8)      opcode (6)
//
// iABx folds B and C into one unsigned 18-bit Bx (constant-pool index);
// iAsBx reads that same Bx as a signed offset biased by MaxSBx.
type Instruction uint32

const (
	posOp = 0
	posA  = 6
	posC  = 14
	posB  = 23

	sizeOp = 6
	sizeA  = 8
	sizeC  = 9
	sizeB  = 9
	sizeBx = sizeB + sizeC // 18

	maskOp = (1 << sizeOp) - 1
	maskA  = (1 << sizeA) - 1
	maskC  = (1 << sizeC) - 1
	maskB  = (1 << sizeB) - 1
	maskBx = (1 << sizeBx) - 1
)

// MaxSBx is the bias subtracted from Bx to recover a signed jump offset,
// and the largest magnitude a JUMP/FOR_PREP/FOR_LOOP sBx may carry
// (invariant 5, §8).
const MaxSBx = maskBx >> 1

// NoReg is the field-max sentinel meaning "no register chosen yet"
// (glossary: NO_REG), used as a Relocable instruction's placeholder A.
const NoReg = maskA

// NoJump is the jump-list terminator (glossary: NO_JUMP).
const NoJump = -1

// MaxRegisters is the hard register-count ceiling of §4.5: attempting to
// exceed it is a compile error, well within the 8-bit A field's range.
const MaxRegisters = 250

// rkBit marks a 9-bit B/C operand as a constant-pool index rather than a
// register (§4.3 "RK encoding").
const rkBit = 1 << 8

// IsK reports whether a decoded B/C operand denotes a constant K(x).
func IsK(operand uint16) bool { return operand&rkBit != 0 }

// ConstIndex extracts the constant-pool index from an RK operand known
// to satisfy IsK.
func ConstIndex(operand uint16) int { return int(operand &^ rkBit) }

// MakeK encodes constant-pool index idx as an RK operand. idx must fit
// in 8 bits; the compiler (expr_rk, §4.5) falls back to materializing the
// constant into a register when it does not.
func MakeK(idx int) uint16 { return uint16(idx) | rkBit }

// MakeR encodes register reg as an RK operand.
func MakeR(reg int) uint16 { return uint16(reg) }

func CreateABC(op OpCode, a, b, c int) Instruction {
	return Instruction(op)&maskOp<<posOp |
		Instruction(a)&maskA<<posA |
		Instruction(c)&maskC<<posC |
		Instruction(b)&maskB<<posB
}

func CreateABx(op OpCode, a int, bx int) Instruction {
	return Instruction(op)&maskOp<<posOp |
		Instruction(a)&maskA<<posA |
		Instruction(bx)&maskBx<<posC
}

func CreateAsBx(op OpCode, a int, sbx int) Instruction {
	return CreateABx(op, a, sbx+MaxSBx)
}

func (i Instruction) OpCode() OpCode { return OpCode((i >> posOp) & maskOp) }
func (i Instruction) A() int         { return int((i >> posA) & maskA) }
func (i Instruction) B() uint16      { return uint16((i >> posB) & maskB) }
func (i Instruction) C() uint16      { return uint16((i >> posC) & maskC) }
func (i Instruction) Bx() int        { return int((i >> posC) & maskBx) }
func (i Instruction) SBx() int       { return i.Bx() - MaxSBx }

// SetA patches the A field in place, used when a Relocable descriptor's
// destination register is finally chosen (§4.5 discharge contract).
func (i Instruction) SetA(a int) Instruction {
	return i&^(maskA<<posA) | Instruction(a)&maskA<<posA
}

// SetSBx patches the sBx field in place, used by jump-list patching (§4.6).
func (i Instruction) SetSBx(sbx int) Instruction {
	bx := sbx + MaxSBx
	return i&^(maskBx<<posC) | Instruction(bx)&maskBx<<posC
}

// SetC patches the C field, used when rewriting a TEST_SET into a plain
// TEST during jump patching (§4.6 patch()).
func (i Instruction) SetC(c int) Instruction {
	return i&^(maskC<<posC) | Instruction(c)&maskC<<posC
}
