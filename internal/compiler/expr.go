// Expression parsing, discharge, and codegen of §4.5/§4.6: the Pratt
// precedence climb, the discharge_vars/expr_next_reg/expr_any_reg/
// expr_rk/store_variable contracts, constant folding, and the
// short-circuit machinery. There is no AST node to walk here: every
// expression lives only as an ExprDesc until discharged straight into
// register or jump-list form, following the register/jump-list
// discipline real Lua 5.1's lcode.c is known for.
package compiler

import (
	"math"

	"lulu/internal/code"
	"lulu/internal/lexer"
	"lulu/internal/object"
)

type opPriority struct{ left, right int }

var binPriority = map[lexer.TokenType]opPriority{
	lexer.TokenOr:      {1, 1},
	lexer.TokenAnd:     {2, 2},
	lexer.TokenEq:      {3, 3},
	lexer.TokenNe:      {3, 3},
	lexer.TokenLt:      {4, 4},
	lexer.TokenGt:      {4, 4},
	lexer.TokenLe:      {4, 4},
	lexer.TokenGe:      {4, 4},
	lexer.TokenConcat:  {6, 5}, // right-assoc: binds tighter than compare, looser than term
	lexer.TokenPlus:    {7, 7},
	lexer.TokenMinus:   {7, 7},
	lexer.TokenStar:    {8, 8},
	lexer.TokenSlash:   {8, 8},
	lexer.TokenPercent: {8, 8},
	lexer.TokenCaret:   {11, 10}, // right-assoc, tightest of all
}

// unaryPriority is the limit used when parsing a unary operator's
// operand: looser than pow (11) so `-a^b` absorbs the `^` into the
// operand (giving `-(a^b)`), tighter than factor (8) so `-a*b` does
// not (giving `(-a)*b`). See DESIGN.md's open-question resolution on
// the unary/pow ordering in §4.5's precedence table.
const unaryPriority = 9

func (p *Parser) parseExpr(limit int) (ExprDesc, error) {
	left, err := p.parseSimple()
	if err != nil {
		return ExprDesc{}, err
	}
	for {
		prio, ok := binPriority[p.cur.Type]
		if !ok || prio.left <= limit {
			break
		}
		opType := p.cur.Type
		opLine := p.line()
		if err := p.next(); err != nil {
			return ExprDesc{}, err
		}

		switch opType {
		case lexer.TokenAnd:
			left = p.goIfTrue(left, opLine)
			right, err := p.parseExpr(prio.right)
			if err != nil {
				return ExprDesc{}, err
			}
			left = p.applyAnd(left, right, opLine)
		case lexer.TokenOr:
			left = p.goIfFalse(left, opLine)
			right, err := p.parseExpr(prio.right)
			if err != nil {
				return ExprDesc{}, err
			}
			left = p.applyOr(left, right, opLine)
		case lexer.TokenConcat:
			left = p.exprToNextReg(left, opLine)
			right, err := p.parseExpr(prio.right)
			if err != nil {
				return ExprDesc{}, err
			}
			left = p.emitConcat(left, right, opLine)
		default:
			right, err := p.parseExpr(prio.right)
			if err != nil {
				return ExprDesc{}, err
			}
			left, err = p.emitBinop(opType, left, right, opLine)
			if err != nil {
				return ExprDesc{}, err
			}
		}
	}
	return left, nil
}

func (p *Parser) parseSimple() (ExprDesc, error) {
	line := p.line()
	switch p.cur.Type {
	case lexer.TokenNil:
		if err := p.next(); err != nil {
			return ExprDesc{}, err
		}
		return nilExpr(), nil
	case lexer.TokenTrue:
		if err := p.next(); err != nil {
			return ExprDesc{}, err
		}
		return trueExpr(), nil
	case lexer.TokenFalse:
		if err := p.next(); err != nil {
			return ExprDesc{}, err
		}
		return falseExpr(), nil
	case lexer.TokenNumber:
		v := p.cur.NumberVal
		if err := p.next(); err != nil {
			return ExprDesc{}, err
		}
		return numberExpr(v), nil
	case lexer.TokenString:
		str := p.cur.StringVal
		if err := p.next(); err != nil {
			return ExprDesc{}, err
		}
		k := p.fs.chunk.AddConstant(object.StringValue(str))
		return constantExpr(k), nil
	case lexer.TokenFunction:
		if err := p.next(); err != nil {
			return ExprDesc{}, err
		}
		return p.functionBody(line, "", false)
	case lexer.TokenMinus, lexer.TokenNot, lexer.TokenHash:
		return p.parseUnary(line)
	case lexer.TokenLBrace:
		return p.tableConstructor()
	default:
		return p.suffixedExpr()
	}
}

func (p *Parser) parseUnary(line int) (ExprDesc, error) {
	opType := p.cur.Type
	if err := p.next(); err != nil {
		return ExprDesc{}, err
	}
	operand, err := p.parseExpr(unaryPriority)
	if err != nil {
		return ExprDesc{}, err
	}
	return p.emitUnop(opType, operand, line), nil
}

func (p *Parser) primaryExpr() (ExprDesc, error) {
	switch p.cur.Type {
	case lexer.TokenLParen:
		if err := p.next(); err != nil {
			return ExprDesc{}, err
		}
		e, err := p.parseExpr(0)
		if err != nil {
			return ExprDesc{}, err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return ExprDesc{}, err
		}
		if e.Kind == EKCall {
			// Parentheses truncate a call's results to exactly one.
			e = dischargedExpr(p.fs.chunk.Code[e.Info].A())
		}
		return e, nil
	case lexer.TokenName:
		return p.nameExpr()
	default:
		return ExprDesc{}, p.syntaxErrorf("unexpected symbol")
	}
}

func (p *Parser) nameExpr() (ExprDesc, error) {
	str := p.cur.StringVal
	if err := p.next(); err != nil {
		return ExprDesc{}, err
	}
	if reg, ok := p.fs.resolveLocal(str.Text()); ok {
		return localExpr(reg), nil
	}
	k := p.fs.chunk.AddConstant(object.StringValue(str))
	return globalExpr(k), nil
}

func (p *Parser) suffixedExpr() (ExprDesc, error) {
	e, err := p.primaryExpr()
	if err != nil {
		return ExprDesc{}, err
	}
	for {
		line := p.line()
		switch p.cur.Type {
		case lexer.TokenDot:
			if err := p.next(); err != nil {
				return ExprDesc{}, err
			}
			nameTok, err := p.expect(lexer.TokenName)
			if err != nil {
				return ExprDesc{}, err
			}
			k := p.fs.chunk.AddConstant(object.StringValue(nameTok.StringVal))
			table := p.exprToAnyReg(e, line)
			e = indexedExpr(table.Info, code.MakeK(k))
		case lexer.TokenLBracket:
			if err := p.next(); err != nil {
				return ExprDesc{}, err
			}
			keyExpr, err := p.parseExpr(0)
			if err != nil {
				return ExprDesc{}, err
			}
			if _, err := p.expect(lexer.TokenRBracket); err != nil {
				return ExprDesc{}, err
			}
			table := p.exprToAnyReg(e, line)
			keyRK := p.exprRK(keyExpr, line)
			e = indexedExpr(table.Info, keyRK)
		case lexer.TokenLParen:
			e, err = p.callExpr(e, line)
			if err != nil {
				return ExprDesc{}, err
			}
		default:
			return e, nil
		}
	}
}

// callExpr parses the `(arglist)` suffix and emits CALL. Arguments and
// the function itself occupy a contiguous run of fresh registers ending
// at the top of the current stack, per §4.8's CALL convention.
func (p *Parser) callExpr(fn ExprDesc, line int) (ExprDesc, error) {
	base := p.exprToNextReg(fn, line)
	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return ExprDesc{}, err
	}
	nargs := 0
	vararg := false
	if !p.check(lexer.TokenRParen) {
		for {
			argLine := p.line()
			arg, err := p.parseExpr(0)
			if err != nil {
				return ExprDesc{}, err
			}
			more, err := p.accept(lexer.TokenComma)
			if err != nil {
				return ExprDesc{}, err
			}
			if !more && arg.Kind == EKCall {
				p.setCallResultCount(arg, -1)
				vararg = true
			} else {
				p.exprToNextReg(arg, argLine)
				nargs++
			}
			if !more {
				break
			}
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return ExprDesc{}, err
	}
	b := nargs + 1
	if vararg {
		b = 0
	}
	pc := p.fs.chunk.Emit(code.CreateABC(code.CALL, base.Info, b, 2), line)
	p.fs.freeReg = base.Info
	p.fs.reserveRegs(1)
	return callExpr(pc), nil
}

// setCallResultCount patches a not-yet-discharged CALL's expected
// result count: n >= 0 for a fixed count, n < 0 for "all results"
// (the VARARG sentinel of §6, encoded as C=0).
func (p *Parser) setCallResultCount(e ExprDesc, n int) {
	if e.Kind != EKCall {
		return
	}
	c := n + 1
	if n < 0 {
		c = 0
	}
	instr := p.fs.chunk.Code[e.Info]
	p.fs.chunk.Code[e.Info] = instr.SetC(c)
}

func (p *Parser) tableConstructor() (ExprDesc, error) {
	startLine := p.line()
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return ExprDesc{}, err
	}
	pc := p.fs.chunk.Emit(code.CreateABC(code.NEW_TABLE, code.NoReg, 0, 0), startLine)
	table := p.exprToNextReg(relocableExpr(pc), startLine)

	arrayIndex := 1
	nHash := 0
	for !p.check(lexer.TokenRBrace) {
		fieldLine := p.line()
		switch {
		case p.check(lexer.TokenLBracket):
			if err := p.next(); err != nil {
				return ExprDesc{}, err
			}
			keyExpr, err := p.parseExpr(0)
			if err != nil {
				return ExprDesc{}, err
			}
			if _, err := p.expect(lexer.TokenRBracket); err != nil {
				return ExprDesc{}, err
			}
			if _, err := p.expect(lexer.TokenAssign); err != nil {
				return ExprDesc{}, err
			}
			valExpr, err := p.parseExpr(0)
			if err != nil {
				return ExprDesc{}, err
			}
			keyRK := p.exprRK(keyExpr, fieldLine)
			valRK := p.exprRK(valExpr, fieldLine)
			p.fs.chunk.Emit(code.CreateABC(code.SET_TABLE, table.Info, int(keyRK), int(valRK)), fieldLine)
			p.freeRKReg(valRK)
			p.freeRKReg(keyRK)
			nHash++
		case p.check(lexer.TokenName):
			ahead, err := p.peekAhead()
			if err != nil {
				return ExprDesc{}, err
			}
			if ahead.Type == lexer.TokenAssign {
				nameTok := p.cur
				if err := p.next(); err != nil {
					return ExprDesc{}, err
				}
				if err := p.next(); err != nil {
					return ExprDesc{}, err
				}
				valExpr, err := p.parseExpr(0)
				if err != nil {
					return ExprDesc{}, err
				}
				k := p.fs.chunk.AddConstant(object.StringValue(nameTok.StringVal))
				valRK := p.exprRK(valExpr, fieldLine)
				p.fs.chunk.Emit(code.CreateABC(code.SET_TABLE, table.Info, int(code.MakeK(k)), int(valRK)), fieldLine)
				p.freeRKReg(valRK)
				nHash++
			} else {
				valExpr, err := p.parseExpr(0)
				if err != nil {
					return ExprDesc{}, err
				}
				valRK := p.exprRK(valExpr, fieldLine)
				k := p.fs.chunk.AddConstant(object.Number(float64(arrayIndex)))
				p.fs.chunk.Emit(code.CreateABC(code.SET_TABLE, table.Info, int(code.MakeK(k)), int(valRK)), fieldLine)
				p.freeRKReg(valRK)
				arrayIndex++
			}
		default:
			valExpr, err := p.parseExpr(0)
			if err != nil {
				return ExprDesc{}, err
			}
			valRK := p.exprRK(valExpr, fieldLine)
			k := p.fs.chunk.AddConstant(object.Number(float64(arrayIndex)))
			p.fs.chunk.Emit(code.CreateABC(code.SET_TABLE, table.Info, int(code.MakeK(k)), int(valRK)), fieldLine)
			p.freeRKReg(valRK)
			arrayIndex++
		}

		comma, err := p.accept(lexer.TokenComma)
		if err != nil {
			return ExprDesc{}, err
		}
		if !comma {
			semi, err := p.accept(lexer.TokenSemi)
			if err != nil {
				return ExprDesc{}, err
			}
			if !semi {
				break
			}
		}
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return ExprDesc{}, err
	}
	p.fs.chunk.Code[pc] = code.CreateABC(code.NEW_TABLE, code.NoReg, nHash, arrayIndex-1)
	return table, nil
}

// functionBody parses `( paramlist ) block end`, the `function` keyword
// already consumed. Per the Non-goal "no upvalues/closures beyond
// simple function objects" and the opcode set's lack of a CLOSURE
// instruction (DESIGN.md open-question 5), the body compiles into its
// own child Chunk, wrapped in an immutable Closure constant loaded by a
// single CONSTANT instruction — there is nothing to capture at
// closure-creation time since the function cannot see outer locals.
func (p *Parser) functionBody(line int, name string, isMethod bool) (ExprDesc, error) {
	childChunk := object.NewChunk(p.sourceName)
	parentFS := p.fs
	p.fs = newFuncState(childChunk, parentFS)
	p.fs.enterBlock(false)

	if isMethod {
		p.fs.declareLocal("self")
		childChunk.NumParams++
	}

	if _, err := p.expect(lexer.TokenLParen); err != nil {
		return ExprDesc{}, err
	}
	if !p.check(lexer.TokenRParen) {
		for {
			if p.check(lexer.TokenEllipsis) {
				if err := p.next(); err != nil {
					return ExprDesc{}, err
				}
				childChunk.IsVararg = true
				break
			}
			paramTok, err := p.expect(lexer.TokenName)
			if err != nil {
				return ExprDesc{}, err
			}
			p.fs.declareLocal(paramTok.StringVal.Text())
			childChunk.NumParams++
			more, err := p.accept(lexer.TokenComma)
			if err != nil {
				return ExprDesc{}, err
			}
			if !more {
				break
			}
		}
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return ExprDesc{}, err
	}

	for !p.check(lexer.TokenEnd) && !p.check(lexer.TokenEOF) {
		if err := p.statement(); err != nil {
			return ExprDesc{}, err
		}
	}
	endLine := p.line()
	if _, err := p.expect(lexer.TokenEnd); err != nil {
		return ExprDesc{}, err
	}

	p.fs.leaveBlock()
	childChunk.Emit(code.CreateABC(code.RETURN, 0, 1, 0), endLine)

	closure := object.NewLuaClosure(childChunk)
	if name != "" {
		closure.Name = name
	}
	p.fs = parentFS
	k := p.fs.chunk.AddConstant(object.ClosureValue(closure))
	return constantExpr(k), nil
}

// --- discharge / register management ---

func (p *Parser) dischargeVars(e ExprDesc, line int) ExprDesc {
	switch e.Kind {
	case EKGlobal:
		pc := p.fs.chunk.Emit(code.CreateABx(code.GET_GLOBAL, code.NoReg, e.Info), line)
		out := relocableExpr(pc)
		out.PatchTrue, out.PatchFalse = e.PatchTrue, e.PatchFalse
		return out
	case EKLocal:
		out := dischargedExpr(e.Info)
		out.PatchTrue, out.PatchFalse = e.PatchTrue, e.PatchFalse
		return out
	case EKIndexed:
		tableReg := e.Info
		keyRK := uint16(e.Aux)
		p.freeIndexed(tableReg, keyRK)
		pc := p.fs.chunk.Emit(code.CreateABC(code.GET_TABLE, code.NoReg, tableReg, int(keyRK)), line)
		out := relocableExpr(pc)
		out.PatchTrue, out.PatchFalse = e.PatchTrue, e.PatchFalse
		return out
	case EKCall:
		out := dischargedExpr(p.fs.chunk.Code[e.Info].A())
		out.PatchTrue, out.PatchFalse = e.PatchTrue, e.PatchFalse
		return out
	default:
		return e
	}
}

func (p *Parser) freeIndexed(tableReg int, keyRK uint16) {
	if code.IsK(keyRK) {
		p.fs.freeTempReg(tableReg)
		return
	}
	keyReg := int(keyRK)
	if keyReg > tableReg {
		p.fs.freeTempReg(keyReg)
		p.fs.freeTempReg(tableReg)
	} else {
		p.fs.freeTempReg(tableReg)
		p.fs.freeTempReg(keyReg)
	}
}

func (p *Parser) freeRKReg(rk uint16) {
	if !code.IsK(rk) {
		p.fs.freeTempReg(int(rk))
	}
}

func (p *Parser) dischargeToReg(e ExprDesc, reg, line int) {
	switch e.Kind {
	case EKNil:
		p.fs.chunk.Emit(code.CreateABC(code.LOAD_NIL, reg, reg, 0), line)
	case EKTrue:
		p.fs.chunk.Emit(code.CreateABC(code.LOAD_BOOL, reg, 1, 0), line)
	case EKFalse:
		p.fs.chunk.Emit(code.CreateABC(code.LOAD_BOOL, reg, 0, 0), line)
	case EKNumber:
		k := p.fs.chunk.AddConstant(object.Number(e.NVal))
		p.fs.chunk.Emit(code.CreateABx(code.CONSTANT, reg, k), line)
	case EKConstant:
		p.fs.chunk.Emit(code.CreateABx(code.CONSTANT, reg, e.Info), line)
	case EKRelocable:
		p.fs.chunk.Code[e.Info] = p.fs.chunk.Code[e.Info].SetA(reg)
	case EKDischarged:
		if e.Info != reg {
			p.fs.chunk.Emit(code.CreateABC(code.MOVE, reg, e.Info, 0), line)
		}
	}
	p.dischargeJumpsToReg(e, reg, line)
}

// dischargeJumpsToReg finalizes any pending true/false jump lists on e,
// materializing the LOAD_BOOL pair a short-circuit result or bare
// comparison needs (§4.6).
func (p *Parser) dischargeJumpsToReg(e ExprDesc, reg, line int) {
	if e.Kind != EKJump && !e.hasJumps() {
		return
	}
	skip := code.NoJump
	if e.Kind != EKJump {
		skip = emitJump(p.fs, line)
	}
	falseTarget := p.fs.chunk.PC()
	p.fs.chunk.Emit(code.CreateABC(code.LOAD_BOOL, reg, 0, 1), line)
	trueTarget := p.fs.chunk.PC()
	p.fs.chunk.Emit(code.CreateABC(code.LOAD_BOOL, reg, 1, 0), line)
	if skip != code.NoJump {
		patchToHere(p.fs, skip)
	}

	patchFalse := e.PatchFalse
	patchTrue := e.PatchTrue
	if e.Kind == EKJump {
		patchTrue = concatJump(p.fs.chunk, patchTrue, e.Info)
	}
	patchListWithReg(p.fs.chunk, patchFalse, falseTarget, reg)
	patchListWithReg(p.fs.chunk, patchTrue, trueTarget, reg)
}

func (p *Parser) exprToNextReg(e ExprDesc, line int) ExprDesc {
	e = p.dischargeVars(e, line)
	if e.Kind == EKDischarged {
		p.fs.freeTempReg(e.Info)
	}
	reg := p.fs.freeReg
	p.fs.reserveRegs(1)
	p.dischargeToReg(e, reg, line)
	return dischargedExpr(reg)
}

func (p *Parser) exprToAnyReg(e ExprDesc, line int) ExprDesc {
	e = p.dischargeVars(e, line)
	if e.Kind == EKDischarged && !e.hasJumps() {
		return e
	}
	return p.exprToNextReg(e, line)
}

// exprRK materializes e into an RK operand: a constant-pool reference
// when e is constant-like and the index fits in 8 bits, otherwise a
// register (§4.5 expr_rk).
func (p *Parser) exprRK(e ExprDesc, line int) uint16 {
	e = p.dischargeVars(e, line)
	var k int
	hasK := true
	switch e.Kind {
	case EKNil:
		k = p.fs.chunk.AddConstant(object.Nil())
	case EKTrue:
		k = p.fs.chunk.AddConstant(object.Boolean(true))
	case EKFalse:
		k = p.fs.chunk.AddConstant(object.Boolean(false))
	case EKNumber:
		k = p.fs.chunk.AddConstant(object.Number(e.NVal))
	case EKConstant:
		k = e.Info
	default:
		hasK = false
	}
	if hasK && k <= 0xFF {
		return code.MakeK(k)
	}
	reg := p.exprToAnyReg(e, line)
	return code.MakeR(reg.Info)
}

// storeVar emits the write for an assignment target produced by
// suffixedExpr/nameExpr (§4.5 store_variable).
func (p *Parser) storeVar(target, e ExprDesc, line int) {
	switch target.Kind {
	case EKLocal:
		e = p.dischargeVars(e, line)
		if e.Kind == EKDischarged {
			p.fs.freeTempReg(e.Info)
		}
		p.dischargeToReg(e, target.Info, line)
	case EKGlobal:
		reg := p.exprToAnyReg(e, line)
		p.fs.chunk.Emit(code.CreateABx(code.SET_GLOBAL, reg.Info, target.Info), line)
		p.fs.freeTempReg(reg.Info)
	case EKIndexed:
		valRK := p.exprRK(e, line)
		tableReg := target.Info
		keyRK := uint16(target.Aux)
		p.fs.chunk.Emit(code.CreateABC(code.SET_TABLE, tableReg, int(keyRK), int(valRK)), line)
		p.freeRKReg(valRK)
		p.freeIndexed(tableReg, keyRK)
	}
}

// --- short-circuit control flow (§4.6) ---

func (p *Parser) negateCondition(jumpPC int) {
	instr := p.fs.chunk.Code[jumpPC-1]
	p.fs.chunk.Code[jumpPC-1] = instr.SetA(1 - instr.A())
}

// jumpOnCond emits (or reuses) a conditional jump taken when e's truth
// value matches wantTrueJump, returning the jump's pc.
func (p *Parser) jumpOnCond(e ExprDesc, wantTrueJump bool, line int) int {
	if e.Kind == EKJump {
		if !wantTrueJump {
			p.negateCondition(e.Info)
		}
		return e.Info
	}
	reg := p.exprToAnyReg(e, line)
	c := 0
	if wantTrueJump {
		c = 1
	}
	p.fs.chunk.Emit(code.CreateABC(code.TEST_SET, code.NoReg, reg.Info, c), line)
	p.fs.freeTempReg(reg.Info)
	return emitJump(p.fs, line)
}

func (p *Parser) goIfTrue(e ExprDesc, line int) ExprDesc {
	e = p.dischargeVars(e, line)
	pc := p.jumpOnCond(e, false, line)
	e.PatchFalse = concatJump(p.fs.chunk, e.PatchFalse, pc)
	patchToHere(p.fs, e.PatchTrue)
	e.PatchTrue = code.NoJump
	return e
}

func (p *Parser) goIfFalse(e ExprDesc, line int) ExprDesc {
	e = p.dischargeVars(e, line)
	pc := p.jumpOnCond(e, true, line)
	e.PatchTrue = concatJump(p.fs.chunk, e.PatchTrue, pc)
	patchToHere(p.fs, e.PatchFalse)
	e.PatchFalse = code.NoJump
	return e
}

func (p *Parser) applyAnd(left, right ExprDesc, line int) ExprDesc {
	right = p.dischargeVars(right, line)
	right.PatchFalse = concatJump(p.fs.chunk, right.PatchFalse, left.PatchFalse)
	return right
}

func (p *Parser) applyOr(left, right ExprDesc, line int) ExprDesc {
	right = p.dischargeVars(right, line)
	right.PatchTrue = concatJump(p.fs.chunk, right.PatchTrue, left.PatchTrue)
	return right
}

// --- binary/unary operator codegen, constant folding (§4.5) ---

func (p *Parser) emitBinop(opType lexer.TokenType, left, right ExprDesc, line int) (ExprDesc, error) {
	if left.Kind == EKNumber && right.Kind == EKNumber {
		if folded, ok := foldArith(opType, left.NVal, right.NVal); ok {
			return numberExpr(folded), nil
		}
	}
	switch opType {
	case lexer.TokenPlus:
		return p.emitArith(code.ADD, left, right, line), nil
	case lexer.TokenMinus:
		return p.emitArith(code.SUB, left, right, line), nil
	case lexer.TokenStar:
		return p.emitArith(code.MUL, left, right, line), nil
	case lexer.TokenSlash:
		return p.emitArith(code.DIV, left, right, line), nil
	case lexer.TokenPercent:
		return p.emitArith(code.MOD, left, right, line), nil
	case lexer.TokenCaret:
		return p.emitArith(code.POW, left, right, line), nil
	case lexer.TokenEq:
		return p.emitCompare(code.EQ, 1, left, right, line), nil
	case lexer.TokenNe:
		return p.emitCompare(code.EQ, 0, left, right, line), nil
	case lexer.TokenLt:
		return p.emitCompare(code.LT, 1, left, right, line), nil
	case lexer.TokenGt:
		return p.emitCompare(code.LT, 1, right, left, line), nil
	case lexer.TokenLe:
		return p.emitCompare(code.LEQ, 1, left, right, line), nil
	case lexer.TokenGe:
		return p.emitCompare(code.LEQ, 1, right, left, line), nil
	}
	return ExprDesc{}, p.syntaxErrorf("unsupported operator")
}

func luaMod(a, b float64) float64 { return a - math.Floor(a/b)*b }

func foldArith(opType lexer.TokenType, a, b float64) (float64, bool) {
	switch opType {
	case lexer.TokenPlus:
		return a + b, true
	case lexer.TokenMinus:
		return a - b, true
	case lexer.TokenStar:
		return a * b, true
	case lexer.TokenSlash:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case lexer.TokenPercent:
		if b == 0 {
			return 0, false
		}
		return luaMod(a, b), true
	case lexer.TokenCaret:
		return math.Pow(a, b), true
	}
	return 0, false
}

func (p *Parser) emitArith(op code.OpCode, left, right ExprDesc, line int) ExprDesc {
	b := p.exprRK(left, line)
	c := p.exprRK(right, line)
	p.freeRKReg(c)
	p.freeRKReg(b)
	pc := p.fs.chunk.Emit(code.CreateABC(op, code.NoReg, int(b), int(c)), line)
	return relocableExpr(pc)
}

// emitCompare emits EQ/LT/LEQ A,B,C with A=cond followed by an
// unconditional JUMP, returning a Jump descriptor whose pc is taken
// exactly when the comparison is true (§4.6 "a comparison that
// produced a jump").
func (p *Parser) emitCompare(op code.OpCode, cond int, left, right ExprDesc, line int) ExprDesc {
	b := p.exprRK(left, line)
	c := p.exprRK(right, line)
	p.freeRKReg(c)
	p.freeRKReg(b)
	p.fs.chunk.Emit(code.CreateABC(op, cond, int(b), int(c)), line)
	pc := emitJump(p.fs, line)
	return jumpExpr(pc)
}

// emitConcat emits CONCAT for `left .. right`, reusing the prior
// instruction by extending B when right is itself a fresh, adjacent
// CONCAT (§4.5 peephole: "consecutive CONCAT of a rising run").
func (p *Parser) emitConcat(left, right ExprDesc, line int) ExprDesc {
	if right.Kind == EKRelocable {
		instr := p.fs.chunk.Code[right.Info]
		if instr.OpCode() == code.CONCAT && int(instr.B()) == left.Info+1 {
			p.fs.chunk.Code[right.Info] = code.CreateABC(code.CONCAT, code.NoReg, left.Info, int(instr.C()))
			p.fs.freeTempReg(left.Info)
			return relocableExpr(right.Info)
		}
	}
	rightReg := p.exprToNextReg(right, line)
	p.fs.freeTempReg(rightReg.Info)
	p.fs.freeTempReg(left.Info)
	pc := p.fs.chunk.Emit(code.CreateABC(code.CONCAT, code.NoReg, left.Info, rightReg.Info), line)
	return relocableExpr(pc)
}

func (p *Parser) emitUnop(opType lexer.TokenType, e ExprDesc, line int) ExprDesc {
	switch opType {
	case lexer.TokenMinus:
		if e.Kind == EKNumber {
			return numberExpr(-e.NVal)
		}
		reg := p.exprToAnyReg(e, line)
		p.fs.freeTempReg(reg.Info)
		pc := p.fs.chunk.Emit(code.CreateABC(code.UNM, code.NoReg, reg.Info, 0), line)
		return relocableExpr(pc)
	case lexer.TokenNot:
		switch e.Kind {
		case EKNil, EKFalse:
			return trueExpr()
		case EKTrue, EKNumber, EKConstant:
			return falseExpr()
		case EKJump:
			// "not over a comparison inverts the jump direction".
			p.negateCondition(e.Info)
			e.PatchTrue, e.PatchFalse = e.PatchFalse, e.PatchTrue
			return e
		}
		reg := p.exprToAnyReg(e, line)
		p.fs.freeTempReg(reg.Info)
		pc := p.fs.chunk.Emit(code.CreateABC(code.NOT, code.NoReg, reg.Info, 0), line)
		result := relocableExpr(pc)
		result.PatchTrue, result.PatchFalse = e.PatchFalse, e.PatchTrue
		return result
	case lexer.TokenHash:
		reg := p.exprToAnyReg(e, line)
		p.fs.freeTempReg(reg.Info)
		pc := p.fs.chunk.Emit(code.CreateABC(code.LEN, code.NoReg, reg.Info, 0), line)
		return relocableExpr(pc)
	}
	return noValue()
}
