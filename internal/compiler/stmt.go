// Statement parsing of §4.5/§4.6: the recursive-descent dispatcher and
// each statement form (one function per statement kind), built directly
// against the token stream rather than an AST-node parameter, since
// this package has no tree to walk.
package compiler

import (
	"github.com/dustin/go-humanize"

	"lulu/internal/code"
	"lulu/internal/lerr"
	"lulu/internal/lexer"
	"lulu/internal/object"
)

func (p *Parser) isBlockEnd() bool {
	switch p.cur.Type {
	case lexer.TokenEnd, lexer.TokenElse, lexer.TokenElseif, lexer.TokenUntil, lexer.TokenEOF:
		return true
	default:
		return false
	}
}

func (p *Parser) block() error {
	for !p.isBlockEnd() {
		if err := p.statement(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) statement() error {
	if p.fs.overflowed() {
		return p.syntaxErrorf("function or expression needs too many registers (limit %s)", humanize.Comma(int64(code.MaxRegisters)))
	}
	line := p.line()
	switch p.cur.Type {
	case lexer.TokenSemi:
		return p.next()
	case lexer.TokenIf:
		return p.ifStatement()
	case lexer.TokenWhile:
		return p.whileStatement()
	case lexer.TokenDo:
		return p.doStatement()
	case lexer.TokenFor:
		return p.forStatement()
	case lexer.TokenRepeat:
		return p.repeatStatement()
	case lexer.TokenFunction:
		return p.functionStatement()
	case lexer.TokenLocal:
		return p.localStatement()
	case lexer.TokenReturn:
		return p.returnStatement()
	case lexer.TokenBreak:
		return p.breakStatement()
	default:
		return p.exprStatement(line)
	}
}

func (p *Parser) ifStatement() error {
	if err := p.next(); err != nil {
		return err
	}
	elseJumps := code.NoJump
	for {
		cond, err := p.parseExpr(0)
		if err != nil {
			return err
		}
		condLine := p.line()
		cond = p.goIfTrue(cond, condLine)
		if _, err := p.expect(lexer.TokenThen); err != nil {
			return err
		}

		p.fs.enterBlock(false)
		if err := p.block(); err != nil {
			return err
		}
		p.fs.leaveBlock()

		if p.check(lexer.TokenElseif) || p.check(lexer.TokenElse) {
			jpc := emitJump(p.fs, p.line())
			elseJumps = concatJump(p.fs.chunk, elseJumps, jpc)
		}
		patchToHere(p.fs, cond.PatchFalse)

		if p.check(lexer.TokenElseif) {
			if err := p.next(); err != nil {
				return err
			}
			continue
		}
		break
	}

	if p.check(lexer.TokenElse) {
		if err := p.next(); err != nil {
			return err
		}
		p.fs.enterBlock(false)
		if err := p.block(); err != nil {
			return err
		}
		p.fs.leaveBlock()
	}

	if _, err := p.expect(lexer.TokenEnd); err != nil {
		return err
	}
	patchToHere(p.fs, elseJumps)
	return nil
}

func (p *Parser) whileStatement() error {
	if err := p.next(); err != nil {
		return err
	}
	initPC := p.fs.chunk.PC()
	p.fs.markJumpTarget()
	cond, err := p.parseExpr(0)
	if err != nil {
		return err
	}
	condLine := p.line()
	cond = p.goIfTrue(cond, condLine)
	if _, err := p.expect(lexer.TokenDo); err != nil {
		return err
	}

	p.fs.enterBlock(true)
	if err := p.block(); err != nil {
		return err
	}
	blk := p.fs.leaveBlock()

	jpc := emitJump(p.fs, p.line())
	fixJump(p.fs.chunk, jpc, initPC)
	patchToHere(p.fs, cond.PatchFalse)
	patchToHere(p.fs, blk.breakList)

	_, err = p.expect(lexer.TokenEnd)
	return err
}

func (p *Parser) repeatStatement() error {
	if err := p.next(); err != nil {
		return err
	}
	initPC := p.fs.chunk.PC()
	p.fs.markJumpTarget()

	p.fs.enterBlock(true)
	if err := p.block(); err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenUntil); err != nil {
		return err
	}
	cond, err := p.parseExpr(0)
	if err != nil {
		return err
	}
	condLine := p.line()
	cond = p.goIfTrue(cond, condLine)
	blk := p.fs.leaveBlock()

	patchList(p.fs.chunk, cond.PatchFalse, initPC)
	patchToHere(p.fs, blk.breakList)
	return nil
}

func (p *Parser) doStatement() error {
	if err := p.next(); err != nil {
		return err
	}
	p.fs.enterBlock(false)
	if err := p.block(); err != nil {
		return err
	}
	p.fs.leaveBlock()
	_, err := p.expect(lexer.TokenEnd)
	return err
}

func (p *Parser) breakStatement() error {
	line := p.line()
	if err := p.next(); err != nil {
		return err
	}
	loop := p.fs.enclosingLoop()
	if loop == nil {
		return lerr.NewSyntax(p.sourceName, line, "break", "break outside a loop")
	}
	jpc := emitJump(p.fs, line)
	loop.breakList = concatJump(p.fs.chunk, loop.breakList, jpc)
	return nil
}

// forStatement parses the numeric form `for i = init, limit[, step] do
// body end` (§4.7); Lua's generic `for ... in ...` form has no opcode
// support in this instruction set and is out of scope.
func (p *Parser) forStatement() error {
	if err := p.next(); err != nil {
		return err
	}
	nameTok, err := p.expect(lexer.TokenName)
	if err != nil {
		return err
	}
	if _, err := p.expect(lexer.TokenAssign); err != nil {
		return err
	}

	line := p.line()
	baseReg := p.fs.freeReg

	initExpr, err := p.parseExpr(0)
	if err != nil {
		return err
	}
	p.exprToNextReg(initExpr, line)

	if _, err := p.expect(lexer.TokenComma); err != nil {
		return err
	}
	limitExpr, err := p.parseExpr(0)
	if err != nil {
		return err
	}
	p.exprToNextReg(limitExpr, p.line())

	hasStep, err := p.accept(lexer.TokenComma)
	if err != nil {
		return err
	}
	if hasStep {
		stepExpr, err := p.parseExpr(0)
		if err != nil {
			return err
		}
		p.exprToNextReg(stepExpr, p.line())
	} else {
		one := p.fs.chunk.AddConstant(object.Number(1))
		p.fs.chunk.Emit(code.CreateABx(code.CONSTANT, p.fs.freeReg, one), p.line())
		p.fs.reserveRegs(1)
	}

	if _, err := p.expect(lexer.TokenDo); err != nil {
		return err
	}

	p.fs.enterBlock(true)
	p.fs.declareLocal(nameTok.StringVal.Text())

	prepPC := p.fs.chunk.Emit(code.CreateAsBx(code.FOR_PREP, baseReg, code.NoJump), p.line())
	bodyStart := p.fs.chunk.PC()
	if err := p.block(); err != nil {
		return err
	}
	blk := p.fs.leaveBlock()

	p.fs.markJumpTarget()
	loopPC := p.fs.chunk.PC()
	fixJump(p.fs.chunk, prepPC, loopPC)
	p.fs.chunk.Emit(code.CreateAsBx(code.FOR_LOOP, baseReg, 0), p.line())
	fixJump(p.fs.chunk, loopPC, bodyStart)
	patchToHere(p.fs, blk.breakList)

	_, err = p.expect(lexer.TokenEnd)
	return err
}

// exprFromNameToken builds the Local/Global descriptor for an
// already-consumed name token (nameExpr handles the common case of a
// not-yet-consumed one).
func (p *Parser) exprFromNameToken(tok lexer.Token) ExprDesc {
	if reg, ok := p.fs.resolveLocal(tok.StringVal.Text()); ok {
		return localExpr(reg)
	}
	k := p.fs.chunk.AddConstant(object.StringValue(tok.StringVal))
	return globalExpr(k)
}

func (p *Parser) exprStatement(line int) error {
	e, err := p.suffixedExpr()
	if err != nil {
		return err
	}
	if p.check(lexer.TokenAssign) || p.check(lexer.TokenComma) {
		if e.Kind != EKLocal && e.Kind != EKGlobal && e.Kind != EKIndexed {
			return p.syntaxErrorf("syntax error (cannot assign)")
		}
		return p.assignment([]ExprDesc{e}, line)
	}
	if e.Kind != EKCall {
		return p.syntaxErrorf("syntax error (expected statement)")
	}
	p.setCallResultCount(e, 0)
	return nil
}

// assignment parses the remainder of a (possibly multiple) assignment
// after its first LHS target has already been parsed, threading further
// targets recursively (§4.5 "Assignments").
func (p *Parser) assignment(targets []ExprDesc, line int) error {
	if p.check(lexer.TokenComma) {
		if err := p.next(); err != nil {
			return err
		}
		next, err := p.suffixedExpr()
		if err != nil {
			return err
		}
		if next.Kind != EKLocal && next.Kind != EKGlobal && next.Kind != EKIndexed {
			return p.syntaxErrorf("syntax error (cannot assign)")
		}
		return p.assignment(append(targets, next), line)
	}

	if _, err := p.expect(lexer.TokenAssign); err != nil {
		return err
	}
	values, err := p.parseExprList()
	if err != nil {
		return err
	}
	values = p.adjustValues(values, len(targets))
	for i := len(targets) - 1; i >= 0; i-- {
		p.storeVar(targets[i], values[i], line)
	}
	return nil
}

// parseExprList parses a comma-separated expression list, materializing
// every entry but the last into its own register as it goes (the last
// is left as a raw descriptor so callers can expand a trailing call).
func (p *Parser) parseExprList() ([]ExprDesc, error) {
	var values []ExprDesc
	for {
		valLine := p.line()
		v, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		more, err := p.accept(lexer.TokenComma)
		if err != nil {
			return nil, err
		}
		if !more {
			values = append(values, v)
			return values, nil
		}
		values = append(values, p.exprToNextReg(v, valLine))
	}
}

// adjustValues finalizes exactly n value descriptors for a target list:
// a trailing call expands to fill any shortfall, otherwise the list is
// padded with Nil or truncated (§4.5 "Assignments").
func (p *Parser) adjustValues(values []ExprDesc, n int) []ExprDesc {
	if len(values) == 0 {
		out := make([]ExprDesc, n)
		for i := range out {
			out[i] = nilExpr()
		}
		return out
	}
	last := values[len(values)-1]
	fixed := values[:len(values)-1]
	need := n - len(fixed)
	if last.Kind == EKCall && need >= 0 {
		p.setCallResultCount(last, need)
		base := p.fs.chunk.Code[last.Info].A()
		if need > 1 {
			p.fs.reserveRegs(need - 1)
		}
		out := append([]ExprDesc{}, fixed...)
		for i := 0; i < need; i++ {
			out = append(out, dischargedExpr(base+i))
		}
		return out
	}
	out := append([]ExprDesc{}, fixed...)
	out = append(out, last)
	for len(out) < n {
		out = append(out, nilExpr())
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (p *Parser) localStatement() error {
	line := p.line()
	if err := p.next(); err != nil {
		return err
	}
	if p.check(lexer.TokenFunction) {
		return p.localFunctionStatement(line)
	}

	var names []string
	for {
		nameTok, err := p.expect(lexer.TokenName)
		if err != nil {
			return err
		}
		names = append(names, nameTok.StringVal.Text())
		more, err := p.accept(lexer.TokenComma)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}

	has, err := p.accept(lexer.TokenAssign)
	if err != nil {
		return err
	}
	var values []ExprDesc
	if has {
		values, err = p.parseExprList()
		if err != nil {
			return err
		}
	}
	values = p.adjustValues(values, len(names))

	for i, name := range names {
		reg := p.fs.declareLocal(name)
		v := p.dischargeVars(values[i], line)
		if v.Kind == EKDischarged {
			p.fs.freeTempReg(v.Info)
		}
		p.dischargeToReg(v, reg, line)
	}
	return nil
}

// localFunctionStatement declares the local before compiling the body.
// Since functions carry no upvalues (a Non-goal), this only makes the
// name resolvable to a *sibling* `local function` in the same scope
// that calls it non-recursively; recursive self-calls from inside the
// body fall through to a global lookup, a direct consequence of that
// Non-goal rather than a bug here.
func (p *Parser) localFunctionStatement(line int) error {
	if err := p.next(); err != nil {
		return err
	}
	nameTok, err := p.expect(lexer.TokenName)
	if err != nil {
		return err
	}
	name := nameTok.StringVal.Text()
	reg := p.fs.declareLocal(name)
	fn, err := p.functionBody(line, name, false)
	if err != nil {
		return err
	}
	p.dischargeToReg(fn, reg, line)
	return nil
}

// functionStatement parses `function Name{.Name}[:Name] body`, storing
// the compiled closure into the resolved target (a global, local, or
// table field chain).
func (p *Parser) functionStatement() error {
	line := p.line()
	if err := p.next(); err != nil {
		return err
	}
	nameTok, err := p.expect(lexer.TokenName)
	if err != nil {
		return err
	}

	target := p.exprFromNameToken(nameTok)
	fullName := nameTok.StringVal.Text()
	for p.check(lexer.TokenDot) {
		if err := p.next(); err != nil {
			return err
		}
		fieldTok, err := p.expect(lexer.TokenName)
		if err != nil {
			return err
		}
		table := p.exprToAnyReg(target, line)
		k := p.fs.chunk.AddConstant(object.StringValue(fieldTok.StringVal))
		target = indexedExpr(table.Info, code.MakeK(k))
		fullName += "." + fieldTok.StringVal.Text()
	}

	isMethod := false
	if p.check(lexer.TokenColon) {
		if err := p.next(); err != nil {
			return err
		}
		fieldTok, err := p.expect(lexer.TokenName)
		if err != nil {
			return err
		}
		table := p.exprToAnyReg(target, line)
		k := p.fs.chunk.AddConstant(object.StringValue(fieldTok.StringVal))
		target = indexedExpr(table.Info, code.MakeK(k))
		fullName += ":" + fieldTok.StringVal.Text()
		isMethod = true
	}

	fn, err := p.functionBody(line, fullName, isMethod)
	if err != nil {
		return err
	}
	p.storeVar(target, fn, line)
	return nil
}

func (p *Parser) returnStatement() error {
	line := p.line()
	if err := p.next(); err != nil {
		return err
	}

	if p.isBlockEnd() || p.check(lexer.TokenSemi) {
		p.fs.chunk.Emit(code.CreateABC(code.RETURN, 0, 1, 0), line)
		_, err := p.accept(lexer.TokenSemi)
		return err
	}

	base := p.fs.freeReg
	count := 0
	vararg := false
	for {
		valLine := p.line()
		v, err := p.parseExpr(0)
		if err != nil {
			return err
		}
		more, err := p.accept(lexer.TokenComma)
		if err != nil {
			return err
		}
		if !more {
			if v.Kind == EKCall {
				p.setCallResultCount(v, -1)
				vararg = true
			} else {
				p.exprToNextReg(v, valLine)
				count++
			}
			break
		}
		p.exprToNextReg(v, valLine)
		count++
	}

	b := count + 1
	if vararg {
		b = 0
	}
	p.fs.chunk.Emit(code.CreateABC(code.RETURN, base, b, 0), line)
	_, err := p.accept(lexer.TokenSemi)
	return err
}
