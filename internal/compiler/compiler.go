package compiler

import (
	"fmt"

	"lulu/internal/code"
	"lulu/internal/lerr"
	"lulu/internal/lexer"
	"lulu/internal/object"
)

// Parser is the fused parser/code generator of §4.5: it holds exactly
// one token of lookahead from the Scanner and drives a stack of
// FuncStates, one per nested function literal, emitting directly into
// each one's Chunk as it recognizes statements and expressions. There
// is no intermediate tree.
type Parser struct {
	scanner *lexer.Scanner
	strings *object.InternTable

	cur  lexer.Token
	ahead lexer.Token
	hasAhead bool

	fs *FuncState

	sourceName string
}

// Compile parses source (named sourceName for error messages and the
// line table) into a top-level Chunk. The returned chunk is vararg and
// takes zero declared parameters, matching a Lua source file's implicit
// `function(...) ... end` wrapper.
func Compile(source, sourceName string, strings *object.InternTable) (*object.Chunk, error) {
	p := &Parser{
		scanner:    lexer.NewScanner(source, sourceName, strings),
		strings:    strings,
		sourceName: sourceName,
	}

	chunk := object.NewChunk(sourceName)
	chunk.IsVararg = true
	p.fs = newFuncState(chunk, nil)
	p.fs.enterBlock(false)

	if err := p.next(); err != nil {
		return nil, err
	}

	for !p.check(lexer.TokenEOF) {
		if err := p.statement(); err != nil {
			return nil, err
		}
	}

	p.fs.leaveBlock()
	chunk.Emit(code.CreateABC(code.RETURN, 0, 1, 0), p.line())
	return chunk, nil
}

func (p *Parser) line() int { return p.cur.Line }

func (p *Parser) next() error {
	if p.hasAhead {
		p.cur = p.ahead
		p.hasAhead = false
		return nil
	}
	tok, err := p.scanner.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

// peekAhead returns the token after cur without consuming cur, caching
// it so the following next() call returns it instead of rescanning.
func (p *Parser) peekAhead() (lexer.Token, error) {
	if !p.hasAhead {
		tok, err := p.scanner.Next()
		if err != nil {
			return lexer.Token{}, err
		}
		p.ahead = tok
		p.hasAhead = true
	}
	return p.ahead, nil
}

func (p *Parser) check(t lexer.TokenType) bool { return p.cur.Type == t }

func (p *Parser) accept(t lexer.TokenType) (bool, error) {
	if p.cur.Type != t {
		return false, nil
	}
	if err := p.next(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	if p.cur.Type != t {
		return lexer.Token{}, p.syntaxErrorf("'%s' expected", t)
	}
	tok := p.cur
	if err := p.next(); err != nil {
		return lexer.Token{}, err
	}
	return tok, nil
}

func (p *Parser) syntaxErrorf(format string, args ...any) error {
	return lerr.NewSyntax(p.sourceName, p.cur.Line, p.cur.Lexeme, fmt.Sprintf(format, args...))
}
