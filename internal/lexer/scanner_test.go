package lexer

import (
	"testing"

	"lulu/internal/object"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	strings := object.NewInternTable()
	s := NewScanner(src, "test", strings)
	var toks []Token
	for {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("scanning %q: %v", src, err)
		}
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return toks
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := scanAll(t, "local x = nil and not false")
	want := []TokenType{TokenLocal, TokenName, TokenAssign, TokenNil, TokenAnd, TokenNot, TokenFalse, TokenEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, tt)
		}
	}
}

func TestCompoundPunctuation(t *testing.T) {
	toks := scanAll(t, "== ~= <= >= .. ...")
	want := []TokenType{TokenEq, TokenNe, TokenLe, TokenGe, TokenConcat, TokenEllipsis, TokenEOF}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, tt)
		}
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"42", 42},
		{"3.5", 3.5},
		{"0x1F", 31},
		{"1e3", 1000},
		{"1.5e-2", 0.015},
	}
	for _, tt := range tests {
		toks := scanAll(t, tt.src)
		if toks[0].Type != TokenNumber {
			t.Fatalf("%q: got %s, want TokenNumber", tt.src, toks[0].Type)
		}
		if toks[0].NumberVal != tt.want {
			t.Errorf("%q: got %v, want %v", tt.src, toks[0].NumberVal, tt.want)
		}
	}
}

func TestShortStringEscapes(t *testing.T) {
	toks := scanAll(t, `"a\tb\nc\65"`)
	if toks[0].Type != TokenString {
		t.Fatalf("got %s, want TokenString", toks[0].Type)
	}
	want := "a\tb\nc\x41"
	if string(toks[0].StringVal.Bytes()) != want {
		t.Errorf("got %q, want %q", toks[0].StringVal.Bytes(), want)
	}
}

func TestLongStringMatchingEquals(t *testing.T) {
	toks := scanAll(t, "[==[hello ]] world]==]")
	if toks[0].Type != TokenString {
		t.Fatalf("got %s, want TokenString", toks[0].Type)
	}
	want := "hello ]] world"
	if string(toks[0].StringVal.Bytes()) != want {
		t.Errorf("got %q, want %q", toks[0].StringVal.Bytes(), want)
	}
}

func TestLongStringLeadingNewlineSkipped(t *testing.T) {
	toks := scanAll(t, "[[\nfirst line]]")
	want := "first line"
	if string(toks[0].StringVal.Bytes()) != want {
		t.Errorf("got %q, want %q", toks[0].StringVal.Bytes(), want)
	}
}

func TestCommentsSkipped(t *testing.T) {
	toks := scanAll(t, "-- a line comment\nlocal --[[ a\nlong comment ]] x")
	want := []TokenType{TokenLocal, TokenName, TokenEOF}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Type, tt)
		}
	}
}

func TestIdentifiersIntern(t *testing.T) {
	strings := object.NewInternTable()
	s1 := NewScanner("foo foo", "test", strings)
	tok1, _ := s1.Next()
	tok2, _ := s1.Next()
	if tok1.StringVal != tok2.StringVal {
		t.Errorf("two occurrences of the same identifier should share one interned *object.String")
	}
}

func TestUnterminatedStringIsSyntaxError(t *testing.T) {
	strings := object.NewInternTable()
	s := NewScanner(`"unterminated`, "test", strings)
	if _, err := s.Next(); err == nil {
		t.Errorf("expected a syntax error for an unterminated string")
	}
}
