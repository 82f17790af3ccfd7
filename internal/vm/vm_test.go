package vm

import (
	"strings"
	"testing"

	"github.com/kr/pretty"

	"lulu/internal/compiler"
	"lulu/internal/lerr"
	"lulu/internal/object"
)

// run compiles src and calls it with no arguments, returning its
// results or the error it threw.
func run(t *testing.T, src string) ([]object.Value, error) {
	t.Helper()
	m := New()
	chunk, err := compiler.Compile(src, "test", m.Strings())
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	closure := object.NewLuaClosure(chunk)
	return m.Call(closure, nil)
}

func nums(t *testing.T, results []object.Value) []float64 {
	t.Helper()
	out := make([]float64, len(results))
	for i, r := range results {
		if !r.IsNumber() {
			t.Fatalf("result %d is a %s, not a number", i, r.TypeName())
		}
		out[i] = r.AsNumber()
	}
	return out
}

// S1: constant folding collapses arithmetic into one CONSTANT.
func TestScenarioArithmetic(t *testing.T) {
	results, err := run(t, "return 1 + 2 * 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 7 {
		t.Fatalf("results = %v, want [7]", results)
	}
}

// S2: short-circuit "and" must never call the right-hand side.
func TestScenarioShortCircuit(t *testing.T) {
	src := `local function f() error("boom") end; return false and f()`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Kind() != object.KBoolean || results[0].AsBoolean() {
		t.Fatalf("results = %v, want [false]", results)
	}
}

// S3: array/hash promotion order.
func TestScenarioTablePromotion(t *testing.T) {
	src := `local t = {}; t[2] = "b"; t[1] = "a"; return #t, t[1], t[2]`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %v, want 3 values", results)
	}
	if results[0].AsNumber() != 2 {
		t.Errorf("#t = %v, want 2", results[0])
	}
	if results[1].AsString().Text() != "a" || results[2].AsString().Text() != "b" {
		t.Errorf("t[1],t[2] = %v,%v, want a,b", results[1], results[2])
	}
}

// S4: multiple assignment pads with Nil.
func TestScenarioMultipleAssignmentPadding(t *testing.T) {
	src := `local a,b,c = 1,2; return a,b,c`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %v, want 3 values", results)
	}
	if results[0].AsNumber() != 1 || results[1].AsNumber() != 2 {
		t.Errorf("a,b = %v,%v, want 1,2", results[0], results[1])
	}
	if !results[2].IsNil() {
		t.Errorf("c = %v, want nil", results[2])
	}
}

// S5: string interning gives concatenation-built strings the same
// identity as a literal with the same content.
func TestScenarioStringInterning(t *testing.T) {
	src := `local s = "hello"; local t = "he".."llo"; return s == t`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || !results[0].AsBoolean() {
		t.Fatalf("results = %v, want [true]", results)
	}
}

// S6: indexing nil under pcall yields a RUNTIME status and a message
// naming the faulting operation.
func TestScenarioProtectedIndexError(t *testing.T) {
	m := New()
	src := `local t = nil; return t.x`
	chunk, err := compiler.Compile(src, "test", m.Strings())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	closure := object.NewLuaClosure(chunk)
	_, err = m.PCall(closure, nil)
	if err == nil {
		t.Fatal("expected a RUNTIME error, got none")
	}
	if le, ok := err.(*lerr.Error); !ok || le.Kind != lerr.Runtime {
		t.Errorf("error %v is not a RUNTIME lerr.Error", err)
	}
	if !strings.Contains(err.Error(), "attempt to index") {
		t.Errorf("message = %q, want it to mention 'attempt to index'", err.Error())
	}
	if !strings.Contains(err.Error(), "nil value") {
		t.Errorf("message = %q, want it to mention 'nil value'", err.Error())
	}
}

func TestArithmeticOpsAtRuntime(t *testing.T) {
	cases := []struct {
		src  string
		want float64
	}{
		{"local a = 10 local b = 4 return a - b", 6},
		{"local a = 3 local b = 4 return a * b", 12},
		{"local a = 10 local b = 4 return a / b", 2.5},
		{"local a = 10 local b = 3 return a % b", 1},
		{"local a = 2 local b = 10 return a ^ b", 1024},
	}
	for _, c := range cases {
		results, err := run(t, c.src)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.src, err)
		}
		got := nums(t, results)
		if len(got) != 1 || got[0] != c.want {
			t.Errorf("%q = %v, want [%v]", c.src, got, c.want)
		}
	}
}

func TestComparisonsAtRuntime(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"local a = 5 local b = 5 return a == b", true},
		{"local a = 5 local b = 6 return a < b", true},
		{"local a = 6 local b = 5 return a < b", false},
		{"local a = 5 local b = 5 return a <= b", true},
		{`return "abc" < "abd"`, true},
	}
	for _, c := range cases {
		results, err := run(t, c.src)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", c.src, err)
		}
		if len(results) != 1 || results[0].AsBoolean() != c.want {
			t.Errorf("%q = %v, want [%v]", c.src, results, c.want)
		}
	}
}

func TestNumericForLoop(t *testing.T) {
	src := `local sum = 0
for i = 1, 5 do
  sum = sum + i
end
return sum`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 15 {
		t.Fatalf("results = %v, want [15]", results)
	}
}

func TestNumericForLoopNegativeStep(t *testing.T) {
	src := `local count = 0
for i = 5, 1, -1 do
  count = count + 1
end
return count`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 5 {
		t.Fatalf("results = %v, want [5]", results)
	}
}

func TestFunctionCallWithMultipleReturns(t *testing.T) {
	src := `local function pair() return 1, 2 end
local a, b = pair()
return a, b`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := nums(t, results)
	want := []float64{1, 2}
	if diff := pretty.Diff(want, got); len(diff) > 0 {
		t.Fatalf("results differ: %v", diff)
	}
}

func TestFunctionCallArgumentPadding(t *testing.T) {
	src := `local function f(a, b) return a, b end
return f(1)`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v, want 2 values", results)
	}
	if results[0].AsNumber() != 1 {
		t.Errorf("a = %v, want 1", results[0])
	}
	if !results[1].IsNil() {
		t.Errorf("b = %v, want nil (missing arg)", results[1])
	}
}

func TestRecursiveCall(t *testing.T) {
	src := `local function fact(n)
  if n <= 1 then
    return 1
  end
  return n * fact(n - 1)
end
return fact(5)`
	results, err := run(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 120 {
		t.Fatalf("results = %v, want [120]", results)
	}
}

func TestPCallRecoversAndRestoresDepth(t *testing.T) {
	m := New()
	src := `local t = nil; return t.x`
	chunk, err := compiler.Compile(src, "test", m.Strings())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	closure := object.NewLuaClosure(chunk)

	topBefore := m.top
	framesBefore := m.frameTop
	if _, err := m.PCall(closure, nil); err == nil {
		t.Fatal("expected an error")
	}
	if m.top != topBefore {
		t.Errorf("stack top after a failed pcall = %d, want %d", m.top, topBefore)
	}
	if m.frameTop != framesBefore {
		t.Errorf("frame depth after a failed pcall = %d, want %d", m.frameTop, framesBefore)
	}
}

func TestConcatOfMixedNumbersAndStrings(t *testing.T) {
	results, err := run(t, `return "n=" .. 5`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].AsString().Text() != "n=5" {
		t.Fatalf("results = %v, want [n=5]", results)
	}
}

func TestUnaryMinusAndNot(t *testing.T) {
	results, err := run(t, `local a = 5 return -a, not false`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v, want 2 values", results)
	}
	if results[0].AsNumber() != -5 {
		t.Errorf("-a = %v, want -5", results[0])
	}
	if !results[1].AsBoolean() {
		t.Errorf("not false = %v, want true", results[1])
	}
}

func TestGlobalGetSet(t *testing.T) {
	results, err := run(t, `g = 42 return g`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].AsNumber() != 42 {
		t.Fatalf("results = %v, want [42]", results)
	}
}

func TestArithmeticTypeErrorNamesLocal(t *testing.T) {
	m := New()
	src := `local x = "not a number"; return x + 1`
	chunk, err := compiler.Compile(src, "test", m.Strings())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = m.PCall(object.NewLuaClosure(chunk), nil)
	if err == nil {
		t.Fatal("expected an arithmetic type error")
	}
	if !strings.Contains(err.Error(), "arithmetic") {
		t.Errorf("message = %q, want it to mention arithmetic", err.Error())
	}
	if !strings.Contains(err.Error(), "local 'x'") {
		t.Errorf("message = %q, want it to name local 'x'", err.Error())
	}
}

func TestCallingANonFunctionErrors(t *testing.T) {
	m := New()
	src := `local x = 5; return x()`
	chunk, err := compiler.Compile(src, "test", m.Strings())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = m.PCall(object.NewLuaClosure(chunk), nil)
	if err == nil {
		t.Fatal("expected a call-on-non-function error")
	}
	if !strings.Contains(err.Error(), "call") {
		t.Errorf("message = %q, want it to mention 'call'", err.Error())
	}
}
