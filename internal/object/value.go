// Package object implements the value, string, table, chunk and closure
// model shared by the compiler and the virtual machine (spec §3).
package object

import (
	"fmt"
	"unsafe"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KNil Kind = iota
	KBoolean
	KNumber
	KLightUserdata
	KString
	KTable
	KFunction
	KChunk
)

func (k Kind) String() string {
	switch k {
	case KNil:
		return "nil"
	case KBoolean:
		return "boolean"
	case KNumber:
		return "number"
	case KLightUserdata:
		return "userdata"
	case KString:
		return "string"
	case KTable:
		return "table"
	case KFunction:
		return "function"
	case KChunk:
		return "function"
	default:
		return "unknown"
	}
}

// Value is the tagged variant of §3: primitives compare by value, heap
// variants (String/Table/Function/Chunk) compare by pointer identity via
// Go's interface equality on the obj field, which coincides with the
// boxed pointer comparison. Strings are interned so pointer identity and
// value identity agree for them (invariant 2, §8).
type Value struct {
	kind Kind
	num  float64
	obj  any // *String, *Table, *Closure, *Chunk, unsafe.Pointer
}

func Nil() Value                     { return Value{kind: KNil} }
func Boolean(b bool) Value           { return Value{kind: KBoolean, num: boolToNum(b)} }
func Number(n float64) Value         { return Value{kind: KNumber, num: n} }
func LightUserdata(p unsafe.Pointer) Value {
	return Value{kind: KLightUserdata, obj: p}
}
func StringValue(s *String) Value   { return Value{kind: KString, obj: s} }
func TableValue(t *Table) Value     { return Value{kind: KTable, obj: t} }
func ClosureValue(c *Closure) Value { return Value{kind: KFunction, obj: c} }
func ChunkValue(c *Chunk) Value     { return Value{kind: KChunk, obj: c} }

func boolToNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNil() bool  { return v.kind == KNil }
func (v Value) IsNumber() bool { return v.kind == KNumber }
func (v Value) IsString() bool { return v.kind == KString }
func (v Value) IsTable() bool  { return v.kind == KTable }
func (v Value) IsFunction() bool { return v.kind == KFunction || v.kind == KChunk }

// Truthy implements §3: only Nil and Boolean(false) are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KNil:
		return false
	case KBoolean:
		return v.num != 0
	default:
		return true
	}
}

func (v Value) AsBoolean() bool { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }

func (v Value) AsString() *String {
	if s, ok := v.obj.(*String); ok {
		return s
	}
	return nil
}

func (v Value) AsTable() *Table {
	if t, ok := v.obj.(*Table); ok {
		return t
	}
	return nil
}

func (v Value) AsClosure() *Closure {
	if c, ok := v.obj.(*Closure); ok {
		return c
	}
	return nil
}

func (v Value) AsChunk() *Chunk {
	if c, ok := v.obj.(*Chunk); ok {
		return c
	}
	return nil
}

func (v Value) AsLightUserdata() unsafe.Pointer {
	if p, ok := v.obj.(unsafe.Pointer); ok {
		return p
	}
	return nil
}

// Equal is Lua's raw equality: value equality on primitives, pointer
// identity on heap objects (invariant 2, §8: strings are interned so
// this coincides with content equality for strings).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KNil:
		return true
	case KBoolean, KNumber:
		return v.num == other.num
	default:
		return v.obj == other.obj
	}
}

// TypeName returns the Lua-visible type name used in error messages (§4.9).
func (v Value) TypeName() string { return v.kind.String() }

func (v Value) String() string {
	switch v.kind {
	case KNil:
		return "nil"
	case KBoolean:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case KNumber:
		return formatNumber(v.num)
	case KString:
		return v.AsString().Text()
	case KTable:
		return fmt.Sprintf("table: %p", v.obj)
	case KFunction:
		return fmt.Sprintf("function: %p", v.obj)
	case KChunk:
		return fmt.Sprintf("function: %p", v.obj)
	case KLightUserdata:
		return fmt.Sprintf("userdata: %p", v.AsLightUserdata())
	default:
		return "?"
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) && n < 1e15 && n > -1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%.14g", n)
}
