// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

// Package value implements the AL31F tagged Value cell: the machine-word
// sized union of null, inline primitive, and heap reference that every VM
// register, stack slot and constant-pool entry holds.
//
// A Value is exactly one of three shapes, discriminated by Kind:
//   - Null: Kind == KindNull, both payload words are zero.
//   - Value-typed: an inline primitive (int, float, char, bool, string).
//   - Reference: a wide pointer into the heap, carrying a RefMeta describing
//     whether it targets a Wrapper[T] or a generic container.
package value

import "fmt"

// Kind discriminates the shape of a Value cell. It plays the role of the tag
// bits described in spec.md §3 ("the low bits of the word").
type Kind uint8

const (
	// KindNull is the zero value: both halves of the cell are zero.
	KindNull Kind = iota
	// KindInt is an inline 64-bit signed integer.
	KindInt
	// KindFloat is an inline 64-bit IEEE-754 float.
	KindFloat
	// KindChar is an inline Unicode scalar value.
	KindChar
	// KindBool is an inline boolean.
	KindBool
	// KindRef is a wide pointer to a heap-managed Wrapper or container.
	KindRef
	// KindString is an inline UTF-8 string. Strings are immutable Go values
	// copied like any other primitive, so — unlike KindRef — they need no
	// heap Wrapper or ownership tracking (spec.md's STR_CONCAT and the
	// generic *_ANY arithmetic table treat string as a fifth value-typed
	// kind alongside int/float/char/bool).
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindBool:
		return "bool"
	case KindRef:
		return "ref"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// RefMeta is the trivia word carried alongside a reference's data pointer.
// If Container is false the data pointer targets a Wrapper[T] and VTable
// carries that T's trait/vtable pointer; if Container is true the data
// pointer targets a generic container and VTable carries the container
// vtable instead.
type RefMeta struct {
	Container bool
	VTable    interface{}
}

// Value is the tagged word described in spec.md §3. It is deliberately a
// small, copyable struct rather than an interface: every slot in a Stack,
// every register, every constant-pool entry is a Value by value, never by
// pointer, so that copying a Value never copies heap data.
type Value struct {
	kind Kind

	i    int64
	f    float64
	ch   rune
	b    bool
	s    string
	ptr  interface{} // *heap.Wrapper for non-container refs, or a container handle
	meta RefMeta
}

// NewNull returns the null Value.
func NewNull() Value { return Value{kind: KindNull} }

// NewInt wraps an int64 as a value-typed Value.
func NewInt(i int64) Value { return Value{kind: KindInt, i: i} }

// NewFloat wraps a float64 as a value-typed Value.
func NewFloat(f float64) Value { return Value{kind: KindFloat, f: f} }

// NewChar wraps a rune as a value-typed Value.
func NewChar(c rune) Value { return Value{kind: KindChar, ch: c} }

// NewBool wraps a bool as a value-typed Value.
func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

// NewString wraps a Go string as a value-typed Value.
func NewString(s string) Value { return Value{kind: KindString, s: s} }

// NewRef builds a reference Value pointing at ptr (expected to be a
// *heap.Wrapper or a container handle), tagged with meta.
func NewRef(ptr interface{}, meta RefMeta) Value {
	return Value{kind: KindRef, ptr: ptr, meta: meta}
}

// Kind returns the cell's discriminant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsValue reports whether v carries an inline primitive (int/float/char/bool/string).
// IsValue and IsRef are mutually exclusive for every non-null Value, matching
// spec.md §8's testable property `is_value() XOR is_ref()`.
func (v Value) IsValue() bool {
	switch v.kind {
	case KindInt, KindFloat, KindChar, KindBool, KindString:
		return true
	default:
		return false
	}
}

// IsRef reports whether v carries a heap reference.
func (v Value) IsRef() bool { return v.kind == KindRef }

// Int returns the inline int64 payload. Callers must check Kind first.
func (v Value) Int() int64 { return v.i }

// Float returns the inline float64 payload. Callers must check Kind first.
func (v Value) Float() float64 { return v.f }

// Char returns the inline rune payload. Callers must check Kind first.
func (v Value) Char() rune { return v.ch }

// Bool returns the inline bool payload. Callers must check Kind first.
func (v Value) Bool() bool { return v.b }

// Str returns the inline string payload. Callers must check Kind first.
func (v Value) Str() string { return v.s }

// Ptr returns the reference payload (a *heap.Wrapper or container handle).
// Callers must check IsRef first.
func (v Value) Ptr() interface{} { return v.ptr }

// RefMeta returns the trivia word of a reference Value.
func (v Value) RefMeta() RefMeta { return v.meta }

// PtrRepr returns a value suitable for use as a managed-set key: the
// reference's underlying pointer identity. Used by the allocator's
// `managed.contains(value.ptr_repr)` invariant (spec.md §8).
func (v Value) PtrRepr() interface{} {
	if !v.IsRef() {
		return nil
	}
	return v.ptr
}

// Eq implements EqRef/EqAny semantics: for references it compares pointer
// identity (EqRef semantics; EqAny additionally compares the trivia word,
// which is folded in here since both halves of the wide pointer participate
// in Go interface equality for the comparable container/wrapper handles this
// VM uses).
func (v Value) Eq(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindChar:
		return v.ch == other.ch
	case KindBool:
		return v.b == other.b
	case KindString:
		return v.s == other.s
	case KindRef:
		return v.ptr == other.ptr && v.meta.Container == other.meta.Container
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt:
		return fmt.Sprintf("int(%d)", v.i)
	case KindFloat:
		return fmt.Sprintf("float(%g)", v.f)
	case KindChar:
		return fmt.Sprintf("char(%q)", v.ch)
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.b)
	case KindString:
		return fmt.Sprintf("string(%q)", v.s)
	case KindRef:
		return fmt.Sprintf("ref(%p, container=%t)", v.ptr, v.meta.Container)
	default:
		return "<invalid value>"
	}
}
