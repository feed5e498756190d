// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package container implements the two generic container shapes spec.md
// §4.3 names: Vec (an ordered sequence) and Object (a key-to-value mapping
// keyed by owned strings). Both are heap-managed, so both are always
// reached through a *heap.Wrapper whose Children callback walks the
// container's elements — the "container vtable's children_fn" spec.md
// §4.1 describes.
package container

import (
	"github.com/probechain/pr47/internal/al31f/heap"
	"github.com/probechain/pr47/internal/al31f/value"
)

// Vec is an ordered, growable sequence of Values.
type Vec struct {
	Elems []value.Value
}

// NewVec allocates a Wrapper around a fresh, empty Vec.
func NewVec() *heap.Wrapper {
	v := &Vec{}
	return heap.New(v, func() []heap.ChildRef { return vecChildren(v) }, func() {})
}

func vecChildren(v *Vec) []heap.ChildRef {
	refs := make([]heap.ChildRef, len(v.Elems))
	for i, e := range v.Elems {
		refs[i] = valueChild{e}
	}
	return refs
}

// Push appends v to the end of the sequence.
func (vec *Vec) Push(v value.Value) { vec.Elems = append(vec.Elems, v) }

// Pop removes and returns the last element. ok is false on an empty Vec.
func (vec *Vec) Pop() (v value.Value, ok bool) {
	if len(vec.Elems) == 0 {
		return value.NewNull(), false
	}
	n := len(vec.Elems) - 1
	v = vec.Elems[n]
	vec.Elems = vec.Elems[:n]
	return v, true
}

// Index returns the element at position idx. ok is false if idx is out of
// range, letting the executor raise IndexOutOfBounds with the offending
// index rather than panicking.
func (vec *Vec) Index(idx int64) (v value.Value, ok bool) {
	if idx < 0 || idx >= int64(len(vec.Elems)) {
		return value.NewNull(), false
	}
	return vec.Elems[idx], true
}

// Len returns the number of elements.
func (vec *Vec) Len() int64 { return int64(len(vec.Elems)) }

// Object is a key-to-value mapping keyed by owned strings.
type Object struct {
	Fields map[string]value.Value
}

// NewObject allocates a Wrapper around a fresh, empty Object.
func NewObject() *heap.Wrapper {
	o := &Object{Fields: make(map[string]value.Value)}
	return heap.New(o, func() []heap.ChildRef { return objectChildren(o) }, func() {})
}

func objectChildren(o *Object) []heap.ChildRef {
	refs := make([]heap.ChildRef, 0, len(o.Fields))
	for _, v := range o.Fields {
		refs = append(refs, valueChild{v})
	}
	return refs
}

// Get looks up key. ok is false if the key is absent.
func (o *Object) Get(key string) (v value.Value, ok bool) {
	v, ok = o.Fields[key]
	return
}

// Put sets key to v, creating or overwriting the entry.
func (o *Object) Put(key string, v value.Value) { o.Fields[key] = v }

// valueChild adapts a value.Value to heap.ChildRef.
type valueChild struct{ v value.Value }

func (c valueChild) IsNull() bool { return c.v.IsNull() }
func (c valueChild) Wrapper() *heap.Wrapper {
	if !c.v.IsRef() {
		return nil
	}
	w, _ := c.v.Ptr().(*heap.Wrapper)
	return w
}
func (c valueChild) Container() heap.ContainerHandle { return nil }
