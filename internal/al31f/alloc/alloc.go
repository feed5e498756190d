// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package alloc implements the AL31F allocator and tri-color mark/sweep
// collector described in spec.md §4.1: it owns the set of managed heap
// objects, the set of registered root-providing stacks, and the debt
// counter that triggers collection.
package alloc

import (
	"fmt"

	mapset "github.com/deckarep/golang-set"
	"go.uber.org/zap"

	"github.com/probechain/pr47/internal/al31f/heap"
	"github.com/probechain/pr47/internal/al31f/value"
)

// StackRoots is the minimal view of a Stack the allocator needs to treat it
// as a root-set provider, matching spec.md §4.1's `add_stack`/`remove_stack`.
type StackRoots interface {
	AllSlots() []value.Value
}

// DefaultDebtThreshold is the default number of allocations between
// collections (spec.md §4.1: "default 1024 allocations").
const DefaultDebtThreshold = 1024

// pinnedSet is one call to pin_objects: a live flag plus the pinned values,
// which are added as additional roots for as long as the flag is false
// (unset = still pinned).
type pinnedSet struct {
	values   []value.Value
	released bool
}

// Allocator owns every heap-managed object and every registered stack.
// It is only ever touched while the coroutine permit is held (spec.md
// §4.1's concurrency note), so it does no internal locking of its own.
type Allocator struct {
	managed   map[*heap.Wrapper]struct{}
	stacks    mapset.Set // set of StackRoots
	pins      []*pinnedSet
	debt      int
	threshold int
	gcAllowed bool

	log *zap.SugaredLogger

	collections int
	freed       int
}

// New creates an Allocator with the given debt threshold (0 selects
// DefaultDebtThreshold) and GC initially allowed.
func New(threshold int, log *zap.Logger) *Allocator {
	if threshold <= 0 {
		threshold = DefaultDebtThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{
		managed:   make(map[*heap.Wrapper]struct{}),
		stacks:    mapset.NewSet(),
		threshold: threshold,
		gcAllowed: true,
		log:       log.Sugar(),
	}
}

// AddStack registers stack as a root-set provider. Must be paired with a
// matching RemoveStack (spec.md §4.1).
func (a *Allocator) AddStack(s StackRoots) {
	a.stacks.Add(s)
}

// RemoveStack deregisters a previously-registered stack.
func (a *Allocator) RemoveStack(s StackRoots) {
	a.stacks.Remove(s)
}

// SetGCAllowed suppresses or re-enables collection, e.g. across a critical
// section mid-instruction (spec.md §4.1).
func (a *Allocator) SetGCAllowed(allowed bool) {
	a.gcAllowed = allowed
}

// AddManaged transfers ownership of a newly-allocated wrapper to the
// collector, incrementing the debt counter. If debt exceeds the threshold
// and GC is enabled, a collection runs before w is inserted (spec.md §4.1).
func (a *Allocator) AddManaged(w *heap.Wrapper) {
	if a.gcAllowed && a.debt >= a.threshold {
		a.Collect()
	}
	a.managed[w] = struct{}{}
	a.debt++
}

// Contains reports whether w is currently tracked by the allocator, the
// predicate spec.md §8's round-trip property `managed.contains(...)`
// describes.
func (a *Allocator) Contains(w *heap.Wrapper) bool {
	_, ok := a.managed[w]
	return ok
}

// MarkObject is the write barrier used when a value is stored into a
// container after the collector has already visited that container
// (spec.md §4.1 `mark_object`): it marks w (and transitively its children)
// so the tri-color invariant — no black object points to a white one — is
// not violated by a store that races the sweep.
func (a *Allocator) MarkObject(w *heap.Wrapper) {
	if w == nil || w.Color() == heap.Marked {
		return
	}
	a.markRecursive(w)
}

// PinObjects keeps values reachable until the returned release function is
// called, e.g. for values owned by an in-flight Promise (spec.md §4.1
// `pin_objects`). The spec models the unpin signal as a `*mut bool` flag;
// here it is the returned closure, which is the idiomatic Go shape for the
// same "caller controls the lifetime" contract.
func (a *Allocator) PinObjects(values []value.Value) (release func()) {
	ps := &pinnedSet{values: append([]value.Value(nil), values...)}
	a.pins = append(a.pins, ps)
	return func() { ps.released = true }
}

// Collect runs one mark/sweep cycle: reset every managed wrapper to
// Unmarked, scan every stack's slots (plus pinned sets) as roots, then sweep
// every wrapper left Unmarked whose ownership state permits collection
// (spec.md §4.1).
func (a *Allocator) Collect() {
	a.collections++
	a.debt = 0
	a.log.Debugw("gc: collection starting", "managed", len(a.managed), "cycle", a.collections)

	for w := range a.managed {
		w.SetColor(heap.Unmarked)
	}

	var worklist []*heap.Wrapper
	visitValue := func(v value.Value) {
		if v.IsNull() || !v.IsRef() {
			return
		}
		if w, ok := v.Ptr().(*heap.Wrapper); ok {
			if w.Color() == heap.Unmarked {
				worklist = append(worklist, w)
			}
		}
	}

	a.stacks.Each(func(item interface{}) bool {
		sr := item.(StackRoots)
		for _, v := range sr.AllSlots() {
			visitValue(v)
		}
		return false
	})
	for _, ps := range a.pins {
		if ps.released {
			continue
		}
		for _, v := range ps.values {
			visitValue(v)
		}
	}

	for len(worklist) > 0 {
		n := len(worklist) - 1
		w := worklist[n]
		worklist = worklist[:n]
		if w.Color() == heap.Marked {
			continue
		}
		w.SetColor(heap.Marked)
		for _, child := range w.Children() {
			if child.IsNull() {
				continue
			}
			if cw := child.Wrapper(); cw != nil && cw.Color() == heap.Unmarked {
				worklist = append(worklist, cw)
			}
			// Container children walk their own Drop/Children via the
			// container handle; since containers in this implementation are
			// always reached through a Wrapper's Children() callback (the
			// wrapper owning the container slice/map), no separate
			// container worklist is needed.
		}
	}

	swept := 0
	for w := range a.managed {
		if w.Color() != heap.Unmarked || !w.State().Collectable() {
			// Unreachable but still on loan to the host (SharedToRust,
			// MutSharedToRust, ...): the borrow guard will restore VMOwned
			// when it releases, so this wrapper is simply left for a later
			// cycle rather than freed or treated as a bug. Shutdown is the
			// place that actually enforces "every wrapper is collectable".
			continue
		}
		w.Drop()
		delete(a.managed, w)
		swept++
	}
	a.freed += swept
	a.log.Debugw("gc: collection finished", "swept", swept, "remaining", len(a.managed))
}

func (a *Allocator) markRecursive(w *heap.Wrapper) {
	w.SetColor(heap.Marked)
	for _, child := range w.Children() {
		if child.IsNull() {
			continue
		}
		if cw := child.Wrapper(); cw != nil && cw.Color() == heap.Unmarked {
			a.markRecursive(cw)
		}
	}
}

// Shutdown verifies that no managed wrapper is left in a state that forbids
// collection; spec.md §4.1 treats this as a bug that must panic/abort with
// the offending object's address.
func (a *Allocator) Shutdown() {
	for w := range a.managed {
		if !w.State().Collectable() {
			panic(fmt.Sprintf("alloc: shutdown with live non-collectable wrapper %p (state=%s)", w, w.State()))
		}
	}
}

// Stats returns simple collector counters, used by the root package's
// VM.Stats for diagnostics.
func (a *Allocator) Stats() (managed, collections, freed int) {
	return len(a.managed), a.collections, a.freed
}
