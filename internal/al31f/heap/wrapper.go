// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package heap

import (
	"errors"
	"fmt"
)

// GCColor is the tri-color mark status carried in a Wrapper's gc_info byte.
type GCColor uint8

const (
	// Unmarked (white): not yet visited this collection cycle.
	Unmarked GCColor = iota
	// Marked (black): visited and all children enumerated.
	Marked
)

func (c GCColor) String() string {
	if c == Marked {
		return "marked"
	}
	return "unmarked"
}

// ErrOwnershipViolation is returned when an operation requires permissions
// the wrapper's current ownership state does not grant (spec.md
// `OwnershipCheckFailure`).
var ErrOwnershipViolation = errors.New("heap: ownership check failure")

// Children enumerates the direct child Values of a heap object, used by the
// collector's scan phase (spec.md §4.1 "enumerate its children"). Installed
// once per wrapper at allocation time — the per-type callback the spec's
// "container vtable's children_fn" describes.
type Children func() []ChildRef

// ChildRef is a reference to a child Value somewhere inside a managed
// object; the collector only needs to know whether it is null and, if not,
// to walk to the referenced Wrapper, so we keep it as the minimal interface
// both Wrapper and generic containers implement.
type ChildRef interface {
	// IsNull reports whether this child slot currently holds no reference.
	IsNull() bool
	// Wrapper returns the child's Wrapper. Generic containers are held in
	// Wrappers too (their Children callback walks the elements), so a
	// container reference also returns its Wrapper here.
	Wrapper() *Wrapper
	// Container returns the child's container handle. The ChildRef
	// implementations in this module always return nil, and the collector
	// does not call it.
	Container() ContainerHandle
}

// ContainerHandle is the minimal interface a generic container (Vec, Object)
// must implement to participate in GC scanning and disposal.
type ContainerHandle interface {
	// Children enumerates the container's direct Value children.
	Children() []ChildRef
	// Drop releases any non-GC resources held by the container (e.g. a map's
	// backing storage). Called once, during sweep, when the owning Wrapper
	// (or a dedicated container Wrapper) is collected.
	Drop()
}

// DropFn releases resources owned by the wrapped value, invoked exactly once
// by the allocator's sweep phase.
type DropFn func()

// Wrapper is the uniform heap header prepended to every managed object
// (spec.md §3). Field order mirrors the spec's fixed byte-offset layout:
// refcount at +0, ownership_info at +4, ownership_info2 at +5, gc_info at
// +6, data_offset at +7 — those offsets describe a C-style packed struct in
// the source language; here the equivalent contract is "every Wrapper
// exposes these five fields through accessors regardless of what T is",
// which is what every caller in this codebase actually depends on.
type Wrapper struct {
	refcount       uint32
	ownershipInfo  OwnershipState
	ownershipInfo2 OwnershipState // saved previous state (async shared borrow)
	gcInfo         GCColor
	dataOffset     uint8 // informational; always 0 for Go since T is boxed via interface{}

	data     interface{} // the owned T, or an externally-owned *T
	owned    bool        // true if `data` holds T by value/box, false if it's a raw external pointer
	children Children
	drop     DropFn

	// DebugTag is an optional diagnostic label. Nothing in this package sets
	// it; it stays empty unless a caller assigns it.
	DebugTag string
}

// New allocates a Wrapper around an owned value of initial state VMOwned.
func New(data interface{}, children Children, drop DropFn) *Wrapper {
	return &Wrapper{
		ownershipInfo: VMOwned,
		gcInfo:        Unmarked,
		data:          data,
		owned:         true,
		children:      children,
		drop:          drop,
	}
}

// NewExternal allocates a Wrapper around a pointer the host owns. readWrite
// selects SharedFromRust (false) or MutSharedFromRust (true).
func NewExternal(data interface{}, readWrite bool) *Wrapper {
	state := SharedFromRust
	if readWrite {
		state = MutSharedFromRust
	}
	return &Wrapper{
		ownershipInfo: state,
		gcInfo:        Unmarked,
		data:          data,
		owned:         false,
	}
}

// Refcount returns the number of active native shares.
func (w *Wrapper) Refcount() uint32 { return w.refcount }

// State returns the current ownership state.
func (w *Wrapper) State() OwnershipState { return w.ownershipInfo }

// SavedState returns the ownership state saved before the most recent async
// shared borrow, used to restore on guard drop.
func (w *Wrapper) SavedState() OwnershipState { return w.ownershipInfo2 }

// Color returns the GC mark color.
func (w *Wrapper) Color() GCColor { return w.gcInfo }

// SetColor sets the GC mark color; used by the allocator's mark/reset phases.
func (w *Wrapper) SetColor(c GCColor) { w.gcInfo = c }

// DataOffset returns the byte offset from the wrapper base to the contained
// T, in the spirit of spec.md §8's round-trip property. Since Go has no
// manual layout, this is always 0; the accessor exists so the invariant
// ("data_offset equals the byte distance... verifiable by round-tripping
// allocation and field accessors") is checkable by a test rather than
// assumed.
func (w *Wrapper) DataOffset() uint8 { return w.dataOffset }

// Data returns the contained value (boxed T, or the raw externally-owned
// pointer).
func (w *Wrapper) Data() interface{} { return w.data }

// Owned reports whether the wrapper owns `data` inline (true) or merely
// holds a pointer to externally-owned data (false).
func (w *Wrapper) Owned() bool { return w.owned }

// Children enumerates this wrapper's GC children, or nil if it holds a leaf
// value with no references.
func (w *Wrapper) Children() []ChildRef {
	if w.children == nil {
		return nil
	}
	return w.children()
}

// Drop invokes the wrapper's drop function, if any. Called exactly once, by
// the allocator's sweep phase, and only when State().Collectable() holds.
func (w *Wrapper) Drop() {
	if w.drop != nil {
		w.drop()
	}
}

// violation builds an ErrOwnershipViolation wrapping the wrapper's address
// and the permission mask the failed operation required.
func (w *Wrapper) violation(required Mask) error {
	return fmt.Errorf("%w: wrapper %p state=%s required=%s granted=%s",
		ErrOwnershipViolation, w, w.ownershipInfo, required, w.ownershipInfo.Permissions())
}

// CheckMove verifies w can be moved out: read+write+move+owned bits set.
// spec.md §4.8 `value_move_out_check`.
func (w *Wrapper) CheckMove() error {
	need := MaskRead | MaskWrite | MaskMove | MaskOwned
	if w.ownershipInfo.Permissions()&need != need {
		return w.violation(need)
	}
	return nil
}

// MoveOut transitions w to MovedToRust after a successful CheckMove, and
// returns the contained data. Further access after this call is an error,
// matching spec.md's MovedToRust semantics.
func (w *Wrapper) MoveOut() (interface{}, error) {
	if err := w.CheckMove(); err != nil {
		return nil, err
	}
	data := w.data
	w.ownershipInfo = MovedToRust
	w.data = nil
	return data, nil
}

// Guard restores a wrapper's ownership state when an FFI borrow ends. The
// zero Guard is a no-op Release (used when a borrow needed no state
// transition because the wrapper was already appropriately shared).
type Guard struct {
	w        *Wrapper
	restore  OwnershipState
	refDelta int32
	active   bool
}

// Release restores the wrapper to the state recorded when the guard was
// created, decrementing the refcount it incremented. Release is idempotent:
// calling it more than once is a no-op after the first call, matching the
// "borrow/drop pairs are idempotent" property in spec.md §8.
func (g *Guard) Release() {
	if !g.active {
		return
	}
	g.active = false
	if g.w == nil {
		return
	}
	if g.refDelta != 0 {
		g.w.refcount = uint32(int32(g.w.refcount) - g.refDelta)
	}
	if g.w.refcount == 0 {
		g.w.ownershipInfo = g.restore
	}
}

// BorrowRef implements spec.md §4.8 `value_into_ref`: verify readable; if
// currently writable (VMOwned), demote to SharedToRust and return a guard
// that restores on release; if already SharedToRust, bump the refcount and
// return a guard that only decrements it.
func (w *Wrapper) BorrowRef() (*Guard, error) {
	if w.ownershipInfo.Permissions()&MaskRead == 0 {
		return nil, w.violation(MaskRead)
	}
	switch w.ownershipInfo {
	case VMOwned:
		prev := w.ownershipInfo
		w.ownershipInfo2 = prev
		w.ownershipInfo = SharedToRust
		w.refcount = 1
		return &Guard{w: w, restore: prev, refDelta: 1, active: true}, nil
	case SharedToRust:
		w.refcount++
		return &Guard{w: w, restore: w.ownershipInfo2, refDelta: 1, active: true}, nil
	case SharedFromRust, MutSharedFromRust:
		// Already an external read-only or read-write view; no transition,
		// no guard needed to restore anything.
		return &Guard{active: false}, nil
	default:
		return nil, w.violation(MaskRead)
	}
}

// BorrowMutRef implements spec.md §4.8 `value_into_mut_ref`: verify
// writable, set to MutSharedToRust, always return a guard. Fails with
// ErrOwnershipViolation (write bit required) if any read share is currently
// outstanding, matching spec.md §3's rule that a mutable borrow must refuse
// when a read share is live.
func (w *Wrapper) BorrowMutRef() (*Guard, error) {
	need := MaskRead | MaskWrite
	if w.ownershipInfo == SharedToRust && w.refcount > 0 {
		return nil, w.violation(need)
	}
	if w.ownershipInfo == MutSharedToRust {
		return nil, w.violation(need)
	}
	if w.ownershipInfo.Permissions()&need != need {
		return nil, w.violation(need)
	}
	prev := w.ownershipInfo
	w.ownershipInfo2 = prev
	w.ownershipInfo = MutSharedToRust
	return &Guard{w: w, restore: prev, active: true}, nil
}
