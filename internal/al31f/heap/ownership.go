// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package heap implements the Wrapper heap header and the ownership state
// machine described in spec.md §3: every heap-managed object is prefixed
// with a Wrapper carrying a refcount, the current and saved ownership
// states, a GC color, and the byte offset to the contained value.
package heap

import "fmt"

// OwnershipState encodes the read/write/move/collect/owned permission bits
// spec.md §3 calls out as "the core invariant of the whole runtime".
type OwnershipState uint8

const (
	// VMOwned is the initial state of values constructed by VM code:
	// readable, writable, movable, collectable, owned.
	VMOwned OwnershipState = iota
	// SharedFromRust is a read-only view over host-provided data: not
	// collectable, not owned.
	SharedFromRust
	// MutSharedFromRust is a read-write view over host-provided data: not
	// collectable, not owned.
	MutSharedFromRust
	// SharedToRust means the value is currently lent out to host code
	// read-only; refcount >= 1.
	SharedToRust
	// MutSharedToRust means the value is currently lent out to host code
	// read-write; exclusive.
	MutSharedToRust
	// MovedToRust means the value has been extracted; further access is an
	// error.
	MovedToRust
)

func (s OwnershipState) String() string {
	switch s {
	case VMOwned:
		return "VMOwned"
	case SharedFromRust:
		return "SharedFromRust"
	case MutSharedFromRust:
		return "MutSharedFromRust"
	case SharedToRust:
		return "SharedToRust"
	case MutSharedToRust:
		return "MutSharedToRust"
	case MovedToRust:
		return "MovedToRust"
	default:
		return fmt.Sprintf("OwnershipState(%d)", uint8(s))
	}
}

// Mask is a bitmask of permissions, used both to describe what a state grants
// and to describe what an operation requires (e.g. the `expected_mask` field
// of `OwnershipCheckFailure` in spec.md §4.6).
type Mask uint8

const (
	MaskRead Mask = 1 << iota
	MaskWrite
	MaskMove
	MaskCollect
	MaskOwned
)

func (m Mask) String() string {
	s := ""
	if m&MaskRead != 0 {
		s += "R"
	}
	if m&MaskWrite != 0 {
		s += "W"
	}
	if m&MaskMove != 0 {
		s += "M"
	}
	if m&MaskCollect != 0 {
		s += "C"
	}
	if m&MaskOwned != 0 {
		s += "O"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Permissions returns the permission mask granted by state s.
func (s OwnershipState) Permissions() Mask {
	switch s {
	case VMOwned:
		return MaskRead | MaskWrite | MaskMove | MaskCollect | MaskOwned
	case SharedFromRust:
		return MaskRead
	case MutSharedFromRust:
		return MaskRead | MaskWrite
	case SharedToRust:
		return MaskRead | MaskCollect
	case MutSharedToRust:
		return MaskRead | MaskWrite | MaskCollect
	case MovedToRust:
		return 0
	default:
		return 0
	}
}

// Collectable reports whether a wrapper in state s may be freed by the
// collector. Only VMOwned, SharedToRust and MutSharedToRust are collectable
// per spec.md §3's lifecycle invariants; externally-owned shares
// (SharedFromRust/MutSharedFromRust) and moved-out values are not.
func (s OwnershipState) Collectable() bool {
	return s.Permissions()&MaskCollect != 0
}

// Owned reports whether s is an owned state (VMOwned).
func (s OwnershipState) Owned() bool {
	return s == VMOwned
}
