// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package stack implements the frame-based value storage described in
// spec.md §4.2: an ordered sequence of value slots plus an ordered sequence
// of FrameInfo records, with at most one "current" (innermost) frame.
package stack

import (
	"fmt"

	"github.com/probechain/pr47/internal/al31f/value"
)

// FrameInfo describes one active invocation's window into the slot vector,
// matching spec.md §3's FrameInfo record exactly.
type FrameInfo struct {
	FrameStart   int
	FrameEnd     int
	RetValueLocs []int
	RetAddr      uint32
	FuncID       uint32
}

func (f FrameInfo) size() int { return f.FrameEnd - f.FrameStart }

// Stack is a vector of value slots plus a vector of frames, as spec.md §3
// and §4.2 describe. The zero value is not ready for use; call New.
type Stack struct {
	slots  []value.Value
	frames []FrameInfo
}

// New returns an empty Stack with capacity pre-reserved for cap0 slots.
func New(cap0 int) *Stack {
	return &Stack{
		slots:  make([]value.Value, 0, cap0),
		frames: make([]FrameInfo, 0, 16),
	}
}

// Len returns the total number of live slots across every frame.
func (s *Stack) Len() int { return len(s.slots) }

// Depth returns the number of active frames.
func (s *Stack) Depth() int { return len(s.frames) }

// CurrentFrame returns the innermost (current) frame's info. Panics if the
// stack is empty — callers must not call this on a stack with no frames.
func (s *Stack) CurrentFrame() FrameInfo {
	return s.frames[len(s.frames)-1]
}

// ExtFuncCallGrowStack pushes a bottom frame of frameSize slots for an
// externally-initiated call (spec.md §4.2 `ext_func_call_grow_stack`): args
// are copied into the first len(args) slots, ret_addr is 0 and
// ret_value_locs is empty since there is no caller frame to return into.
func (s *Stack) ExtFuncCallGrowStack(funcID uint32, frameSize int, args []value.Value) error {
	if len(args) > frameSize {
		return fmt.Errorf("stack: %d args do not fit in a %d-slot frame", len(args), frameSize)
	}
	start := len(s.slots)
	s.growSlotsBy(frameSize)
	copy(s.slots[start:], args)
	s.frames = append(s.frames, FrameInfo{
		FrameStart: start,
		FrameEnd:   start + frameSize,
		FuncID:     funcID,
		RetAddr:    0,
	})
	return nil
}

// FuncCallGrowStack pushes a new frame above the current one for an
// intra-VM call (spec.md §4.2 `func_call_grow_stack`): argument values are
// copied from argLocs (frame-relative to the *caller*) into the callee's
// leading slots.
func (s *Stack) FuncCallGrowStack(funcID uint32, frameSize int, argLocs []int, retLocs []int, retAddr uint32) error {
	if len(s.frames) == 0 {
		return fmt.Errorf("stack: FuncCallGrowStack requires an existing caller frame")
	}
	caller := s.CurrentFrame()
	if len(argLocs) > frameSize {
		return fmt.Errorf("stack: %d args do not fit in a %d-slot frame", len(argLocs), frameSize)
	}

	args := make([]value.Value, len(argLocs))
	for i, loc := range argLocs {
		idx := caller.FrameStart + loc
		if idx < caller.FrameStart || idx >= caller.FrameEnd {
			return fmt.Errorf("stack: arg slot %d out of range for caller frame [%d,%d)", loc, caller.FrameStart, caller.FrameEnd)
		}
		args[i] = s.slots[idx]
	}

	start := len(s.slots)
	s.growSlotsBy(frameSize)
	copy(s.slots[start:], args)
	s.frames = append(s.frames, FrameInfo{
		FrameStart:   start,
		FrameEnd:     start + frameSize,
		RetValueLocs: append([]int(nil), retLocs...),
		RetAddr:      retAddr,
		FuncID:       funcID,
	})
	return nil
}

// DoneFuncCallShrinkStack pops the current frame (spec.md §4.2
// `done_func_call_shrink_stack`). If a caller frame exists, the listed
// retValues are copied into the caller's ret_value_locs and
// (callerFound=true, retAddr) is returned; if the popped frame was the
// bottom frame, callerFound is false and the VMThread should finish.
func (s *Stack) DoneFuncCallShrinkStack(retValues []value.Value) (callerFound bool, retAddr uint32, err error) {
	if len(s.frames) == 0 {
		return false, 0, fmt.Errorf("stack: no active frame to shrink")
	}
	popped := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.slots = s.slots[:popped.FrameStart]

	if len(s.frames) == 0 {
		return false, 0, nil
	}
	caller := s.CurrentFrame()
	if len(retValues) != len(popped.RetValueLocs) {
		return false, 0, fmt.Errorf("stack: callee returned %d values, frame declared %d ret_value_locs", len(retValues), len(popped.RetValueLocs))
	}
	for i, loc := range popped.RetValueLocs {
		idx := caller.FrameStart + loc
		if idx < caller.FrameStart || idx >= caller.FrameEnd {
			return false, 0, fmt.Errorf("stack: ret slot %d out of range for caller frame [%d,%d)", loc, caller.FrameStart, caller.FrameEnd)
		}
		s.slots[idx] = retValues[i]
	}
	return true, popped.RetAddr, nil
}

// UnwindShrinkSlice pops the current frame without moving return values,
// used by exception unwinding (spec.md §4.2 `unwind_shrink_slice`).
func (s *Stack) UnwindShrinkSlice() error {
	if len(s.frames) == 0 {
		return fmt.Errorf("stack: no active frame to unwind")
	}
	popped := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	s.slots = s.slots[:popped.FrameStart]
	return nil
}

// LastFrameSlice returns a borrow of the current top frame's slots.
func (s *Stack) LastFrameSlice() []value.Value {
	if len(s.frames) == 0 {
		return nil
	}
	f := s.CurrentFrame()
	return s.slots[f.FrameStart:f.FrameEnd]
}

// Get reads the value at frame-relative offset loc within the current
// frame.
func (s *Stack) Get(loc int) value.Value {
	f := s.CurrentFrame()
	return s.slots[f.FrameStart+loc]
}

// Set writes v to frame-relative offset loc within the current frame.
func (s *Stack) Set(loc int, v value.Value) {
	f := s.CurrentFrame()
	s.slots[f.FrameStart+loc] = v
}

// AllSlots returns every live slot across every frame, in stack order. Used
// by the allocator's root-set scan (spec.md §4.1: "walk every value in every
// slot of every active stack").
func (s *Stack) AllSlots() []value.Value { return s.slots }

// growSlotsBy appends frameSize null slots to the slot vector.
func (s *Stack) growSlotsBy(frameSize int) {
	for i := 0; i < frameSize; i++ {
		s.slots = append(s.slots, value.NewNull())
	}
}

// CheckInvariants verifies spec.md §4.2's structural invariant: frame sizes
// sum to the slot vector length, frames are contiguous and non-overlapping.
// Exposed for tests; not called on the hot path.
func (s *Stack) CheckInvariants() error {
	total := 0
	for i, f := range s.frames {
		if f.size() < 0 {
			return fmt.Errorf("stack: frame %d has negative size", i)
		}
		if i > 0 && f.FrameStart != s.frames[i-1].FrameEnd {
			return fmt.Errorf("stack: frame %d does not start where frame %d ends", i, i-1)
		}
		total += f.size()
	}
	if total != len(s.slots) {
		return fmt.Errorf("stack: frame sizes sum to %d, slot vector has %d entries", total, len(s.slots))
	}
	return nil
}
