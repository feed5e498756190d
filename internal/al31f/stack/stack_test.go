// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package stack

import (
	"testing"

	"github.com/probechain/pr47/internal/al31f/value"
)

func TestExtFuncCallGrowStackCopiesArgs(t *testing.T) {
	s := New(8)
	if err := s.ExtFuncCallGrowStack(0, 4, []value.Value{value.NewInt(1), value.NewInt(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Get(0).Int(); got != 1 {
		t.Fatalf("slot 0 = %d, want 1", got)
	}
	if got := s.Get(1).Int(); got != 2 {
		t.Fatalf("slot 1 = %d, want 2", got)
	}
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("invariant violation: %v", err)
	}
}

func TestFuncCallGrowStackAndReturn(t *testing.T) {
	s := New(8)
	must(t, s.ExtFuncCallGrowStack(0, 2, []value.Value{value.NewInt(10), value.NewInt(20)}))

	// Caller calls callee(args at [0,1]) expecting the result back at [0].
	must(t, s.FuncCallGrowStack(1, 2, []int{0, 1}, []int{0}, 42))
	if s.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", s.Depth())
	}
	if got := s.Get(0).Int(); got != 10 {
		t.Fatalf("callee arg 0 = %d, want 10", got)
	}

	callerFound, retAddr, err := s.DoneFuncCallShrinkStack([]value.Value{value.NewInt(30)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !callerFound {
		t.Fatalf("expected a caller frame to remain")
	}
	if retAddr != 42 {
		t.Fatalf("retAddr = %d, want 42", retAddr)
	}
	if got := s.Get(0).Int(); got != 30 {
		t.Fatalf("caller slot 0 after return = %d, want 30", got)
	}
	if err := s.CheckInvariants(); err != nil {
		t.Fatalf("invariant violation: %v", err)
	}
}

func TestDoneFuncCallShrinkStackOnBottomFrame(t *testing.T) {
	s := New(8)
	must(t, s.ExtFuncCallGrowStack(0, 1, nil))

	callerFound, _, err := s.DoneFuncCallShrinkStack(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if callerFound {
		t.Fatalf("popping the bottom frame must report no caller")
	}
	if s.Depth() != 0 {
		t.Fatalf("depth = %d, want 0", s.Depth())
	}
}

func TestUnwindShrinkSliceDropsReturnValues(t *testing.T) {
	s := New(8)
	must(t, s.ExtFuncCallGrowStack(0, 2, nil))
	must(t, s.FuncCallGrowStack(1, 2, nil, []int{0}, 1))

	if err := s.UnwindShrinkSlice(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Depth() != 1 {
		t.Fatalf("depth after unwind = %d, want 1", s.Depth())
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
