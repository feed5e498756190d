// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package exception

import (
	"testing"

	"github.com/probechain/pr47/internal/al31f/value"
)

func TestTraceLengthMatchesFramesPopped(t *testing.T) {
	e := NewUnchecked(&Unchecked{Kind: DivideByZero})
	e.AppendFrame(2, 10)
	e.AppendFrame(1, 4)
	e.AppendFrame(0, 1)

	if len(e.Trace) != 3 {
		t.Fatalf("trace length = %d, want 3", len(e.Trace))
	}
	if e.Trace[0].FuncID != 2 || e.Trace[2].FuncID != 0 {
		t.Fatalf("trace must be innermost-first")
	}
}

func TestIsKindDistinguishesUncheckedVariants(t *testing.T) {
	e := NewUnchecked(&Unchecked{Kind: DivideByZero})
	if !e.IsKind(DivideByZero) {
		t.Fatalf("expected IsKind(DivideByZero) to hold")
	}
	if e.IsKind(UnexpectedNull) {
		t.Fatalf("expected IsKind(UnexpectedNull) to be false")
	}
}

func TestCheckedExceptionIsNotAnUncheckedKind(t *testing.T) {
	checked := NewChecked(value.NewInt(1))
	if checked.IsKind(DivideByZero) {
		t.Fatalf("a checked exception must never match IsKind")
	}
}
