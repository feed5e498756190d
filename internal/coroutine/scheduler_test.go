// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package coroutine

import (
	"testing"
	"time"

	"github.com/probechain/pr47/internal/al31f/alloc"
	"github.com/probechain/pr47/internal/al31f/bytecode"
	"github.com/probechain/pr47/internal/al31f/value"
)

// identityProgram returns a one-function program: RETURN_ONE on slot 0,
// i.e. `func f(x) { return x }`.
func identityProgram() *bytecode.CompiledProgram {
	return &bytecode.CompiledProgram{
		Code: []bytecode.Instruction{
			{Op: bytecode.OpReturnOne, A: 0},
		},
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 1, RetCount: 1, StackSize: 1},
		},
	}
}

func TestSpawnAndAwaitReturnsTaskResult(t *testing.T) {
	al := alloc.New(0, nil)
	sched := NewScheduler(identityProgram(), al, nil)

	id := sched.SpawnTask(0, []value.Value{value.NewInt(42)})
	sched.permit.Release() // let the spawned goroutine run

	res, err := sched.Await(id)
	sched.permit.Acquire() // restore the caller's permit ownership
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("task failed: %v", res.Err)
	}
	if len(res.Values) != 1 || res.Values[0].Int() != 42 {
		t.Fatalf("got %v, want [42]", res.Values)
	}
}

func TestYieldDoesNotDeadlock(t *testing.T) {
	al := alloc.New(0, nil)
	sched := NewScheduler(identityProgram(), al, nil)

	// The test goroutine holds the initial permit (NewScheduler's contract);
	// Yield must give it up and immediately reclaim it without blocking
	// forever when no other coroutine is contending for it.
	done := make(chan struct{})
	go func() {
		sched.Yield()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Yield appears to have deadlocked")
	}
}
