// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package coroutine implements spec.md §4.7's single-permit scheduler: every
// VMThread sharing an Allocator must hold the one VM-wide permit while it is
// actually touching VM state, and must give it up at every suspension point
// (an AWAIT, a spawned task's first resumption) so a sibling coroutine can
// run. This directly serializes access the way a single-threaded interpreter
// would, without requiring every package above it to take its own locks.
package coroutine

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Permit is a single-slot weighted semaphore: exactly one coroutine holds it
// at a time. It satisfies executor.Permit (Release/Acquire) without this
// package importing executor, keeping the dependency one-directional.
type Permit struct {
	sem *semaphore.Weighted
}

// NewPermit returns a Permit already held by the caller (matching
// spec.md §4.7: the thread that creates a VM owns the initial permit).
func NewPermit() *Permit {
	p := &Permit{sem: semaphore.NewWeighted(1)}
	_ = p.sem.Acquire(context.Background(), 1)
	return p
}

// Release gives up the permit, letting a blocked Acquire elsewhere proceed.
func (p *Permit) Release() { p.sem.Release(1) }

// Acquire blocks until the permit is available, then takes it.
func (p *Permit) Acquire() { _ = p.sem.Acquire(context.Background(), 1) }

// TryAcquire attempts to take the permit without blocking and reports
// whether it succeeded. Nothing in this package calls it.
func (p *Permit) TryAcquire() bool { return p.sem.TryAcquire(1) }

// TaskID identifies one spawned coroutine task (spec.md §4.7 `co_spawn_task`).
type TaskID = uuid.UUID

// NewTaskID returns a fresh random task identifier.
func NewTaskID() TaskID { return uuid.New() }
