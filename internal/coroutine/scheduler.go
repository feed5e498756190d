// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package coroutine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/probechain/pr47/internal/al31f/alloc"
	"github.com/probechain/pr47/internal/al31f/bytecode"
	"github.com/probechain/pr47/internal/al31f/executor"
	"github.com/probechain/pr47/internal/al31f/value"
)

// TaskResult is what a spawned task resolves to once its body returns or
// raises an unhandled exception (spec.md §4.7 `finish`).
type TaskResult struct {
	Values []value.Value
	Err    error
}

// Scheduler owns the single Permit and the group of goroutines racing for
// it, one per live coroutine (spec.md §4.7). All VMThreads it creates share
// one Allocator and CompiledProgram, so every coroutine's stack is scanned
// by the same collector as an independent root set (alloc.AddStack is
// called once per thread in executor.New).
type Scheduler struct {
	program *bytecode.CompiledProgram
	alloc   *alloc.Allocator
	permit  *Permit
	log     *zap.SugaredLogger

	mu      sync.Mutex
	results map[TaskID]TaskResult
	done    map[TaskID]chan struct{}

	group *errgroup.Group
	ctx   context.Context
}

func (s *Scheduler) doneChan(id TaskID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.done[id]
	if !ok {
		ch = make(chan struct{})
		s.done[id] = ch
	}
	return ch
}

// NewScheduler creates a Scheduler over program/al, with the calling
// goroutine holding the initial permit (matching NewPermit's contract).
func NewScheduler(program *bytecode.CompiledProgram, al *alloc.Allocator, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	group, ctx := errgroup.WithContext(context.Background())
	return &Scheduler{
		program: program,
		alloc:   al,
		permit:  NewPermit(),
		log:     log,
		results: make(map[TaskID]TaskResult),
		done:    make(map[TaskID]chan struct{}),
		group:   group,
		ctx:     ctx,
	}
}

// SpawnTask implements spec.md §4.7 `co_spawn_task`: start funcID as a new
// coroutine, running on its own VMThread and stack, reporting its result
// under a fresh TaskID once it finishes. The caller retains the permit
// throughout spawn — the new task only contends for it once its goroutine
// actually starts running.
func (s *Scheduler) SpawnTask(funcID uint32, args []value.Value) TaskID {
	id := NewTaskID()
	thread := executor.New(s.program, s.alloc, s.log)
	thread.Permit = s.permit

	s.group.Go(func() error {
		s.permit.Acquire()
		values, err := thread.RunFunction(funcID, args)
		s.permit.Release()

		s.mu.Lock()
		s.results[id] = TaskResult{Values: values, Err: err}
		s.mu.Unlock()
		close(s.doneChan(id))
		return nil // task failures surface via TaskResult.Err, not the group's error
	})
	return id
}

// Yield implements spec.md §4.7 `co_yield`: give up the permit and
// immediately try to reacquire it, giving any other runnable coroutine a
// chance to make progress first.
func (s *Scheduler) Yield() {
	s.permit.Release()
	s.permit.Acquire()
}

// Await blocks the calling goroutine until id's task has finished, without
// holding the permit while it waits — the caller must already have released
// it (this mirrors executor.VMThread.await's own Release/Acquire around the
// blocking receive).
func (s *Scheduler) Await(id TaskID) (TaskResult, error) {
	select {
	case <-s.doneChan(id):
		s.mu.Lock()
		res := s.results[id]
		s.mu.Unlock()
		return res, nil
	case <-s.ctx.Done():
		return TaskResult{}, fmt.Errorf("coroutine: scheduler stopped: %w", s.ctx.Err())
	}
}

// Wait blocks until every spawned task has finished. Hosts reach it through
// the root package's VM.Wait; RunFunctionSync does not call it.
func (s *Scheduler) Wait() error { return s.group.Wait() }
