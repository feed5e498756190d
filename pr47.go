// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package pr47 is the host-facing surface of the AL31F execution core: it
// wires together an Allocator, a CompiledProgram and one or more VMThreads
// behind the small set of entry points an embedding application actually
// calls (spec.md §4 "Host API"): construct a VM, run a function to
// completion synchronously, or hand it off to the coroutine scheduler.
package pr47

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/probechain/pr47/internal/al31f/alloc"
	"github.com/probechain/pr47/internal/al31f/bytecode"
	"github.com/probechain/pr47/internal/al31f/executor"
	"github.com/probechain/pr47/internal/al31f/value"
	"github.com/probechain/pr47/internal/coroutine"
	"github.com/probechain/pr47/stdlib/config"
)

// Value re-exports the tagged Value cell so host code never needs to import
// an internal package directly.
type Value = value.Value

var (
	// NewIntValue wraps an int64 as a script-visible Value.
	NewIntValue = value.NewInt
	// NewFloatValue wraps a float64 as a script-visible Value.
	NewFloatValue = value.NewFloat
	// NewCharValue wraps a rune as a script-visible Value.
	NewCharValue = value.NewChar
	// NewBoolValue wraps a bool as a script-visible Value.
	NewBoolValue = value.NewBool
	// NewStringValue wraps a string as a script-visible Value.
	NewStringValue = value.NewString
	// NewNullValue returns the null Value.
	NewNullValue = value.NewNull
)

// VM is one execution core instance: a CompiledProgram, its Allocator, and
// the coroutine Scheduler multiplexing access to it. Create one per loaded
// script module.
type VM struct {
	program *bytecode.CompiledProgram
	alloc   *alloc.Allocator
	sched   *coroutine.Scheduler
	log     *zap.SugaredLogger
}

// New builds a VM over program using cfg's tunables (config.Default() if
// cfg is the zero value's equivalent). log may be nil for a no-op logger.
func New(program *bytecode.CompiledProgram, cfg config.Config, log *zap.Logger) *VM {
	if cfg.GCDebtThreshold == 0 {
		cfg = config.Default()
	}
	al := alloc.New(cfg.GCDebtThreshold, log)
	sugared := zap.NewNop().Sugar()
	if log != nil {
		sugared = log.Sugar()
	}
	return &VM{
		program: program,
		alloc:   al,
		sched:   coroutine.NewScheduler(program, al, sugared),
		log:     sugared,
	}
}

// RunFunctionSync implements spec.md's `run_function_sync`: execute funcID
// to completion on a fresh VMThread and return its result values, blocking
// the calling goroutine for the duration (spec.md §4.2, §6.2).
func (vm *VM) RunFunctionSync(funcID uint32, args []Value) ([]Value, error) {
	thread := executor.New(vm.program, vm.alloc, vm.log)
	values, err := thread.RunFunction(funcID, args)
	if err != nil {
		return nil, fmt.Errorf("pr47: run_function_sync: %w", err)
	}
	return values, nil
}

// SpawnTask implements `create_vm_main_thread` + `co_spawn_task`'s
// composition for host callers that want fire-and-forget concurrency:
// start funcID as an independent coroutine and return a handle that can be
// awaited with AwaitTask.
func (vm *VM) SpawnTask(funcID uint32, args []Value) coroutine.TaskID {
	return vm.sched.SpawnTask(funcID, args)
}

// AwaitTask blocks until a task spawned with SpawnTask completes and
// returns its result.
func (vm *VM) AwaitTask(id coroutine.TaskID) ([]Value, error) {
	res, err := vm.sched.Await(id)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Values, nil
}

// Wait blocks until every task spawned on this VM has finished.
func (vm *VM) Wait() error { return vm.sched.Wait() }

// Stats reports collector counters for diagnostics (spec.md §4.1's
// collections/freed counters).
func (vm *VM) Stats() (managed, collections, freed int) { return vm.alloc.Stats() }
