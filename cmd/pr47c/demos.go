// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/probechain/pr47/internal/al31f/alloc"
	"github.com/probechain/pr47/internal/al31f/bytecode"
	"github.com/probechain/pr47/internal/al31f/executor"
	"github.com/probechain/pr47/internal/al31f/value"
)

// loadDemo builds one of the hand-assembled CompiledPrograms listed below
// and a VMThread ready to run it, since there is no source-to-bytecode
// compiler backend to load a .probe file through yet.
func loadDemo(name string) (*executor.VMThread, uint32, []value.Value, error) {
	switch name {
	case "fib":
		return fibDemo()
	case "arith":
		return arithDemo()
	default:
		return nil, 0, nil, fmt.Errorf("pr47c: unknown demo %q (try: fib, arith)", name)
	}
}

// fibDemo computes fib(7) via intra-VM recursive calls (spec.md §8's
// recursive-call scenario): slot 0 holds n, slot 1 the recursion base-case
// bool, slots 2/3 the two recursive sub-results.
//
//	func fib(n):
//	   0: 2              -> slot4
//	   1: n < slot4      -> slot1
//	   2: jump_if_false slot1, 4
//	   3: return n
//	 4-6: call fib(n-1)  -> slot2
//	 7-9: call fib(n-2)  -> slot3
//	  10: slot2 + slot3  -> slot0
//	  11: return slot0
func fibDemo() (*executor.VMThread, uint32, []value.Value, error) {
	const fib = uint32(0)
	code := []bytecode.Instruction{
		{Op: bytecode.OpMakeIntConst, A: 4, Imm: 2},
		{Op: bytecode.OpLtInt, A: 1, B: 0, C: 4},
		{Op: bytecode.OpJumpIfFalse, A: 1, B: 4},
		{Op: bytecode.OpReturnOne, A: 0},
		{Op: bytecode.OpMakeIntConst, A: 5, Imm: 1},
		{Op: bytecode.OpSubInt, A: 6, B: 0, C: 5},
		{Op: bytecode.OpCall, FuncID: fib, ArgLocs: []int{6}, RetLocs: []int{2}},
		{Op: bytecode.OpMakeIntConst, A: 5, Imm: 2},
		{Op: bytecode.OpSubInt, A: 6, B: 0, C: 5},
		{Op: bytecode.OpCall, FuncID: fib, ArgLocs: []int{6}, RetLocs: []int{3}},
		{Op: bytecode.OpAddInt, A: 0, B: 2, C: 3},
		{Op: bytecode.OpReturnOne, A: 0},
	}
	program := &bytecode.CompiledProgram{
		Code: code,
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 1, RetCount: 1, StackSize: 8, Name: "fib"},
		},
	}
	al := alloc.New(0, zap.NewNop())
	thread := executor.New(program, al, zap.NewNop().Sugar())
	return thread, fib, []value.Value{value.NewInt(7)}, nil
}

// arithDemo computes (3 + 4) * 2 with plain register arithmetic (spec.md
// §8's basic-arithmetic scenario).
func arithDemo() (*executor.VMThread, uint32, []value.Value, error) {
	code := []bytecode.Instruction{
		{Op: bytecode.OpMakeIntConst, A: 0, Imm: 3},
		{Op: bytecode.OpMakeIntConst, A: 1, Imm: 4},
		{Op: bytecode.OpAddInt, A: 2, B: 0, C: 1},
		{Op: bytecode.OpMakeIntConst, A: 3, Imm: 2},
		{Op: bytecode.OpMulInt, A: 4, B: 2, C: 3},
		{Op: bytecode.OpReturnOne, A: 4},
	}
	program := &bytecode.CompiledProgram{
		Code: code,
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 0, RetCount: 1, StackSize: 5, Name: "arith"},
		},
	}
	al := alloc.New(0, zap.NewNop())
	thread := executor.New(program, al, zap.NewNop().Sugar())
	return thread, 0, nil, nil
}
