// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bytecode

import (
	"reflect"

	"github.com/probechain/pr47/internal/al31f/tyck"
	"github.com/probechain/pr47/internal/al31f/value"
)

// Instruction is one decoded bytecode instruction. Operands are interpreted
// according to Op; unused fields are simply left at their zero value, which
// keeps the executor's decode step a flat array index instead of a variable-
// width parse.
type Instruction struct {
	Op Opcode

	A, B, C int // frame-relative slot indices (meaning depends on Op)

	Imm       int64   // literal int operand (MakeIntConst) or jump target (Jump; JumpIfTrue/JumpIfFalse take theirs in B)
	ConstIdx  int     // constant-pool index (LoadConst/SaveConst)
	FuncID    uint32  // callee function index (Call/CallTyck)
	FFIIdx    int     // FFI/async-FFI function table index
	TyckIdx   int     // index into the owning function's param_tyck_info, for TypeCheck
	TypeID    reflect.Type // exception type operand; the executor does not read it (handlers match on ExceptionHandler.ExceptionID)

	ArgLocs []int // argument slot list for Call*/FFICall*, or the returned slots for Return
	RetLocs []int // caller's destination slots for the results of Call*/FFICall*
}

// ExceptionHandler is one entry of a CompiledFunction's handler table
// (spec.md §4.6): an instruction-pointer range, the TypeId a checked
// exception must match, and the address execution resumes at.
type ExceptionHandler struct {
	StartPC     int
	EndPC       int
	ExceptionID reflect.Type
	HandlerAddr int
}

// Covers reports whether pc falls within [StartPC, EndPC).
func (h ExceptionHandler) Covers(pc int) bool { return pc >= h.StartPC && pc < h.EndPC }

// CompiledFunction describes one function's frame layout and, optionally,
// its exception handlers (spec.md §6.1).
type CompiledFunction struct {
	StartAddr      int
	ArgCount       int
	RetCount       int
	StackSize      int
	ParamTyckInfo  []*tyck.TyckInfo
	ExcHandlers    []ExceptionHandler
	Name           string // diagnostic only; not part of the wire contract
}

// FFIFunc is a callable descriptor for a host-provided synchronous function
// (spec.md §6.1): a signature in pooled TyckInfo form plus the entry point
// itself. Entry receives argument values and writes results into ret.
type FFIFunc struct {
	Name      string
	Signature *tyck.TyckInfo // VFunction
	Entry     func(ctx VMContext, args []value.Value, ret []*value.Value) error
}

// AsyncFFIFunc is the asynchronous counterpart of FFIFunc: Entry returns a
// channel that yields the result once the host-side future resolves,
// without blocking the coroutine that invoked it.
type AsyncFFIFunc struct {
	Name      string
	Signature *tyck.TyckInfo
	Entry     func(ctx VMContext, args []value.Value) (<-chan AsyncResult, error)
}

// AsyncResult is what an AsyncFFIFunc's future resolves to.
type AsyncResult struct {
	Values []value.Value
	Err    error // non-nil selects the checked/unchecked exception path
}

// VMContext is the handle the executor exposes to host FFI code (spec.md
// §4.4): add a new object to the collector, or run the write barrier on an
// existing one.
type VMContext interface {
	AddHeapManaged(v value.Value)
	Mark(v value.Value)
}

// CompiledProgram is the immutable module produced by the (out-of-scope)
// compiler front-end and consumed by the executor (spec.md §6.1).
type CompiledProgram struct {
	Code         []Instruction
	ConstPool    []value.Value
	Functions    []CompiledFunction
	FFIFuncs     []FFIFunc
	AsyncFFIFuncs []AsyncFFIFunc
}

// Func returns the CompiledFunction for funcID, or ok=false if out of range.
func (p *CompiledProgram) Func(funcID uint32) (CompiledFunction, bool) {
	if int(funcID) >= len(p.Functions) {
		return CompiledFunction{}, false
	}
	return p.Functions[funcID], true
}
