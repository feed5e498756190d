// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

// Package executor implements the AL31F instruction dispatch loop: the
// component spec.md's size table gives the largest budget share, tying
// together value, heap, tyck, stack, bytecode and exception into one
// fetch-decode-execute cycle per spec.md §4.3, §6.2 and §7.
package executor

import (
	"fmt"
	"reflect"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/probechain/pr47/internal/al31f/alloc"
	"github.com/probechain/pr47/internal/al31f/bytecode"
	"github.com/probechain/pr47/internal/al31f/container"
	"github.com/probechain/pr47/internal/al31f/exception"
	"github.com/probechain/pr47/internal/al31f/heap"
	"github.com/probechain/pr47/internal/al31f/stack"
	"github.com/probechain/pr47/internal/al31f/tyck"
	"github.com/probechain/pr47/internal/al31f/value"
)

// Permit serializes access to a VMThread's mutable state across coroutine
// suspension points (spec.md §4.7): Release gives up the single VM-wide
// permit before an Await blocks on a host future, Acquire reclaims it once
// the future resolves. A VMThread run without a scheduler (synchronous host
// calls) uses the nil Permit, under which Release/Acquire are no-ops.
type Permit interface {
	Release()
	Acquire()
}

type noPermit struct{}

func (noPermit) Release() {}
func (noPermit) Acquire() {}

// VMThread runs one CompiledProgram function to completion (or to an
// unhandled exception), maintaining its own Stack but sharing the
// Allocator and CompiledProgram with any sibling threads the host spawns
// (spec.md §4.7 "each coroutine stack is scanned as an independent root
// set").
type VMThread struct {
	Program *bytecode.CompiledProgram
	Alloc   *alloc.Allocator
	Stack   *stack.Stack
	Permit  Permit

	log *zap.SugaredLogger

	funcID uint32
	pc     int

	insnCount uint64
	callCount uint64
}

// New builds a VMThread over program, registering its stack as a GC root set
// with alloc. log may be nil, in which case a no-op logger is used.
func New(program *bytecode.CompiledProgram, al *alloc.Allocator, log *zap.SugaredLogger) *VMThread {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	st := stack.New(256)
	al.AddStack(st)
	return &VMThread{
		Program: program,
		Alloc:   al,
		Stack:   st,
		Permit:  noPermit{},
		log:     log,
	}
}

// AddHeapManaged implements bytecode.VMContext for host FFI callbacks.
func (t *VMThread) AddHeapManaged(v value.Value) {
	if w, ok := v.Ptr().(*heap.Wrapper); ok {
		t.Alloc.AddManaged(w)
	}
}

// Mark implements bytecode.VMContext: runs the collector write barrier on v.
func (t *VMThread) Mark(v value.Value) {
	if w, ok := v.Ptr().(*heap.Wrapper); ok {
		t.Alloc.MarkObject(w)
	}
}

// RunFunction is the external entry point (spec.md §4.2
// `ext_func_call_grow_stack` + run-to-completion), used for both
// `run_function_sync` and a coroutine's initial task body.
func (t *VMThread) RunFunction(funcID uint32, args []value.Value) ([]value.Value, error) {
	defer t.Alloc.RemoveStack(t.Stack)
	fn, ok := t.Program.Func(funcID)
	if !ok {
		return nil, fmt.Errorf("executor: no such function %d", funcID)
	}
	if len(args) != fn.ArgCount {
		return nil, t.raiseToHost(exception.NewUnchecked(&exception.Unchecked{
			Kind: exception.ArgCountMismatch, FuncID: funcID, Expected: fn.ArgCount, Got: len(args),
		}))
	}
	if err := t.Stack.ExtFuncCallGrowStack(funcID, fn.StackSize, args); err != nil {
		return nil, err
	}
	t.funcID = funcID
	t.pc = fn.StartAddr
	return t.run()
}

// run drives the fetch-decode-execute loop until the bottom frame returns or
// an exception escapes unhandled (spec.md §6.2/§7).
func (t *VMThread) run() ([]value.Value, error) {
	for {
		cont, retValues, err := t.step()
		if err != nil {
			return nil, err
		}
		if !cont {
			return retValues, nil
		}
	}
}

// step executes exactly one instruction, returning cont=false with the
// function's results once the bottom frame has returned.
func (t *VMThread) step() (cont bool, retValues []value.Value, err error) {
	if t.pc < 0 || t.pc >= len(t.Program.Code) {
		return false, nil, fmt.Errorf("executor: pc %d out of range", t.pc)
	}
	insn := t.Program.Code[t.pc]
	t.insnCount++

	var exc *exception.Exception
	switch insn.Op {
	case bytecode.OpAddInt:
		exc = t.binInt(insn, func(a, b int64) int64 { return a + b })
	case bytecode.OpSubInt:
		exc = t.binInt(insn, func(a, b int64) int64 { return a - b })
	case bytecode.OpMulInt:
		exc = t.binInt(insn, func(a, b int64) int64 { return a * b })
	case bytecode.OpDivInt:
		b := t.Stack.Get(insn.C)
		if b.Int() == 0 {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.DivideByZero})
			break
		}
		exc = t.binInt(insn, func(a, b int64) int64 { return a / b })
	case bytecode.OpModInt:
		b := t.Stack.Get(insn.C)
		if b.Int() == 0 {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.DivideByZero})
			break
		}
		exc = t.binInt(insn, func(a, b int64) int64 { return a % b })
	case bytecode.OpAddFloat:
		exc = t.binFloat(insn, func(a, b float64) float64 { return a + b })
	case bytecode.OpSubFloat:
		exc = t.binFloat(insn, func(a, b float64) float64 { return a - b })
	case bytecode.OpMulFloat:
		exc = t.binFloat(insn, func(a, b float64) float64 { return a * b })
	case bytecode.OpDivFloat:
		exc = t.binFloat(insn, func(a, b float64) float64 { return a / b })
	case bytecode.OpNegInt:
		t.Stack.Set(insn.A, value.NewInt(-t.Stack.Get(insn.B).Int()))
	case bytecode.OpNegFloat:
		t.Stack.Set(insn.A, value.NewFloat(-t.Stack.Get(insn.B).Float()))

	case bytecode.OpAddAny, bytecode.OpSubAny, bytecode.OpMulAny, bytecode.OpDivAny, bytecode.OpModAny:
		exc = t.arithAny(insn)

	case bytecode.OpEqInt:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Int() == t.Stack.Get(insn.C).Int()))
	case bytecode.OpEqFloat:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Float() == t.Stack.Get(insn.C).Float()))
	case bytecode.OpEqChar:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Char() == t.Stack.Get(insn.C).Char()))
	case bytecode.OpEqBool:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Bool() == t.Stack.Get(insn.C).Bool()))
	case bytecode.OpEqRef, bytecode.OpEqAny:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Eq(t.Stack.Get(insn.C))))
	case bytecode.OpLtInt:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Int() < t.Stack.Get(insn.C).Int()))
	case bytecode.OpLtFloat:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Float() < t.Stack.Get(insn.C).Float()))
	case bytecode.OpLtAny:
		exc = t.cmpAny(insn, func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b })
	case bytecode.OpGeInt:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Int() >= t.Stack.Get(insn.C).Int()))
	case bytecode.OpGeFloat:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).Float() >= t.Stack.Get(insn.C).Float()))
	case bytecode.OpGeAny:
		exc = t.cmpAny(insn, func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b })

	case bytecode.OpBAndInt:
		t.Stack.Set(insn.A, value.NewInt(t.Stack.Get(insn.B).Int()&t.Stack.Get(insn.C).Int()))
	case bytecode.OpBOrInt:
		t.Stack.Set(insn.A, value.NewInt(t.Stack.Get(insn.B).Int()|t.Stack.Get(insn.C).Int()))
	case bytecode.OpBXorInt:
		t.Stack.Set(insn.A, value.NewInt(t.Stack.Get(insn.B).Int()^t.Stack.Get(insn.C).Int()))
	case bytecode.OpShlInt:
		t.Stack.Set(insn.A, value.NewInt(t.Stack.Get(insn.B).Int()<<uint(t.Stack.Get(insn.C).Int())))
	case bytecode.OpShrInt:
		t.Stack.Set(insn.A, value.NewInt(t.Stack.Get(insn.B).Int()>>uint(t.Stack.Get(insn.C).Int())))
	case bytecode.OpNotBool:
		t.Stack.Set(insn.A, value.NewBool(!t.Stack.Get(insn.B).Bool()))
	case bytecode.OpBAndAny:
		exc = t.binInt(insn, func(a, b int64) int64 { return a & b })
	case bytecode.OpNotAny:
		src := t.Stack.Get(insn.B)
		if src.Kind() != value.KindBool {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidUnaryOp, UnaryOp: "NOT", Src: src})
			break
		}
		t.Stack.Set(insn.A, value.NewBool(!src.Bool()))

	case bytecode.OpCastFloatInt:
		t.Stack.Set(insn.A, value.NewInt(int64(t.Stack.Get(insn.B).Float())))
	case bytecode.OpCastIntFloat:
		t.Stack.Set(insn.A, value.NewFloat(float64(t.Stack.Get(insn.B).Int())))
	case bytecode.OpCastAnyChar:
		src := t.Stack.Get(insn.B)
		if src.Kind() != value.KindChar {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidCastOp, Src: src, DestType: "char"})
			break
		}
		t.Stack.Set(insn.A, src)
	case bytecode.OpCastAnyInt:
		src := t.Stack.Get(insn.B)
		if src.Kind() != value.KindInt {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidCastOp, Src: src, DestType: "int"})
			break
		}
		t.Stack.Set(insn.A, src)
	case bytecode.OpCastIntChar:
		exc = exception.NewUnchecked(&exception.Unchecked{
			Kind: exception.InvalidCastOp, Src: t.Stack.Get(insn.B), DestType: "char",
		})

	case bytecode.OpMakeIntConst:
		t.Stack.Set(insn.A, value.NewInt(insn.Imm))
	case bytecode.OpLoadConst:
		if insn.ConstIdx < 0 || insn.ConstIdx >= len(t.Program.ConstPool) {
			return false, nil, fmt.Errorf("executor: const index %d out of range", insn.ConstIdx)
		}
		t.Stack.Set(insn.A, t.Program.ConstPool[insn.ConstIdx])
	case bytecode.OpSaveConst:
		// SaveConst writes into the program's mutable constant-pool slot
		// reserved for memoization; out of scope for the demo CLI, no-op.

	case bytecode.OpIsNull:
		t.Stack.Set(insn.A, value.NewBool(t.Stack.Get(insn.B).IsNull()))
	case bytecode.OpNullCheck:
		if t.Stack.Get(insn.A).IsNull() {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.UnexpectedNull})
		}

	case bytecode.OpTypeCheck:
		fn, _ := t.Program.Func(t.funcID)
		if insn.TyckIdx < 0 || insn.TyckIdx >= len(fn.ParamTyckInfo) {
			return false, nil, fmt.Errorf("executor: tyck index %d out of range", insn.TyckIdx)
		}
		v := t.Stack.Get(insn.B)
		if !tyck.Check(fn.ParamTyckInfo[insn.TyckIdx], dynValueOf(v)) {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: v})
		}

	case bytecode.OpCall, bytecode.OpCallTyck:
		exc = t.call(insn)
		if exc == nil {
			return true, nil, nil // call() already advanced pc to callee's start
		}
	case bytecode.OpCallPtr, bytecode.OpCallPtrTyck:
		exc = t.callPtr(insn)
		if exc == nil {
			return true, nil, nil
		}
	case bytecode.OpCallOverload:
		exc = t.callOverload(insn)
		if exc == nil {
			return true, nil, nil
		}

	case bytecode.OpFFICallTyck:
		exc = t.ffiCall(insn, true)
	case bytecode.OpFFICallRtlc:
		exc = t.ffiCall(insn, false)
	case bytecode.OpFFICall:
		exc = t.ffiCall(insn, false)
	case bytecode.OpFFICallAsync, bytecode.OpFFICallAsyncTyck:
		exc = t.ffiCallAsync(insn)
	case bytecode.OpAwait:
		exc = t.await(insn)

	case bytecode.OpReturnNothing:
		return t.doReturn(nil)
	case bytecode.OpReturnOne:
		return t.doReturn([]value.Value{t.Stack.Get(insn.A)})
	case bytecode.OpReturn:
		vals := make([]value.Value, len(insn.ArgLocs))
		for i, loc := range insn.ArgLocs {
			vals[i] = t.Stack.Get(loc)
		}
		return t.doReturn(vals)

	case bytecode.OpJump:
		t.pc = int(insn.Imm)
		return true, nil, nil
	case bytecode.OpJumpIfTrue:
		if t.Stack.Get(insn.A).Bool() {
			t.pc = insn.B
			return true, nil, nil
		}
	case bytecode.OpJumpIfFalse:
		if !t.Stack.Get(insn.A).Bool() {
			t.pc = insn.B
			return true, nil, nil
		}

	case bytecode.OpRaise:
		exc = exception.NewChecked(t.Stack.Get(insn.A))

	case bytecode.OpCreateObject:
		t.Stack.Set(insn.A, value.NewRef(container.NewObject(), value.RefMeta{Container: true}))
	case bytecode.OpCreateContainer:
		t.Stack.Set(insn.A, value.NewRef(container.NewVec(), value.RefMeta{Container: true}))
	case bytecode.OpVecPush:
		vec, ok := t.vecOf(t.Stack.Get(insn.A))
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: t.Stack.Get(insn.A), ExpectedType: "vec"})
			break
		}
		vec.Push(t.Stack.Get(insn.B))
	case bytecode.OpVecPop:
		vec, ok := t.vecOf(t.Stack.Get(insn.B))
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: t.Stack.Get(insn.B), ExpectedType: "vec"})
			break
		}
		v, ok := vec.Pop()
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.IndexOutOfBounds, Index: value.NewInt(-1), Indexed: t.Stack.Get(insn.B)})
			break
		}
		t.Stack.Set(insn.A, v)
	case bytecode.OpVecIndex:
		vec, ok := t.vecOf(t.Stack.Get(insn.B))
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: t.Stack.Get(insn.B), ExpectedType: "vec"})
			break
		}
		idx := t.Stack.Get(insn.C)
		v, ok := vec.Index(idx.Int())
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.IndexOutOfBounds, Index: idx, Indexed: t.Stack.Get(insn.B)})
			break
		}
		t.Stack.Set(insn.A, v)
	case bytecode.OpVecLen:
		vec, ok := t.vecOf(t.Stack.Get(insn.B))
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: t.Stack.Get(insn.B), ExpectedType: "vec"})
			break
		}
		t.Stack.Set(insn.A, value.NewInt(vec.Len()))
	case bytecode.OpObjectGet:
		obj, ok := t.objOf(t.Stack.Get(insn.B))
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: t.Stack.Get(insn.B), ExpectedType: "object"})
			break
		}
		key := t.Stack.Get(insn.C)
		v, ok := obj.Get(keyString(key))
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.IndexOutOfBounds, Index: key, Indexed: t.Stack.Get(insn.B)})
			break
		}
		t.Stack.Set(insn.A, v)
	case bytecode.OpObjectPut:
		obj, ok := t.objOf(t.Stack.Get(insn.A))
		if !ok {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: t.Stack.Get(insn.A), ExpectedType: "object"})
			break
		}
		obj.Put(keyString(t.Stack.Get(insn.B)), t.Stack.Get(insn.C))
	case bytecode.OpStrConcat:
		lhs, rhs := t.Stack.Get(insn.B), t.Stack.Get(insn.C)
		if lhs.Kind() != value.KindString || rhs.Kind() != value.KindString {
			exc = exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidBinaryOp, BinOp: "++", Lhs: lhs, Rhs: rhs})
			break
		}
		t.Stack.Set(insn.A, value.NewString(lhs.Str()+rhs.Str()))

	default:
		return false, nil, fmt.Errorf("executor: unimplemented opcode %s", insn.Op)
	}

	if exc != nil {
		return t.unwind(exc)
	}
	t.pc++
	return true, nil, nil
}

func (t *VMThread) binInt(insn bytecode.Instruction, f func(a, b int64) int64) *exception.Exception {
	t.Stack.Set(insn.A, value.NewInt(f(t.Stack.Get(insn.B).Int(), t.Stack.Get(insn.C).Int())))
	return nil
}

func (t *VMThread) binFloat(insn bytecode.Instruction, f func(a, b float64) float64) *exception.Exception {
	t.Stack.Set(insn.A, value.NewFloat(f(t.Stack.Get(insn.B).Float(), t.Stack.Get(insn.C).Float())))
	return nil
}

// arithAny dispatches the generic arithmetic opcodes on the runtime Kind of
// the left operand, raising InvalidBinaryOp for any unsupported combination
// (spec.md §4.3's *_ANY instructions).
func (t *VMThread) arithAny(insn bytecode.Instruction) *exception.Exception {
	a, b := t.Stack.Get(insn.B), t.Stack.Get(insn.C)
	var op string
	switch insn.Op {
	case bytecode.OpAddAny:
		op = "+"
	case bytecode.OpSubAny:
		op = "-"
	case bytecode.OpMulAny:
		op = "*"
	case bytecode.OpDivAny:
		op = "/"
	case bytecode.OpModAny:
		op = "%"
	}
	if a.Kind() != b.Kind() {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidBinaryOp, BinOp: op, Lhs: a, Rhs: b})
	}
	switch a.Kind() {
	case value.KindInt:
		if (insn.Op == bytecode.OpDivAny || insn.Op == bytecode.OpModAny) && b.Int() == 0 {
			return exception.NewUnchecked(&exception.Unchecked{Kind: exception.DivideByZero})
		}
		var r int64
		switch insn.Op {
		case bytecode.OpAddAny:
			r = a.Int() + b.Int()
		case bytecode.OpSubAny:
			r = a.Int() - b.Int()
		case bytecode.OpMulAny:
			r = a.Int() * b.Int()
		case bytecode.OpDivAny:
			r = a.Int() / b.Int()
		case bytecode.OpModAny:
			r = a.Int() % b.Int()
		}
		t.Stack.Set(insn.A, value.NewInt(r))
		return nil
	case value.KindFloat:
		if insn.Op == bytecode.OpModAny {
			return exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidBinaryOp, BinOp: op, Lhs: a, Rhs: b})
		}
		var r float64
		switch insn.Op {
		case bytecode.OpAddAny:
			r = a.Float() + b.Float()
		case bytecode.OpSubAny:
			r = a.Float() - b.Float()
		case bytecode.OpMulAny:
			r = a.Float() * b.Float()
		case bytecode.OpDivAny:
			r = a.Float() / b.Float()
		}
		t.Stack.Set(insn.A, value.NewFloat(r))
		return nil
	case value.KindString:
		if insn.Op != bytecode.OpAddAny {
			return exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidBinaryOp, BinOp: op, Lhs: a, Rhs: b})
		}
		t.Stack.Set(insn.A, value.NewString(a.Str()+b.Str()))
		return nil
	default:
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidBinaryOp, BinOp: op, Lhs: a, Rhs: b})
	}
}

func (t *VMThread) cmpAny(insn bytecode.Instruction, iop func(a, b int64) bool, fop func(a, b float64) bool) *exception.Exception {
	a, b := t.Stack.Get(insn.B), t.Stack.Get(insn.C)
	if a.Kind() != b.Kind() {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidBinaryOp, BinOp: "cmp", Lhs: a, Rhs: b})
	}
	switch a.Kind() {
	case value.KindInt:
		t.Stack.Set(insn.A, value.NewBool(iop(a.Int(), b.Int())))
	case value.KindFloat:
		t.Stack.Set(insn.A, value.NewBool(fop(a.Float(), b.Float())))
	default:
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.InvalidBinaryOp, BinOp: "cmp", Lhs: a, Rhs: b})
	}
	return nil
}

func (t *VMThread) vecOf(v value.Value) (*container.Vec, bool) {
	w, ok := v.Ptr().(*heap.Wrapper)
	if !ok {
		return nil, false
	}
	vec, ok := w.Data().(*container.Vec)
	return vec, ok
}

func (t *VMThread) objOf(v value.Value) (*container.Object, bool) {
	w, ok := v.Ptr().(*heap.Wrapper)
	if !ok {
		return nil, false
	}
	obj, ok := w.Data().(*container.Object)
	return obj, ok
}

// keyString derives an Object key's string identity from a Value. Char and
// String keys use their actual content; any other kind falls back to
// Value's debug formatter, since no other kind is expected to be used as a
// key by a well-formed program.
func keyString(v value.Value) string {
	switch v.Kind() {
	case value.KindChar:
		return string(v.Char())
	case value.KindString:
		return v.Str()
	default:
		return v.String()
	}
}

// dynValueOf adapts a runtime Value to tyck.DynValue so TypeCheck can reuse
// the same matcher the compile-time checker would use.
type dynValue struct{ v value.Value }

func dynValueOf(v value.Value) tyck.DynValue { return dynValue{v} }

func (d dynValue) IsNull() bool { return d.v.IsNull() }

func (d dynValue) RuntimeType() reflect.Type {
	switch d.v.Kind() {
	case value.KindInt:
		return reflect.TypeOf(int64(0))
	case value.KindFloat:
		return reflect.TypeOf(float64(0))
	case value.KindChar:
		return reflect.TypeOf(rune(0))
	case value.KindBool:
		return reflect.TypeOf(false)
	case value.KindString:
		return reflect.TypeOf("")
	case value.KindRef:
		if w, ok := d.v.Ptr().(*heap.Wrapper); ok {
			return reflect.TypeOf(w.Data())
		}
		return reflect.TypeOf(d.v.Ptr())
	default:
		return nil
	}
}

// call implements spec.md §4.3 CALL/CALL_TYCK: resolve FuncID from the
// program, grow a new frame, and jump to its entry point. CALL_TYCK (and
// CALL_PTR_TYCK) first checks each argument against the callee's
// ParamTyckInfo entry, raising TypeCheckFailure on a mismatch; CALL skips
// that check. Otherwise both variants share the same call protocol.
func (t *VMThread) call(insn bytecode.Instruction) *exception.Exception {
	fn, ok := t.Program.Func(insn.FuncID)
	if !ok {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.ArgCountMismatch, FuncID: insn.FuncID})
	}
	if len(insn.ArgLocs) != fn.ArgCount {
		return exception.NewUnchecked(&exception.Unchecked{
			Kind: exception.ArgCountMismatch, FuncID: insn.FuncID, Expected: fn.ArgCount, Got: len(insn.ArgLocs),
		})
	}
	if insn.Op == bytecode.OpCallTyck || insn.Op == bytecode.OpCallPtrTyck {
		for i, loc := range insn.ArgLocs {
			if i >= len(fn.ParamTyckInfo) || fn.ParamTyckInfo[i] == nil {
				continue
			}
			if arg := t.Stack.Get(loc); !tyck.Check(fn.ParamTyckInfo[i], dynValueOf(arg)) {
				return exception.NewUnchecked(&exception.Unchecked{
					Kind: exception.TypeCheckFailure, FuncID: insn.FuncID, Src: arg, ExpectedType: fn.ParamTyckInfo[i].String(),
				})
			}
		}
	}
	retAddr := uint32(t.pc + 1)
	if err := t.Stack.FuncCallGrowStack(insn.FuncID, fn.StackSize, insn.ArgLocs, insn.RetLocs, retAddr); err != nil {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.ArgCountMismatch, FuncID: insn.FuncID, Cause: err})
	}
	t.callCount++
	t.funcID = insn.FuncID
	t.pc = fn.StartAddr
	return nil
}

// callPtr is CALL_PTR/CALL_PTR_TYCK: the callee's FuncID is read from a
// stack slot holding a first-class function reference rather than the
// instruction's immediate operand. This demo executor represents a function
// reference Value as a KindInt carrying the raw FuncID.
func (t *VMThread) callPtr(insn bytecode.Instruction) *exception.Exception {
	funcID := uint32(t.Stack.Get(insn.A).Int())
	call := insn
	call.FuncID = funcID
	return t.call(call)
}

// callOverload handles CALL_OVERLOAD by raising OverloadCallFailure for
// insn.FuncID's overload table unconditionally; it does not inspect any
// candidate or argument.
func (t *VMThread) callOverload(insn bytecode.Instruction) *exception.Exception {
	return exception.NewUnchecked(&exception.Unchecked{Kind: exception.OverloadCallFailure, OverloadTbl: fmt.Sprintf("func#%d", insn.FuncID)})
}

// doReturn implements DONE_FUNC_CALL_SHRINK_STACK's two outcomes: if a
// caller frame remains, resume it at its saved return address; otherwise
// the bottom frame has finished and RunFunction returns retValues to the
// host.
func (t *VMThread) doReturn(retValues []value.Value) (cont bool, finalValues []value.Value, err error) {
	callerFound, retAddr, shrErr := t.Stack.DoneFuncCallShrinkStack(retValues)
	if shrErr != nil {
		return false, nil, shrErr
	}
	if !callerFound {
		return false, retValues, nil
	}
	if t.Stack.Depth() > 0 {
		t.funcID = t.Stack.CurrentFrame().FuncID
	}
	t.pc = int(retAddr)
	return true, nil, nil
}

// unwind implements spec.md §4.6's unwind algorithm: pop frames via
// UnwindShrinkSlice, appending (func_id, pc) to the trace at each step,
// until a frame's exception handler table covers the current pc and (for
// checked exceptions) its ExceptionID matches, or the stack is exhausted.
func (t *VMThread) unwind(exc *exception.Exception) (cont bool, retValues []value.Value, err error) {
	pc := t.pc
	for t.Stack.Depth() > 0 {
		frame := t.Stack.CurrentFrame()
		fn, _ := t.Program.Func(frame.FuncID)
		for _, h := range fn.ExcHandlers {
			if !h.Covers(pc) {
				continue
			}
			if handlerMatches(h, exc) {
				t.pc = h.HandlerAddr
				t.funcID = frame.FuncID
				return true, nil, nil
			}
		}
		exc.AppendFrame(frame.FuncID, pc)
		if uerr := t.Stack.UnwindShrinkSlice(); uerr != nil {
			return false, nil, uerr
		}
		if t.Stack.Depth() == 0 {
			break
		}
		pc = int(frame.RetAddr) - 1 // unwinding resumes the search at the call site
		t.funcID = t.Stack.CurrentFrame().FuncID
	}
	return false, nil, exc
}

// handlerMatches reports whether handler h catches exc: a nil ExceptionID is
// a catch-all; otherwise the handler's declared type must match the runtime
// type of the checked value, or of the unchecked payload struct.
func handlerMatches(h bytecode.ExceptionHandler, exc *exception.Exception) bool {
	if h.ExceptionID == nil {
		return true
	}
	if exc.IsChecked {
		return dynValueOf(exc.Checked).RuntimeType() == h.ExceptionID
	}
	return reflect.TypeOf(exc.UncheckedErr) == h.ExceptionID
}

// Stats renders a human-readable execution summary the way the teacher's
// CLI reports block-processing stats, reusing tablewriter for tabular
// console output instead of hand-rolled column alignment.
func (t *VMThread) Stats() string {
	var sb fmtBuffer
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"metric", "value"})
	table.Append([]string{"instructions executed", fmt.Sprintf("%d", t.insnCount)})
	table.Append([]string{"calls made", fmt.Sprintf("%d", t.callCount)})
	table.Append([]string{"stack depth", fmt.Sprintf("%d", t.Stack.Depth())})
	table.Render()
	return sb.String()
}

// fmtBuffer is the minimal io.Writer tablewriter needs; kept local to avoid
// pulling in bytes.Buffer's full API for a write-only sink.
type fmtBuffer struct{ data []byte }

func (b *fmtBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
func (b *fmtBuffer) String() string { return string(b.data) }

// raiseToHost logs and returns a top-level unhandled exception, the path
// taken when RunFunction's own argument check fails before any instruction
// executes.
func (t *VMThread) raiseToHost(exc *exception.Exception) error {
	t.log.Debugw("unhandled exception before entry", "error", exc.Error())
	return exc
}
