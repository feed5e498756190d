// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package executor

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probechain/pr47/internal/al31f/alloc"
	"github.com/probechain/pr47/internal/al31f/bytecode"
	"github.com/probechain/pr47/internal/al31f/exception"
	"github.com/probechain/pr47/internal/al31f/heap"
	"github.com/probechain/pr47/internal/al31f/value"
)

func newThread(program *bytecode.CompiledProgram) *VMThread {
	al := alloc.New(0, zap.NewNop())
	return New(program, al, zap.NewNop().Sugar())
}

// TestArithmeticComputesExpression runs (3 + 4) * 2 and checks the result
// (spec.md §8's basic-arithmetic scenario).
func TestArithmeticComputesExpression(t *testing.T) {
	program := &bytecode.CompiledProgram{
		Code: []bytecode.Instruction{
			{Op: bytecode.OpMakeIntConst, A: 0, Imm: 3},
			{Op: bytecode.OpMakeIntConst, A: 1, Imm: 4},
			{Op: bytecode.OpAddInt, A: 2, B: 0, C: 1},
			{Op: bytecode.OpMakeIntConst, A: 3, Imm: 2},
			{Op: bytecode.OpMulInt, A: 4, B: 2, C: 3},
			{Op: bytecode.OpReturnOne, A: 4},
		},
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 0, RetCount: 1, StackSize: 5},
		},
	}
	thread := newThread(program)
	results, err := thread.RunFunction(0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(14), results[0].Int())
}

// TestPlainCallComputesSum exercises a single, non-recursive CALL/RETURN_ONE
// from a caller into a distinct callee function (spec.md §8's plain
// intra-VM call scenario, as opposed to the recursive fib chain below):
// caller() loads 10 and 5, calls callee(a, b) = a + b once and propagates
// the result.
func TestPlainCallComputesSum(t *testing.T) {
	const callee = uint32(1)
	program := &bytecode.CompiledProgram{
		Code: []bytecode.Instruction{
			// caller (func 0)
			{Op: bytecode.OpMakeIntConst, A: 0, Imm: 10},
			{Op: bytecode.OpMakeIntConst, A: 1, Imm: 5},
			{Op: bytecode.OpCall, FuncID: callee, ArgLocs: []int{0, 1}, RetLocs: []int{2}},
			{Op: bytecode.OpReturnOne, A: 2},
			// callee (func 1): a + b
			{Op: bytecode.OpAddInt, A: 0, B: 0, C: 1},
			{Op: bytecode.OpReturnOne, A: 0},
		},
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 0, RetCount: 1, StackSize: 3},
			{StartAddr: 4, ArgCount: 2, RetCount: 1, StackSize: 2, Name: "add"},
		},
	}
	thread := newThread(program)
	results, err := thread.RunFunction(0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(15), results[0].Int())
	assert.Equal(t, 0, thread.Stack.Depth())
}

// TestSyncFFICallBorrowsAndRestoresOwnership exercises spec.md §8's sync-FFI
// ownership-aliasing scenario: a Ref argument handed across FFI_CALL must be
// borrow-guarded for the call's duration and have its ownership state
// restored to VMOwned once the call returns, exactly the path ffiCall's
// borrowArgs/releaseGuards pair protects.
func TestSyncFFICallBorrowsAndRestoresOwnership(t *testing.T) {
	var stateDuringCall heap.OwnershipState
	buf := []byte("hello")
	w := heap.New(&buf, nil, nil)

	program := &bytecode.CompiledProgram{
		Code: []bytecode.Instruction{
			{Op: bytecode.OpLoadConst, A: 0, ConstIdx: 0},
			{Op: bytecode.OpFFICall, FFIIdx: 0, ArgLocs: []int{0}, RetLocs: nil},
			{Op: bytecode.OpReturnNothing},
		},
		ConstPool: []value.Value{value.NewRef(w, value.RefMeta{})},
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 0, RetCount: 0, StackSize: 1},
		},
		FFIFuncs: []bytecode.FFIFunc{
			{
				Name: "observe",
				Entry: func(ctx bytecode.VMContext, args []value.Value, ret []*value.Value) error {
					observed := args[0].Ptr().(*heap.Wrapper)
					stateDuringCall = observed.State()
					return nil
				},
			},
		},
	}

	require.Equal(t, heap.VMOwned, w.State())
	thread := newThread(program)
	_, err := thread.RunFunction(0, nil)
	require.NoError(t, err)

	assert.Equal(t, heap.SharedToRust, stateDuringCall, "wrapper must be shared to the host for the duration of the FFI call")
	assert.Equal(t, heap.VMOwned, w.State(), "borrow guard must restore ownership once the call returns")
}

// fibProgram builds the hand-assembled recursive fib(n) used by the
// recursive-call test below; cmd/pr47c's "fib" demo carries its own copy of
// the same code.
func fibProgram() *bytecode.CompiledProgram {
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
	return &bytecode.CompiledProgram{
		Code: code,
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 1, RetCount: 1, StackSize: 8, Name: "fib"},
		},
	}
}

// TestRecursiveCallComputesFibonacci exercises CALL/RETURN_ONE frame
// push/pop through a recursive intra-VM call chain (spec.md §8's recursive
// call scenario): fib(7) == 13.
func TestRecursiveCallComputesFibonacci(t *testing.T) {
	thread := newThread(fibProgram())
	results, err := thread.RunFunction(0, []value.Value{value.NewInt(7)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(13), results[0].Int())
	assert.Equal(t, thread.Stack.Depth(), 0)
}

// TestDivideByZeroRaisesUnchecked checks that an unhandled unchecked
// exception escapes RunFunction as an error without panicking.
func TestDivideByZeroRaisesUnchecked(t *testing.T) {
	program := &bytecode.CompiledProgram{
		Code: []bytecode.Instruction{
			{Op: bytecode.OpMakeIntConst, A: 0, Imm: 1},
			{Op: bytecode.OpMakeIntConst, A: 1, Imm: 0},
			{Op: bytecode.OpDivInt, A: 2, B: 0, C: 1},
			{Op: bytecode.OpReturnOne, A: 2},
		},
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 0, RetCount: 1, StackSize: 3},
		},
	}
	thread := newThread(program)
	_, err := thread.RunFunction(0, nil)
	require.Error(t, err)

	var exc *exception.Exception
	require.ErrorAs(t, err, &exc)
	assert.True(t, exc.IsKind(exception.DivideByZero))
}

// TestUncaughtCheckedExceptionCarriesTrace raises a checked exception from
// inside a callee with no handler in any frame; the trace depth should
// equal the number of unwound frames (spec.md §8's uncaught-checked-
// exception scenario, trace depth 2: the raising frame plus its caller).
func TestUncaughtCheckedExceptionCarriesTrace(t *testing.T) {
	const callee = uint32(1)
	code := []bytecode.Instruction{
		// caller (func 0): call callee(), never reached after the raise
		{Op: bytecode.OpCall, FuncID: callee, ArgLocs: nil, RetLocs: []int{0}},
		{Op: bytecode.OpReturnOne, A: 0},
		// callee (func 1): raise slot 0 as a checked exception
		{Op: bytecode.OpMakeIntConst, A: 0, Imm: 99},
		{Op: bytecode.OpRaise, A: 0},
	}
	program := &bytecode.CompiledProgram{
		Code: code,
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 0, RetCount: 1, StackSize: 1},
			{StartAddr: 2, ArgCount: 0, RetCount: 1, StackSize: 1},
		},
	}
	thread := newThread(program)
	_, err := thread.RunFunction(0, nil)
	require.Error(t, err)

	var exc *exception.Exception
	require.ErrorAs(t, err, &exc)
	assert.True(t, exc.IsChecked)
	assert.Equal(t, int64(99), exc.Checked.Int())
	assert.Len(t, exc.Trace, 2)
}

// TestHandlerCatchesMatchingCheckedException verifies handlerMatches'
// fixed behavior: a handler whose ExceptionID matches the checked value's
// runtime type actually catches it instead of always falling through.
func TestHandlerCatchesMatchingCheckedException(t *testing.T) {
	intType := reflect.TypeOf(int64(0))
	code := []bytecode.Instruction{
		{Op: bytecode.OpMakeIntConst, A: 0, Imm: 7},
		{Op: bytecode.OpRaise, A: 0}, // pc 1
		{Op: bytecode.OpReturnOne, A: 0},
		// handler: slot 0 already holds the raised value (reused as Checked)
		{Op: bytecode.OpMakeIntConst, A: 1, Imm: 1},
		{Op: bytecode.OpAddInt, A: 0, B: 0, C: 1},
		{Op: bytecode.OpReturnOne, A: 0},
	}
	program := &bytecode.CompiledProgram{
		Code: code,
		Functions: []bytecode.CompiledFunction{
			{
				StartAddr: 0, ArgCount: 0, RetCount: 1, StackSize: 2,
				ExcHandlers: []bytecode.ExceptionHandler{
					{StartPC: 0, EndPC: 3, ExceptionID: intType, HandlerAddr: 3},
				},
			},
		},
	}
	thread := newThread(program)
	results, err := thread.RunFunction(0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(8), results[0].Int())
}

// TestHandlerSkipsNonMatchingExceptionID confirms a handler declared for a
// different type does not swallow an exception it wasn't meant to catch.
func TestHandlerSkipsNonMatchingExceptionID(t *testing.T) {
	floatType := reflect.TypeOf(float64(0))
	code := []bytecode.Instruction{
		{Op: bytecode.OpMakeIntConst, A: 0, Imm: 7},
		{Op: bytecode.OpRaise, A: 0},
		{Op: bytecode.OpReturnOne, A: 0},
	}
	program := &bytecode.CompiledProgram{
		Code: code,
		Functions: []bytecode.CompiledFunction{
			{
				StartAddr: 0, ArgCount: 0, RetCount: 1, StackSize: 1,
				ExcHandlers: []bytecode.ExceptionHandler{
					{StartPC: 0, EndPC: 2, ExceptionID: floatType, HandlerAddr: 2},
				},
			},
		},
	}
	thread := newThread(program)
	_, err := thread.RunFunction(0, nil)
	require.Error(t, err)

	var exc *exception.Exception
	require.ErrorAs(t, err, &exc)
	assert.True(t, exc.IsChecked)
}

// TestArgCountMismatchRaisesBeforeFirstInstruction checks RunFunction's own
// pre-flight check runs before any instruction executes.
func TestArgCountMismatchRaisesBeforeFirstInstruction(t *testing.T) {
	program := &bytecode.CompiledProgram{
		Code: []bytecode.Instruction{{Op: bytecode.OpReturnNothing}},
		Functions: []bytecode.CompiledFunction{
			{StartAddr: 0, ArgCount: 1, RetCount: 0, StackSize: 1},
		},
	}
	thread := newThread(program)
	_, err := thread.RunFunction(0, nil)
	require.Error(t, err)

	var exc *exception.Exception
	require.ErrorAs(t, err, &exc)
	assert.True(t, exc.IsKind(exception.ArgCountMismatch))
}
