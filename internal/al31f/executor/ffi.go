// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package executor

import (
	"fmt"

	"github.com/probechain/pr47/internal/al31f/bytecode"
	"github.com/probechain/pr47/internal/al31f/exception"
	"github.com/probechain/pr47/internal/al31f/heap"
	"github.com/probechain/pr47/internal/al31f/tyck"
	"github.com/probechain/pr47/internal/al31f/value"
)

// ffiCall implements FFI_CALL_TYCK/FFI_CALL_RTLC/FFI_CALL (spec.md §4.4,
// §9): look up the host function, verify its arguments against its pooled
// signature when runtimeCheck is set (the Tyck variant; Rtlc and the plain
// FFI_CALL skip this check), then invoke it with this thread as its
// VMContext. Every variant borrow-guards its Ref arguments for the call.
func (t *VMThread) ffiCall(insn bytecode.Instruction, runtimeCheck bool) *exception.Exception {
	if insn.FFIIdx < 0 || insn.FFIIdx >= len(t.Program.FFIFuncs) {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.OverloadCallFailure, OverloadTbl: "ffi"})
	}
	fn := t.Program.FFIFuncs[insn.FFIIdx]

	args := make([]value.Value, len(insn.ArgLocs))
	for i, loc := range insn.ArgLocs {
		args[i] = t.Stack.Get(loc)
	}

	if runtimeCheck && fn.Signature != nil {
		for i, a := range args {
			if i >= len(fn.Signature.Params) {
				break
			}
			if !tyck.Check(fn.Signature.Params[i], dynValueOf(a)) {
				return exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: a, ExpectedType: fn.Name})
			}
		}
	}

	guards, exc := borrowArgs(args)
	defer releaseGuards(guards)
	if exc != nil {
		return exc
	}

	ret := make([]*value.Value, len(insn.RetLocs))
	slots := make([]value.Value, len(insn.RetLocs))
	for i := range slots {
		ret[i] = &slots[i]
	}
	if err := fn.Entry(t, args, ret); err != nil {
		if exc, ok := err.(*exception.Exception); ok {
			return exc
		}
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.JoinError, Cause: err})
	}
	for i, loc := range insn.RetLocs {
		t.Stack.Set(loc, slots[i])
	}
	return nil
}

// borrowArgs implements spec.md §4.8's `value_into_ref` half of the sync FFI
// borrow-check protocol: every Ref-kind argument is lent to host code for
// the call's duration, transitioning its Wrapper from VMOwned to
// SharedToRust (or bumping the refcount if already shared) so the collector
// never frees it mid-call and a second exclusive borrow is refused. FFIFunc
// carries no per-parameter mutability flag, so every argument takes the
// read-only share; none of this module's FFI entries mutate their
// arguments. The returned guards must be released exactly once, regardless
// of how the call concludes.
func borrowArgs(args []value.Value) ([]*heap.Guard, *exception.Exception) {
	guards := make([]*heap.Guard, 0, len(args))
	for _, a := range args {
		w, ok := a.Ptr().(*heap.Wrapper)
		if !ok {
			continue
		}
		g, err := w.BorrowRef()
		if err != nil {
			releaseGuards(guards)
			return nil, exception.NewUnchecked(&exception.Unchecked{
				Kind: exception.OwnershipCheckFailure, Object: a, ExpectedMask: heap.MaskRead, Cause: err,
			})
		}
		guards = append(guards, g)
	}
	return guards, nil
}

// releaseGuards releases every borrow guard in order, restoring each
// Wrapper's prior ownership state (spec.md §4.8's "guard drop restores the
// saved state"). Safe to call on a nil or partially-populated slice.
func releaseGuards(guards []*heap.Guard) {
	for _, g := range guards {
		g.Release()
	}
}

// AsyncShareGuard borrow-guards every Ref argument shared into an async FFI
// call (spec.md §4.9: "ownership transitions work the same for async calls,
// the guard just outlives the instruction that created it"). It is built the
// same way `borrowArgs` builds a sync call's guards, but its lifetime spans
// the gap between FFI_CALL_ASYNC and the matching AWAIT rather than a single
// instruction, since the host's future runs on another goroutine during that
// gap and must not see the VM reclaim or re-borrow the shared Values.
type AsyncShareGuard struct {
	guards []*heap.Guard
}

// shareArgsAsync borrow-guards args for the duration of an in-flight async
// call, mirroring borrowArgs.
func shareArgsAsync(args []value.Value) (*AsyncShareGuard, *exception.Exception) {
	guards, exc := borrowArgs(args)
	if exc != nil {
		return nil, exc
	}
	return &AsyncShareGuard{guards: guards}, nil
}

// AsyncResetGuard consumes an AsyncShareGuard exactly once, releasing its
// borrows and restoring every shared argument's ownership state (spec.md
// §4.9 "resolution resets ownership"). Reset is idempotent, matching
// heap.Guard.Release's idempotence.
type AsyncResetGuard struct {
	share *AsyncShareGuard
	done  bool
}

// Reset releases the underlying share guard's borrows. Safe to call more
// than once or on a nil receiver's zero share.
func (g *AsyncResetGuard) Reset() {
	if g == nil || g.done {
		return
	}
	g.done = true
	if g.share != nil {
		releaseGuards(g.share.guards)
	}
}

// PromiseContext is the heap-managed handle FFI_CALL_ASYNC[_TYCK] produces
// and AWAIT consumes: a channel the host's future resolves exactly once
// (spec.md §4.5 "coroutine suspends until the future resolves"), paired with
// the AsyncShareGuard protecting the arguments shared into that future for
// as long as it runs.
type PromiseContext struct {
	ch       <-chan bytecode.AsyncResult
	share    *AsyncShareGuard
	consumed bool
}

// asyncPromise is kept as an alias so existing call sites and tests that
// name the concrete promise type keep working; PromiseContext is the
// guard-carrying type spec.md §4.9 describes.
type asyncPromise = PromiseContext

// ffiCallAsync implements FFI_CALL_ASYNC[_TYCK]: borrow-guard the arguments
// for the duration of the call, invoke the host's async entry point (which
// must return immediately with a channel rather than blocking), and store a
// promise handle carrying both for a later AWAIT.
func (t *VMThread) ffiCallAsync(insn bytecode.Instruction) *exception.Exception {
	if insn.FFIIdx < 0 || insn.FFIIdx >= len(t.Program.AsyncFFIFuncs) {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.OverloadCallFailure, OverloadTbl: "async-ffi"})
	}
	fn := t.Program.AsyncFFIFuncs[insn.FFIIdx]
	args := make([]value.Value, len(insn.ArgLocs))
	for i, loc := range insn.ArgLocs {
		args[i] = t.Stack.Get(loc)
	}

	share, exc := shareArgsAsync(args)
	if exc != nil {
		return exc
	}

	ch, err := fn.Entry(t, args)
	if err != nil {
		(&AsyncResetGuard{share: share}).Reset()
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.JoinError, Cause: err})
	}
	promise := &PromiseContext{ch: ch, share: share}
	w := heap.New(promise, nil, nil)
	t.Alloc.AddManaged(w)
	t.Stack.Set(insn.A, value.NewRef(w, value.RefMeta{}))
	return nil
}

// await implements AWAIT (spec.md §4.5): release the VM-wide permit so a
// sibling coroutine can run, block on the promise's channel, reacquire the
// permit, and unwrap the result — either the host future's value or, if it
// failed, the JoinError unchecked exception (or the checked exception the
// future itself raised).
func (t *VMThread) await(insn bytecode.Instruction) *exception.Exception {
	v := t.Stack.Get(insn.B)
	w, ok := v.Ptr().(*heap.Wrapper)
	if !ok {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: v, ExpectedType: "promise"})
	}
	promise, ok := w.Data().(*asyncPromise)
	if !ok {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.TypeCheckFailure, Src: v, ExpectedType: "promise"})
	}
	if promise.consumed {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.AlreadyAwaited})
	}

	t.Permit.Release()
	result, open := <-promise.ch
	t.Permit.Acquire()
	promise.consumed = true
	(&AsyncResetGuard{share: promise.share}).Reset()
	if !open {
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.JoinError, Cause: fmt.Errorf("promise channel closed without a result")})
	}

	if result.Err != nil {
		if exc, ok := result.Err.(*exception.Exception); ok {
			return exc
		}
		return exception.NewUnchecked(&exception.Unchecked{Kind: exception.JoinError, Cause: result.Err})
	}
	if len(result.Values) > 0 {
		t.Stack.Set(insn.A, result.Values[0])
	}
	return nil
}
