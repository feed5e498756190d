// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package exception implements the checked/unchecked exception model of
// spec.md §4.6 and §7: a single Exception type with two variants, carrying
// an innermost-first stack trace of (func_id, insc_ptr) pairs.
package exception

import (
	"fmt"

	"github.com/probechain/pr47/internal/al31f/heap"
	"github.com/probechain/pr47/internal/al31f/value"
)

// UncheckedKind enumerates the runtime-produced failures that always unwind
// to the host (spec.md §4.6, §7).
type UncheckedKind uint8

const (
	AlreadyAwaited UncheckedKind = iota
	ArgCountMismatch
	DivideByZero
	InvalidBinaryOp
	InvalidCastOp
	InvalidUnaryOp
	OwnershipCheckFailure
	TypeCheckFailure
	OverloadCallFailure
	UnexpectedNull
	IndexOutOfBounds
	JoinError
)

func (k UncheckedKind) String() string {
	switch k {
	case AlreadyAwaited:
		return "AlreadyAwaited"
	case ArgCountMismatch:
		return "ArgCountMismatch"
	case DivideByZero:
		return "DivideByZero"
	case InvalidBinaryOp:
		return "InvalidBinaryOp"
	case InvalidCastOp:
		return "InvalidCastOp"
	case InvalidUnaryOp:
		return "InvalidUnaryOp"
	case OwnershipCheckFailure:
		return "OwnershipCheckFailure"
	case TypeCheckFailure:
		return "TypeCheckFailure"
	case OverloadCallFailure:
		return "OverloadCallFailure"
	case UnexpectedNull:
		return "UnexpectedNull"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case JoinError:
		return "JoinError"
	default:
		return fmt.Sprintf("UncheckedKind(%d)", uint8(k))
	}
}

// Unchecked carries a kind plus whatever kind-specific payload fields apply;
// unused fields are left at their zero value.
type Unchecked struct {
	Kind UncheckedKind

	FuncID       uint32
	Expected     int
	Got          int
	BinOp        string
	UnaryOp      string
	Lhs, Rhs     value.Value
	Src          value.Value
	DestType     string
	Object       value.Value
	ExpectedMask heap.Mask
	ExpectedType string
	Indexed      value.Value
	Index        value.Value
	OverloadTbl  string
	Cause        error
}

func (u *Unchecked) Error() string {
	switch u.Kind {
	case ArgCountMismatch:
		return fmt.Sprintf("%s: func %d expected %d args, got %d", u.Kind, u.FuncID, u.Expected, u.Got)
	case DivideByZero:
		return u.Kind.String()
	case InvalidBinaryOp:
		return fmt.Sprintf("%s: %s %s %s", u.Kind, u.Lhs, u.BinOp, u.Rhs)
	case InvalidUnaryOp:
		return fmt.Sprintf("%s: %s %s", u.Kind, u.UnaryOp, u.Src)
	case InvalidCastOp:
		return fmt.Sprintf("%s: cannot cast %s to %s", u.Kind, u.Src, u.DestType)
	case OwnershipCheckFailure:
		return fmt.Sprintf("%s: object %s, expected mask %s", u.Kind, u.Object, u.ExpectedMask)
	case TypeCheckFailure:
		return fmt.Sprintf("%s: value %s does not match %s", u.Kind, u.Src, u.ExpectedType)
	case OverloadCallFailure:
		return fmt.Sprintf("%s: no overload in %s matched", u.Kind, u.OverloadTbl)
	case UnexpectedNull:
		return u.Kind.String()
	case IndexOutOfBounds:
		return fmt.Sprintf("%s: index %s out of bounds for %s", u.Kind, u.Index, u.Indexed)
	case AlreadyAwaited:
		return u.Kind.String()
	case JoinError:
		if u.Cause != nil {
			return fmt.Sprintf("%s: %v", u.Kind, u.Cause)
		}
		return u.Kind.String()
	default:
		return u.Kind.String()
	}
}

// Unwrap exposes a JoinError's underlying host-scheduler failure for
// errors.Is/errors.As.
func (u *Unchecked) Unwrap() error { return u.Cause }

// Is lets host code write errors.Is(err, &Unchecked{Kind: DivideByZero})
// without needing to match the kind-specific payload fields.
func (u *Unchecked) Is(target error) bool {
	other, ok := target.(*Unchecked)
	if !ok {
		return false
	}
	return other.Kind == u.Kind
}

// Frame is one (func_id, insc_ptr) entry of an Exception's trace, innermost
// frame first (spec.md §4.6).
type Frame struct {
	FuncID uint32
	PC     int
}

// Exception is spec.md §3/§4.6's `{ inner: Checked(Value) | Unchecked(...),
// trace }`. Exactly one of Checked/UncheckedErr is set.
type Exception struct {
	Checked     value.Value
	IsChecked   bool
	UncheckedErr *Unchecked

	Trace []Frame
}

// NewChecked wraps a script-visible value as a checked exception with an
// empty trace (populated as the exception unwinds).
func NewChecked(v value.Value) *Exception {
	return &Exception{Checked: v, IsChecked: true}
}

// NewUnchecked wraps an UncheckedKind failure as an exception.
func NewUnchecked(u *Unchecked) *Exception {
	return &Exception{UncheckedErr: u}
}

func (e *Exception) Error() string {
	if e.IsChecked {
		return fmt.Sprintf("checked exception: %s (trace depth %d)", e.Checked, len(e.Trace))
	}
	return fmt.Sprintf("unchecked exception: %v (trace depth %d)", e.UncheckedErr, len(e.Trace))
}

// Unwrap exposes the unchecked payload, if any, for errors.As.
func (e *Exception) Unwrap() error {
	if e.IsChecked {
		return nil
	}
	return e.UncheckedErr
}

// AppendFrame records the current (func_id, insc_ptr) as the unwind passes
// through one more frame, innermost-first (spec.md §4.6 step "append
// (func_id, current_insc_ptr) to the trace").
func (e *Exception) AppendFrame(funcID uint32, pc int) {
	e.Trace = append(e.Trace, Frame{FuncID: funcID, PC: pc})
}

// IsKind reports whether this exception is an unchecked failure of kind.
func (e *Exception) IsKind(kind UncheckedKind) bool {
	return !e.IsChecked && e.UncheckedErr != nil && e.UncheckedErr.Kind == kind
}
