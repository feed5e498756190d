// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package tyck implements TyckInfo, the interned structural type descriptor
// spec.md §4.7 describes: Any, Plain(type_id), Nullable(inner),
// Container(type_id, params), Function(params, returns, exceptions). The
// pool interns descriptors so that structural equality reduces to pointer
// equality.
package tyck

import (
	"fmt"
	"reflect"
)

// Variant discriminates the shape of a TyckInfo node.
type Variant uint8

const (
	VAny Variant = iota
	VPlain
	VNullable
	VContainer
	VFunction
)

// TyckInfo is a pool-allocated discriminated structural type descriptor.
// Instances are never constructed directly outside this package; obtain one
// from a Pool's Create* methods so that structural equality is guaranteed to
// be pointer equality (spec.md §4.7).
type TyckInfo struct {
	Variant Variant

	TypeID reflect.Type // for VPlain / VContainer

	Inner *TyckInfo // for VNullable

	Params     []*TyckInfo // for VContainer / VFunction
	Returns    []*TyckInfo // for VFunction
	Exceptions []reflect.Type // for VFunction

	key string // structural encoding, used as the pool/cache key
}

func (t *TyckInfo) String() string {
	switch t.Variant {
	case VAny:
		return "any"
	case VPlain:
		return fmt.Sprintf("%v", t.TypeID)
	case VNullable:
		return fmt.Sprintf("%s?", t.Inner)
	case VContainer:
		return fmt.Sprintf("%v%v", t.TypeID, t.Params)
	case VFunction:
		return fmt.Sprintf("fn(%v) -> %v throws %v", t.Params, t.Returns, t.Exceptions)
	default:
		return "<invalid tyck info>"
	}
}

// DynValue is the runtime shape Check matches against (spec.md §4.7's
// `check_type(value, info)`): the minimal facts the checker needs about a
// Value, kept as an interface so this package does not import the value
// package.
type DynValue interface {
	// IsNull reports whether the value is the null value.
	IsNull() bool
	// RuntimeType returns the dynamic Go type backing a non-null value: for
	// value-typed cells, the primitive's reflect.Type; for references, the
	// wrapped T's reflect.Type (DynBase.dyn_tyck in spec.md parlance).
	RuntimeType() reflect.Type
}

// Check recursively matches dv against info, returning true on a type-check
// success and false on a TypeCheckFailure (spec.md's `TypeCheckFailure`
// unchecked exception is raised by the caller, not here — Check is a pure
// predicate so it can also be used outside exception-raising contexts, e.g.
// FFICallTyck's upfront argument validation).
func Check(info *TyckInfo, dv DynValue) bool {
	switch info.Variant {
	case VAny:
		return true
	case VNullable:
		if dv.IsNull() {
			return true
		}
		return Check(info.Inner, dv)
	case VPlain:
		if dv.IsNull() {
			return false
		}
		return dv.RuntimeType() == info.TypeID
	case VContainer:
		if dv.IsNull() {
			return false
		}
		// Only the container's own type identity is verified; element
		// types (Params) are not checked.
		return dv.RuntimeType() == info.TypeID
	case VFunction:
		if dv.IsNull() {
			return false
		}
		return dv.RuntimeType() == info.TypeID
	default:
		return false
	}
}
