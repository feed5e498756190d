// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package tyck

import (
	"reflect"
	"testing"
)

func TestPlainTypeInterned(t *testing.T) {
	p := NewPool(0, 0)
	intType := reflect.TypeOf(int64(0))

	a := p.CreatePlainType(intType)
	b := p.CreatePlainType(intType)
	if a != b {
		t.Fatalf("structurally identical plain types must intern to the same pointer")
	}
}

func TestNullableWrapsDistinctInners(t *testing.T) {
	p := NewPool(0, 0)
	intType := p.CreatePlainType(reflect.TypeOf(int64(0)))
	floatType := p.CreatePlainType(reflect.TypeOf(float64(0)))

	a := p.CreateNullableType(intType)
	b := p.CreateNullableType(intType)
	c := p.CreateNullableType(floatType)

	if a != b {
		t.Fatalf("nullable(int) must intern identically across calls")
	}
	if a == c {
		t.Fatalf("nullable(int) and nullable(float) must not alias")
	}
}

func TestContainerTypeStructuralEquality(t *testing.T) {
	p := NewPool(0, 0)
	elemType := p.CreatePlainType(reflect.TypeOf(int64(0)))
	vecType := reflect.TypeOf([]int64(nil))

	a := p.CreateContainerType(vecType, []*TyckInfo{elemType})
	b := p.CreateContainerType(vecType, []*TyckInfo{elemType})
	if a != b {
		t.Fatalf("container types with identical params must intern to the same pointer")
	}
}

func TestAnyTypeSingleton(t *testing.T) {
	p := NewPool(0, 0)
	if p.CreateAnyType() != p.CreateAnyType() {
		t.Fatalf("CreateAnyType must always return the same singleton pointer")
	}
}

func TestCheckAnyAcceptsEverything(t *testing.T) {
	p := NewPool(0, 0)
	any := p.CreateAnyType()
	if !Check(any, fakeDyn{isNull: true}) {
		t.Fatalf("Any must accept null")
	}
	if !Check(any, fakeDyn{typ: reflect.TypeOf(int64(0))}) {
		t.Fatalf("Any must accept any concrete type")
	}
}

func TestCheckNullableAcceptsNullAndInner(t *testing.T) {
	p := NewPool(0, 0)
	intType := p.CreatePlainType(reflect.TypeOf(int64(0)))
	nullable := p.CreateNullableType(intType)

	if !Check(nullable, fakeDyn{isNull: true}) {
		t.Fatalf("Nullable(int) must accept null")
	}
	if !Check(nullable, fakeDyn{typ: reflect.TypeOf(int64(0))}) {
		t.Fatalf("Nullable(int) must accept an int")
	}
	if Check(nullable, fakeDyn{typ: reflect.TypeOf(float64(0))}) {
		t.Fatalf("Nullable(int) must reject a float")
	}
}

type fakeDyn struct {
	isNull bool
	typ    reflect.Type
}

func (d fakeDyn) IsNull() bool            { return d.isNull }
func (d fakeDyn) RuntimeType() reflect.Type { return d.typ }
