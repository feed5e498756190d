// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probechain/pr47/internal/al31f/value"
)

func TestVecPushPopOrder(t *testing.T) {
	w := NewVec()
	vec := w.Data().(*Vec)

	vec.Push(value.NewInt(1))
	vec.Push(value.NewInt(2))
	vec.Push(value.NewInt(3))
	assert.Equal(t, int64(3), vec.Len())

	v, ok := vec.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(3), v.Int())
	assert.Equal(t, int64(2), vec.Len())
}

func TestVecPopEmptyReturnsFalse(t *testing.T) {
	vec := &Vec{}
	_, ok := vec.Pop()
	assert.False(t, ok)
}

func TestVecIndexOutOfRange(t *testing.T) {
	vec := &Vec{}
	vec.Push(value.NewInt(10))

	_, ok := vec.Index(-1)
	assert.False(t, ok)
	_, ok = vec.Index(1)
	assert.False(t, ok)

	v, ok := vec.Index(0)
	require.True(t, ok)
	assert.Equal(t, int64(10), v.Int())
}

func TestVecChildrenWalksRefElements(t *testing.T) {
	vec := &Vec{}
	inner := NewVec()
	vec.Push(value.NewRef(inner, value.RefMeta{Container: true}))
	vec.Push(value.NewInt(5))

	refs := vecChildren(vec)
	require.Len(t, refs, 2)
	assert.Same(t, inner, refs[0].Wrapper())
	assert.Nil(t, refs[1].Wrapper())
}

func TestObjectGetPutAndAbsentKey(t *testing.T) {
	w := NewObject()
	obj := w.Data().(*Object)

	obj.Put("name", value.NewInt(7))
	v, ok := obj.Get("name")
	require.True(t, ok)
	assert.Equal(t, int64(7), v.Int())

	_, ok = obj.Get("missing")
	assert.False(t, ok)
}

func TestObjectChildrenWalksRefValues(t *testing.T) {
	obj := &Object{Fields: make(map[string]value.Value)}
	inner := NewObject()
	obj.Put("child", value.NewRef(inner, value.RefMeta{Container: true}))
	obj.Put("scalar", value.NewBool(true))

	refs := objectChildren(obj)
	require.Len(t, refs, 2)

	var sawWrapper, sawNil bool
	for _, r := range refs {
		if r.Wrapper() == inner {
			sawWrapper = true
		}
		if r.Wrapper() == nil {
			sawNil = true
		}
	}
	assert.True(t, sawWrapper)
	assert.True(t, sawNil)
}

func TestValueChildContainerAlwaysNil(t *testing.T) {
	c := valueChild{value.NewRef(NewVec(), value.RefMeta{Container: true})}
	assert.Nil(t, c.Container())
}
