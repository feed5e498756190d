// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package heap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveOutRoundTrips(t *testing.T) {
	w := New(42, nil, nil)
	got, err := w.MoveOut()
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, MovedToRust, w.State())
}

func TestMoveOutAfterMoveFails(t *testing.T) {
	w := New(42, nil, nil)
	_, err := w.MoveOut()
	require.NoError(t, err)

	_, err = w.MoveOut()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOwnershipViolation))
}

func TestBorrowRefThenReleaseRestoresState(t *testing.T) {
	w := New(7, nil, nil)
	g, err := w.BorrowRef()
	require.NoError(t, err)
	assert.Equal(t, SharedToRust, w.State())

	g.Release()
	assert.Equal(t, VMOwned, w.State())
}

func TestBorrowRefIdempotentReleaseIsNoOp(t *testing.T) {
	w := New(7, nil, nil)
	g, err := w.BorrowRef()
	require.NoError(t, err)

	g.Release()
	state := w.State()
	g.Release() // second release must be a no-op
	assert.Equal(t, state, w.State())
}

func TestBorrowMutRefFailsWhileReadShared(t *testing.T) {
	w := New(7, nil, nil)
	_, err := w.BorrowRef()
	require.NoError(t, err)

	_, err = w.BorrowMutRef()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOwnershipViolation), "mutable borrow while read-shared must fail with OwnershipCheckFailure")
}

func TestBorrowMutRefGrantsExclusiveAccessThenRestores(t *testing.T) {
	w := New(7, nil, nil)
	g, err := w.BorrowMutRef()
	require.NoError(t, err)
	assert.Equal(t, MutSharedToRust, w.State())

	g.Release()
	assert.Equal(t, VMOwned, w.State())
}

func TestExternalWrapperNotCollectable(t *testing.T) {
	v := 9
	w := NewExternal(&v, false)
	assert.False(t, w.State().Collectable())

	w2 := NewExternal(&v, true)
	assert.False(t, w2.State().Collectable())
}

func TestVMOwnedCollectableUntilMoved(t *testing.T) {
	w := New(1, nil, nil)
	assert.True(t, w.State().Collectable())

	_, err := w.MoveOut()
	require.NoError(t, err)
	assert.False(t, w.State().Collectable(), "MovedToRust must not be collectable")
}
