// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package alloc

import (
	"testing"

	"github.com/probechain/pr47/internal/al31f/heap"
	"github.com/probechain/pr47/internal/al31f/value"
)

type fakeStack struct {
	slots []value.Value
}

func (f *fakeStack) AllSlots() []value.Value { return f.slots }

func TestUnreachableObjectIsSweptAfterCollect(t *testing.T) {
	a := New(0, nil)
	dropped := false
	w := heap.New(1, nil, func() { dropped = true })
	a.AddManaged(w)

	st := &fakeStack{} // no roots at all
	a.AddStack(st)

	a.Collect()
	if a.Contains(w) {
		t.Fatalf("unreachable wrapper should have been swept")
	}
	if !dropped {
		t.Fatalf("Drop should have been invoked during sweep")
	}
}

func TestReachableObjectSurvivesCollect(t *testing.T) {
	a := New(0, nil)
	dropped := false
	w := heap.New(1, nil, func() { dropped = true })
	a.AddManaged(w)

	st := &fakeStack{slots: []value.Value{value.NewRef(w, value.RefMeta{})}}
	a.AddStack(st)

	a.Collect()
	if !a.Contains(w) {
		t.Fatalf("reachable wrapper must survive collection")
	}
	if dropped {
		t.Fatalf("Drop must not be invoked on a reachable wrapper")
	}
}

func TestChildReachabilityThroughChildrenCallback(t *testing.T) {
	a := New(0, nil)
	childDropped := false
	child := heap.New(2, nil, func() { childDropped = true })
	a.AddManaged(child)

	parentRef := value.NewRef(child, value.RefMeta{})
	parent := heap.New(1, func() []heap.ChildRef {
		return []heap.ChildRef{childRef{parentRef}}
	}, nil)
	a.AddManaged(parent)

	st := &fakeStack{slots: []value.Value{value.NewRef(parent, value.RefMeta{})}}
	a.AddStack(st)

	a.Collect()
	if !a.Contains(child) {
		t.Fatalf("child reachable only via parent's Children() must survive")
	}
	if childDropped {
		t.Fatalf("reachable child must not be dropped")
	}
}

func TestPinObjectsKeepsValueAliveUntilReleased(t *testing.T) {
	a := New(0, nil)
	dropped := false
	w := heap.New(1, nil, func() { dropped = true })
	a.AddManaged(w)
	a.AddStack(&fakeStack{}) // no stack roots; only the pin keeps w alive

	release := a.PinObjects([]value.Value{value.NewRef(w, value.RefMeta{})})
	a.Collect()
	if !a.Contains(w) {
		t.Fatalf("pinned object must survive collection")
	}

	release()
	a.Collect()
	if a.Contains(w) {
		t.Fatalf("object must be collectable once its pin is released")
	}
	if !dropped {
		t.Fatalf("Drop should have run after the pin was released")
	}
}

// childRef adapts a value.Value to heap.ChildRef for tests.
type childRef struct {
	v value.Value
}

func (c childRef) IsNull() bool { return c.v.IsNull() }
func (c childRef) Wrapper() *heap.Wrapper {
	w, _ := c.v.Ptr().(*heap.Wrapper)
	return w
}
func (c childRef) Container() heap.ContainerHandle { return nil }
