package bridge

import (
	"context"
	"testing"
)

func TestRegistry_BindAndRemove(t *testing.T) {
	r := NewRegistry()
	s := NewSession(DirectionOutbound, nil)

	r.Add(s)
	r.Bind("chan-a", s)
	r.Bind("chan-b", s)

	if got, ok := r.Get(s.ID()); !ok || got != s {
		t.Fatalf("expected session by id")
	}
	if got, ok := r.ByChannel("chan-b"); !ok || got != s {
		t.Fatalf("expected session by channel")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}

	r.Remove(s.ID())
	if _, ok := r.Get(s.ID()); ok {
		t.Fatalf("expected session gone")
	}
	if _, ok := r.ByChannel("chan-a"); ok {
		t.Fatalf("expected channel binding gone")
	}
	if _, ok := r.ByChannel("chan-b"); ok {
		t.Fatalf("expected channel binding gone")
	}

	// Removing twice is a no-op.
	r.Remove(s.ID())
}

func TestRegistry_RemoveKeepsOtherBindings(t *testing.T) {
	r := NewRegistry()
	s1 := NewSession(DirectionOutbound, nil)
	s2 := NewSession(DirectionOutbound, nil)
	r.Add(s1)
	r.Add(s2)
	r.Bind("chan-1", s1)
	r.Bind("chan-2", s2)

	r.Remove(s1.ID())
	if _, ok := r.ByChannel("chan-2"); !ok {
		t.Fatalf("unrelated binding removed")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session left, got %d", r.Len())
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	s1 := NewSession(DirectionOutbound, nil)
	s2 := NewSession(DirectionInbound, nil)
	r.Add(s1)
	r.Add(s2)

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	seen := map[string]bool{}
	for _, s := range list {
		seen[s.ID()] = true
	}
	if !seen[s1.ID()] || !seen[s2.ID()] {
		t.Fatalf("listing missed a session")
	}
}

func TestRegistry_HangupAll(t *testing.T) {
	r := NewRegistry()

	ctl1 := newScriptedController()
	s1 := NewSession(DirectionOutbound, ctl1)
	s1.SetCustomer("chan-1a", "5551111")
	s1.SetAgent("chan-1b", "user/1001")
	r.Add(s1)

	ctl2 := newScriptedController()
	s2 := NewSession(DirectionInbound, ctl2)
	s2.SetCustomer("chan-2a", "5552222")
	r.Add(s2)

	attempted := r.HangupAll(context.Background())
	if attempted != 3 {
		t.Fatalf("expected 3 hangups attempted, got %d", attempted)
	}

	ops1 := ctl1.Ops()
	if len(ops1) != 2 || ops1[0] != "hangup chan-1a" || ops1[1] != "hangup chan-1b" {
		t.Fatalf("unexpected ops on first controller: %v", ops1)
	}
	ops2 := ctl2.Ops()
	if len(ops2) != 1 || ops2[0] != "hangup chan-2a" {
		t.Fatalf("unexpected ops on second controller: %v", ops2)
	}
}
