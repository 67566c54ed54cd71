package routing

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

type stubGuard struct {
	busy     map[string]bool
	err      error
	released []string
}

func (g *stubGuard) Acquire(ctx context.Context, agentURI string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	return !g.busy[agentURI], nil
}

func (g *stubGuard) Release(ctx context.Context, agentURI string) error {
	g.released = append(g.released, agentURI)
	return nil
}

func TestSelector_PicksFromPool(t *testing.T) {
	agents := []Agent{{URI: "user/1001", Weight: 1}, {URI: "user/1002", Weight: 3}}
	s := NewSelector(agents, &stubGuard{}, rand.New(rand.NewSource(1)))

	sel, err := s.Pick(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sel.Reason != ReasonWeighted {
		t.Fatalf("expected weighted reason, got %q", sel.Reason)
	}
	if sel.Agent.URI != "user/1001" && sel.Agent.URI != "user/1002" {
		t.Fatalf("picked agent outside the pool: %+v", sel.Agent)
	}
}

func TestSelector_NeverPicksZeroWeight(t *testing.T) {
	agents := []Agent{{URI: "user/1001", Weight: 0}, {URI: "user/1002", Weight: 1}}
	s := NewSelector(agents, &stubGuard{}, rand.New(rand.NewSource(1)))

	for i := 0; i < 100; i++ {
		sel, err := s.Pick(context.Background())
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if sel.Agent.URI == "user/1001" {
			t.Fatalf("picked zero-weight agent on iteration %d", i)
		}
	}
}

func TestSelector_SkipsAgentsAtCapacity(t *testing.T) {
	agents := []Agent{{URI: "user/1001", Weight: 5}, {URI: "user/1002", Weight: 1}}
	guard := &stubGuard{busy: map[string]bool{"user/1001": true}}
	s := NewSelector(agents, guard, rand.New(rand.NewSource(1)))

	sel, err := s.Pick(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sel.Agent.URI != "user/1002" {
		t.Fatalf("expected the free agent, got %+v", sel.Agent)
	}
}

func TestSelector_AllBusyReturnsNoAgent(t *testing.T) {
	agents := []Agent{{URI: "user/1001", Weight: 1}, {URI: "user/1002", Weight: 1}}
	guard := &stubGuard{busy: map[string]bool{"user/1001": true, "user/1002": true}}
	s := NewSelector(agents, guard, rand.New(rand.NewSource(1)))

	if _, err := s.Pick(context.Background()); !errors.Is(err, ErrNoAgentAvailable) {
		t.Fatalf("expected ErrNoAgentAvailable, got %v", err)
	}
}

func TestSelector_GuardErrorPropagates(t *testing.T) {
	boom := errors.New("redis down")
	s := NewSelector([]Agent{{URI: "user/1001", Weight: 1}}, &stubGuard{err: boom}, rand.New(rand.NewSource(1)))

	if _, err := s.Pick(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected guard error, got %v", err)
	}
}

func TestSelector_PinWinsOverPool(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	store := NewMemoryPinStore()
	store.Set(Pin{ID: "pin-1", AgentURI: "user/2000", ExpiresAt: now.Add(5 * time.Minute)})

	pins := NewPinEngine(store, nil)
	pins.Now = func() time.Time { return now }

	s := NewSelector([]Agent{{URI: "user/1001", Weight: 1}}, &stubGuard{}, rand.New(rand.NewSource(1)))
	s.Pins = pins

	sel, err := s.Pick(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sel.Reason != ReasonPinned || sel.Agent.URI != "user/2000" {
		t.Fatalf("expected pinned agent, got %+v", sel)
	}
}

func TestSelector_PinnedAgentAtCapacityFallsBack(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	store := NewMemoryPinStore()
	store.Set(Pin{AgentURI: "user/2000", ExpiresAt: now.Add(5 * time.Minute)})

	pins := NewPinEngine(store, nil)
	pins.Now = func() time.Time { return now }

	guard := &stubGuard{busy: map[string]bool{"user/2000": true}}
	s := NewSelector([]Agent{{URI: "user/1001", Weight: 1}}, guard, rand.New(rand.NewSource(1)))
	s.Pins = pins

	sel, err := s.Pick(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sel.Agent.URI != "user/1001" || sel.Reason != ReasonWeighted {
		t.Fatalf("expected fallback to the pool, got %+v", sel)
	}
}

func TestSelector_ReleaseForwardsToGuard(t *testing.T) {
	guard := &stubGuard{}
	s := NewSelector([]Agent{{URI: "user/1001", Weight: 1}}, guard, nil)

	if err := s.Release(context.Background(), Agent{URI: "user/1001"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(guard.released) != 1 || guard.released[0] != "user/1001" {
		t.Fatalf("expected release to reach the guard, got %v", guard.released)
	}
}
