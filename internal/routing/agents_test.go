package routing

import (
	"errors"
	"testing"
)

func TestParsePool(t *testing.T) {
	pool, err := ParsePool("user/1001@3, user/1002 ,sofia/gateway/pstn/+15551234567@2")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(pool) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(pool))
	}
	if pool[0].URI != "user/1001" || pool[0].Weight != 3 {
		t.Fatalf("unexpected first agent: %+v", pool[0])
	}
	if pool[1].URI != "user/1002" || pool[1].Weight != 1 {
		t.Fatalf("expected default weight 1, got %+v", pool[1])
	}
	if pool[2].URI != "sofia/gateway/pstn/+15551234567" || pool[2].Weight != 2 {
		t.Fatalf("unexpected gateway agent: %+v", pool[2])
	}
}

func TestParsePool_HostPartIsNotAWeight(t *testing.T) {
	pool, err := ParsePool("sofia/external/agent@pbx.example.com")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if pool[0].URI != "sofia/external/agent@pbx.example.com" || pool[0].Weight != 1 {
		t.Fatalf("expected host to stay part of the uri, got %+v", pool[0])
	}
}

func TestParsePool_RejectsNonPositiveWeight(t *testing.T) {
	if _, err := ParsePool("user/1001@0"); err == nil {
		t.Fatalf("expected error for zero weight")
	}
	if _, err := ParsePool("user/1001@-2"); err == nil {
		t.Fatalf("expected error for negative weight")
	}
}

func TestParsePool_RejectsEmptyPool(t *testing.T) {
	for _, s := range []string{"", " , ,"} {
		if _, err := ParsePool(s); !errors.Is(err, ErrEmptyPool) {
			t.Fatalf("expected ErrEmptyPool for %q, got %v", s, err)
		}
	}
}
