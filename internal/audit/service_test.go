package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Actor: "ops"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogOperatorAction(context.Background(), "ops", "admin", "1.2.3.4", "hung up session", "sess-1", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeOperatorAction {
		t.Fatalf("expected operator_action")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled")
	}
}

func TestMemoryRepo_ListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	for _, msg := range []string{"first", "second", "third"} {
		if err := svc.LogOperatorAction(context.Background(), "ops", "admin", "", msg, "", ""); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	evs, err := repo.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Message != "third" || evs[1].Message != "second" {
		t.Fatalf("expected newest first, got %q then %q", evs[0].Message, evs[1].Message)
	}
}

func TestClientIPRoundTrip(t *testing.T) {
	ctx := WithClientIP(context.Background(), "10.0.0.9")
	if got := ClientIPFromContext(ctx); got != "10.0.0.9" {
		t.Fatalf("expected ip from context, got %q", got)
	}
	if got := ClientIPFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty ip, got %q", got)
	}
}
