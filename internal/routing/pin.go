package routing

import (
	"context"
	"errors"
	"sync"
	"time"
)

// PinEngine applies silent, expiry-based agent pins ahead of weighted
// selection.
//
// Requirements:
// - Silent routing: callers must not be able to tell a pinned bridge from
//   a weighted one. That means: do NOT surface special reasons/messages
//   on user-facing surfaces.
// - Expiry based: pins must be time-bounded.
// - Internal audit logging: every applied pin should be recorded.
//
// This component returns an agent only and does not touch the switch.
// It is intended to be placed *ahead of* normal selection.

type PinEngine struct {
	Store PinStore
	Audit PinAuditLogger
	Now   func() time.Time
}

// PinStore resolves the currently-active pin.
// Implementations may use memory, Postgres or Redis.
type PinStore interface {
	// ActivePin returns the active pin if one exists.
	// If none exists, it returns (Pin{}, false, nil).
	ActivePin(ctx context.Context, now time.Time) (Pin, bool, error)
}

// PinAuditLogger records internal-only audit events.
type PinAuditLogger interface {
	LogPinApplied(ctx context.Context, e PinAuditEvent) error
}

type Pin struct {
	// ID is optional but recommended for correlating audit logs.
	ID string

	// AgentURI is the forced dial target.
	AgentURI string

	// ExpiresAt marks when the pin stops applying.
	ExpiresAt time.Time

	// Note is optional free text for internal audit correlation.
	Note string
}

type PinAuditEvent struct {
	PinID     string
	AgentURI  string
	AppliedAt time.Time
	ExpiresAt time.Time
	Note      string
}

func NewPinEngine(store PinStore, audit PinAuditLogger) *PinEngine {
	return &PinEngine{Store: store, Audit: audit, Now: time.Now}
}

// Decide returns (agent, true, nil) if an active pin was applied.
// Returns (Agent{}, false, nil) if no pin applies.
func (e *PinEngine) Decide(ctx context.Context) (Agent, bool, error) {
	if e.Store == nil {
		return Agent{}, false, nil
	}
	if e.Now == nil {
		e.Now = time.Now
	}

	now := e.Now()
	p, ok, err := e.Store.ActivePin(ctx, now)
	if err != nil {
		return Agent{}, false, err
	}
	if !ok {
		return Agent{}, false, nil
	}
	if !p.ExpiresAt.After(now) {
		// Treat as not found; the store should ideally filter these out.
		return Agent{}, false, nil
	}
	if p.AgentURI == "" {
		return Agent{}, false, errors.New("routing: pin agent_uri empty")
	}

	// Internal audit.
	if e.Audit != nil {
		_ = e.Audit.LogPinApplied(ctx, PinAuditEvent{
			PinID:     p.ID,
			AgentURI:  p.AgentURI,
			AppliedAt: now,
			ExpiresAt: p.ExpiresAt,
			Note:      p.Note,
		})
	}

	return Agent{URI: p.AgentURI, Weight: 1}, true, nil
}

// MemoryPinStore holds at most one pin. Enough for a single bridge
// instance; a shared store belongs in Redis if instances multiply.
type MemoryPinStore struct {
	mu  sync.Mutex
	pin Pin
	set bool
}

func NewMemoryPinStore() *MemoryPinStore { return &MemoryPinStore{} }

func (s *MemoryPinStore) Set(p Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pin = p
	s.set = true
}

func (s *MemoryPinStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pin = Pin{}
	s.set = false
}

func (s *MemoryPinStore) ActivePin(ctx context.Context, now time.Time) (Pin, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || !s.pin.ExpiresAt.After(now) {
		return Pin{}, false, nil
	}
	return s.pin, true, nil
}
