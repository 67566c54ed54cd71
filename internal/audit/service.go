package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Lister is the read side used by the operator API.
type Lister interface {
	// List returns the newest events first, at most limit of them.
	List(ctx context.Context, limit int) ([]Event, error)
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records outside the operator API.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogOperatorAction records an action taken through the operator API.
func (s *Service) LogOperatorAction(ctx context.Context, actor, role, ip, message, sessionID, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeOperatorAction,
		Actor:     actor,
		ActorRole: role,
		IPAddress: ip,
		SessionID: sessionID,
		Message:   message,
		Metadata:  metadata,
	})
}
