package routing

import (
	"context"

	"callbridge/internal/audit"
)

// AuditAdapter bridges the pin audit hook to the shared audit.Service.
//
// This keeps routing internals from depending on persistence or on any
// user-facing surface.

type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogPinApplied(ctx context.Context, e PinAuditEvent) error {
	if a.Audit == nil {
		return nil
	}
	return a.Audit.Append(ctx, audit.Event{
		Type:      audit.EventTypeAgentPin,
		IPAddress: audit.ClientIPFromContext(ctx),
		AgentURI:  e.AgentURI,
		PinID:     e.PinID,
		Message:   "agent pin applied",
		Metadata:  e.Note,
	})
}
