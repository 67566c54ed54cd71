package cdr

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for call records.
//
// Append-only: records are never updated or deleted.

type Repository interface {
	Append(ctx context.Context, rec Record) error
	// List returns the newest records first, at most limit of them.
	List(ctx context.Context, limit int) ([]Record, error)
	Summarize(ctx context.Context) (Summary, error)
}

// Summary aggregates ingested records for the stats endpoint.
type Summary struct {
	TotalLegs int `json:"total_legs"`
	Answered  int `json:"answered"`
	NoAnswer  int `json:"no_answer"`
	Busy      int `json:"busy"`
	Canceled  int `json:"canceled"`
	Failed    int `json:"failed"`

	TotalBillSeconds   int `json:"total_bill_seconds"`
	AverageBillSeconds int `json:"average_bill_seconds"`

	RecordedLegs int `json:"recorded_legs"`
}

var ErrInvalidRecord = errors.New("cdr: invalid record")

const defaultListLimit = 50

// Service validates and stores call records.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Ingest(ctx context.Context, rec Record) error {
	if s.repo == nil {
		return errors.New("cdr: repository not configured")
	}
	if rec.ChannelID == "" || rec.Leg == "" {
		return ErrInvalidRecord
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	if rec.Disposition == "" {
		rec.Disposition = dispositionFor(rec.Cause, rec.BillSeconds)
	}
	return s.repo.Append(ctx, rec)
}

func (s *Service) List(ctx context.Context, limit int) ([]Record, error) {
	if s.repo == nil {
		return nil, errors.New("cdr: repository not configured")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.List(ctx, limit)
}

func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	if s.repo == nil {
		return Summary{}, errors.New("cdr: repository not configured")
	}
	sum, err := s.repo.Summarize(ctx)
	if err != nil {
		return Summary{}, err
	}
	if sum.Answered > 0 {
		sum.AverageBillSeconds = sum.TotalBillSeconds / sum.Answered
	}
	return sum, nil
}
