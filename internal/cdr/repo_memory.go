package cdr

import (
	"context"
	"sync"
)

// MemoryRepo keeps records in memory. The default when no database is
// configured, and the repository tests run against.

type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *MemoryRepo) Summarize(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sum Summary
	for _, rec := range r.records {
		sum.TotalLegs++
		sum.TotalBillSeconds += rec.BillSeconds
		if rec.RecordingPath != "" {
			sum.RecordedLegs++
		}
		switch rec.Disposition {
		case DispositionAnswered:
			sum.Answered++
		case DispositionNoAnswer:
			sum.NoAnswer++
		case DispositionBusy:
			sum.Busy++
		case DispositionCanceled:
			sum.Canceled++
		case DispositionFailed:
			sum.Failed++
		}
	}
	return sum, nil
}
