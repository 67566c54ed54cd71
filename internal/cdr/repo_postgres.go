package cdr

import (
	"context"
	"database/sql"
	"time"

	"callbridge/pkg/utils"
)

// NOTE: This repository assumes the following tables exist:
// - call_records (immutable append-only)
// - call_stats_daily (projection maintained on every insert)
//
// The projection exists so the stats endpoint never scans call_records.

type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{DB: db} }

// Append inserts the record and bumps the daily stats projection in one
// transaction.
func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	return utils.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx *sql.Tx) error {
		const insertRecord = `
INSERT INTO call_records
    (id, session_id, channel_id, leg, caller_number, destination, direction,
     started_at, answered_at, ended_at, duration_seconds, bill_seconds,
     cause, disposition, recording_path, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`
		if _, err := tx.ExecContext(ctx, insertRecord,
			rec.ID,
			rec.SessionID,
			rec.ChannelID,
			string(rec.Leg),
			rec.CallerNumber,
			rec.Destination,
			rec.Direction,
			nullTime(rec.StartedAt),
			nullTime(rec.AnsweredAt),
			nullTime(rec.EndedAt),
			rec.DurationSeconds,
			rec.BillSeconds,
			rec.Cause,
			string(rec.Disposition),
			rec.RecordingPath,
			rec.CreatedAt,
		); err != nil {
			return err
		}

		const bumpStats = `
INSERT INTO call_stats_daily
    (day, total_legs, answered, no_answer, busy, canceled, failed, bill_seconds, recorded)
VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (day) DO UPDATE SET
    total_legs   = call_stats_daily.total_legs + 1,
    answered     = call_stats_daily.answered + EXCLUDED.answered,
    no_answer    = call_stats_daily.no_answer + EXCLUDED.no_answer,
    busy         = call_stats_daily.busy + EXCLUDED.busy,
    canceled     = call_stats_daily.canceled + EXCLUDED.canceled,
    failed       = call_stats_daily.failed + EXCLUDED.failed,
    bill_seconds = call_stats_daily.bill_seconds + EXCLUDED.bill_seconds,
    recorded     = call_stats_daily.recorded + EXCLUDED.recorded
`
		_, err := tx.ExecContext(ctx, bumpStats,
			rec.CreatedAt.UTC().Truncate(24*time.Hour),
			oneIf(rec.Disposition == DispositionAnswered),
			oneIf(rec.Disposition == DispositionNoAnswer),
			oneIf(rec.Disposition == DispositionBusy),
			oneIf(rec.Disposition == DispositionCanceled),
			oneIf(rec.Disposition == DispositionFailed),
			rec.BillSeconds,
			oneIf(rec.RecordingPath != ""),
		)
		return err
	})
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Record, error) {
	const q = `
SELECT id, session_id, channel_id, leg, caller_number, destination, direction,
       started_at, answered_at, ended_at, duration_seconds, bill_seconds,
       cause, disposition, recording_path, created_at
FROM call_records
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var startedAt, answeredAt, endedAt sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.ChannelID,
			&rec.Leg,
			&rec.CallerNumber,
			&rec.Destination,
			&rec.Direction,
			&startedAt,
			&answeredAt,
			&endedAt,
			&rec.DurationSeconds,
			&rec.BillSeconds,
			&rec.Cause,
			&rec.Disposition,
			&rec.RecordingPath,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.StartedAt = startedAt.Time
		rec.AnsweredAt = answeredAt.Time
		rec.EndedAt = endedAt.Time
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Summarize(ctx context.Context) (Summary, error) {
	const q = `
SELECT COALESCE(SUM(total_legs), 0),
       COALESCE(SUM(answered), 0),
       COALESCE(SUM(no_answer), 0),
       COALESCE(SUM(busy), 0),
       COALESCE(SUM(canceled), 0),
       COALESCE(SUM(failed), 0),
       COALESCE(SUM(bill_seconds), 0),
       COALESCE(SUM(recorded), 0)
FROM call_stats_daily
`
	var sum Summary
	if err := r.DB.QueryRowContext(ctx, q).Scan(
		&sum.TotalLegs,
		&sum.Answered,
		&sum.NoAnswer,
		&sum.Busy,
		&sum.Canceled,
		&sum.Failed,
		&sum.TotalBillSeconds,
		&sum.RecordedLegs,
	); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func oneIf(b bool) int {
	if b {
		return 1
	}
	return 0
}
