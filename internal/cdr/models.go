package cdr

import (
	"time"

	"callbridge/internal/telephony"
)

// Leg identifies which side of the bridge a record describes.
type Leg string

const (
	LegCustomer Leg = "customer"
	LegAgent    Leg = "agent"
)

// Disposition classifies how a call leg ended.
type Disposition string

const (
	DispositionAnswered Disposition = "answered"
	DispositionNoAnswer Disposition = "no_answer"
	DispositionBusy     Disposition = "busy"
	DispositionCanceled Disposition = "canceled"
	DispositionFailed   Disposition = "failed"
)

// Record is one call leg's detail record, sourced from the switch's
// hangup event. Records are immutable once ingested.

type Record struct {
	ID        string `json:"id" db:"id"`
	SessionID string `json:"session_id" db:"session_id"`
	ChannelID string `json:"channel_id" db:"channel_id"`
	Leg       Leg    `json:"leg" db:"leg"`

	CallerNumber string `json:"caller_number,omitempty" db:"caller_number"`
	Destination  string `json:"destination,omitempty" db:"destination"`
	Direction    string `json:"direction,omitempty" db:"direction"`

	StartedAt  time.Time `json:"started_at,omitempty" db:"started_at"`
	AnsweredAt time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds covers ring time; BillSeconds runs from answer.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`
	BillSeconds     int `json:"bill_seconds" db:"bill_seconds"`

	Cause       string      `json:"cause" db:"cause"`
	Disposition Disposition `json:"disposition" db:"disposition"`

	RecordingPath string `json:"recording_path,omitempty" db:"recording_path"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FromNotification builds a Record from a hangup notification.
// Non-hangup notifications produce an empty record with ok=false.
func FromNotification(n telephony.Notification, sessionID string, leg Leg) (Record, bool) {
	if n.Kind != telephony.NotificationHangup {
		return Record{}, false
	}
	return Record{
		SessionID:       sessionID,
		ChannelID:       n.ChannelID,
		Leg:             leg,
		CallerNumber:    n.CallerNumber,
		Destination:     n.Destination,
		Direction:       n.Direction,
		StartedAt:       n.StartedAt,
		AnsweredAt:      n.AnsweredAt,
		EndedAt:         n.EndedAt,
		DurationSeconds: n.DurationSeconds,
		BillSeconds:     n.BillSeconds,
		Cause:           n.Cause,
		Disposition:     dispositionFor(n.Cause, n.BillSeconds),
	}, true
}

// dispositionFor derives the disposition from the hangup cause and billable
// seconds. Any answered leg counts as answered no matter how it ended.
func dispositionFor(cause string, billSeconds int) Disposition {
	if billSeconds > 0 {
		return DispositionAnswered
	}
	switch cause {
	case "USER_BUSY":
		return DispositionBusy
	case "NO_ANSWER", "NO_USER_RESPONSE", "ALLOTTED_TIMEOUT", "PROGRESS_TIMEOUT":
		return DispositionNoAnswer
	case "ORIGINATOR_CANCEL", "NORMAL_CLEARING":
		return DispositionCanceled
	default:
		return DispositionFailed
	}
}
