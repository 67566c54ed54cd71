package telephony

import (
	"testing"
	"time"
)

type stubEvent map[string]string

func (s stubEvent) GetHeader(name string) string { return s[name] }

func TestNotificationFromEvent_Answer(t *testing.T) {
	ev := stubEvent{
		"Event-Name":                   "CHANNEL_ANSWER",
		"Unique-ID":                    "chan-1",
		"Caller-Caller-ID-Number":      "3001",
		"Caller-Destination-Number":    "5551234",
		"Call-Direction":               "outbound",
		"Caller-Channel-Answered-Time": "1724580000000000",
	}

	n, ok := notificationFromEvent(ev)
	if !ok {
		t.Fatal("expected event to map to a notification")
	}
	if n.Kind != NotificationAnswered {
		t.Fatalf("expected kind %q, got %q", NotificationAnswered, n.Kind)
	}
	if n.ChannelID != "chan-1" {
		t.Fatalf("expected channel chan-1, got %q", n.ChannelID)
	}
	if n.CallerNumber != "3001" || n.Destination != "5551234" {
		t.Fatalf("unexpected parties: %q -> %q", n.CallerNumber, n.Destination)
	}
	want := time.UnixMicro(1724580000000000).UTC()
	if !n.AnsweredAt.Equal(want) {
		t.Fatalf("expected answered at %v, got %v", want, n.AnsweredAt)
	}
}

func TestNotificationFromEvent_HangupCarriesBilling(t *testing.T) {
	ev := stubEvent{
		"Event-Name":                   "CHANNEL_HANGUP_COMPLETE",
		"Unique-ID":                    "chan-2",
		"Hangup-Cause":                 "NORMAL_CLEARING",
		"Caller-Channel-Created-Time":  "1724580000000000",
		"Caller-Channel-Answered-Time": "1724580005000000",
		"Caller-Channel-Hangup-Time":   "1724580065000000",
		"variable_duration":            "65",
		"variable_billsec":             "60",
	}

	n, ok := notificationFromEvent(ev)
	if !ok {
		t.Fatal("expected event to map to a notification")
	}
	if n.Kind != NotificationHangup {
		t.Fatalf("expected kind %q, got %q", NotificationHangup, n.Kind)
	}
	if n.Cause != "NORMAL_CLEARING" {
		t.Fatalf("expected cause NORMAL_CLEARING, got %q", n.Cause)
	}
	if n.DurationSeconds != 65 || n.BillSeconds != 60 {
		t.Fatalf("expected duration 65 bill 60, got %d/%d", n.DurationSeconds, n.BillSeconds)
	}
	if n.EndedAt.Sub(n.StartedAt) != 65*time.Second {
		t.Fatalf("expected 65s between start and end, got %v", n.EndedAt.Sub(n.StartedAt))
	}
}

func TestNotificationFromEvent_ExecuteComplete(t *testing.T) {
	ev := stubEvent{
		"Event-Name":           "CHANNEL_EXECUTE_COMPLETE",
		"Unique-ID":            "chan-3",
		"Application":          "playback",
		"Application-Response": "FILE PLAYED",
	}

	n, ok := notificationFromEvent(ev)
	if !ok {
		t.Fatal("expected event to map to a notification")
	}
	if n.Kind != NotificationExecuteComplete {
		t.Fatalf("expected kind %q, got %q", NotificationExecuteComplete, n.Kind)
	}
	if n.App != "playback" || n.AppResponse != "FILE PLAYED" {
		t.Fatalf("unexpected application fields: %q %q", n.App, n.AppResponse)
	}
}

func TestNotificationFromEvent_IgnoresUnwatchedEvents(t *testing.T) {
	ev := stubEvent{
		"Event-Name": "CHANNEL_PROGRESS",
		"Unique-ID":  "chan-4",
	}
	if _, ok := notificationFromEvent(ev); ok {
		t.Fatal("expected unwatched event to be dropped")
	}
}

func TestNotificationFromEvent_RequiresChannelID(t *testing.T) {
	ev := stubEvent{"Event-Name": "CHANNEL_ANSWER"}
	if _, ok := notificationFromEvent(ev); ok {
		t.Fatal("expected event without a channel id to be dropped")
	}
}

func TestEpochMicroTime_BadInput(t *testing.T) {
	for _, v := range []string{"", "0", "not-a-number"} {
		if got := epochMicroTime(v); !got.IsZero() {
			t.Fatalf("expected zero time for %q, got %v", v, got)
		}
	}
}
