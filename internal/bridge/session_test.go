package bridge

import (
	"testing"
	"time"

	"callbridge/internal/telephony"
)

func TestSession_LegSettersFirstCallWins(t *testing.T) {
	s := NewSession(DirectionOutbound, nil)

	s.SetCustomer("chan-a", "5551234")
	s.SetCustomer("chan-b", "5559999")
	if s.CustomerID() != "chan-a" {
		t.Fatalf("expected first customer leg kept, got %q", s.CustomerID())
	}

	s.SetAgent("chan-c", "user/1001")
	s.SetAgent("chan-d", "user/1002")
	if s.AgentID() != "chan-c" || s.AgentURI() != "user/1001" {
		t.Fatalf("expected first agent leg kept, got %q %q", s.AgentID(), s.AgentURI())
	}

	ids := s.ChannelIDs()
	if len(ids) != 2 || ids[0] != "chan-a" || ids[1] != "chan-c" {
		t.Fatalf("unexpected channel ids %v", ids)
	}
}

func TestSession_TerminalPhaseSticks(t *testing.T) {
	s := NewSession(DirectionOutbound, nil)

	s.Fail("dial customer: timeout")
	s.Fail("later failure")
	if s.Phase() != PhaseFailed {
		t.Fatalf("expected failed phase, got %q", s.Phase())
	}
	if reason := s.View().FailReason; reason != "dial customer: timeout" {
		t.Fatalf("expected first failure kept, got %q", reason)
	}

	s.SetPhase(PhaseBridged)
	if s.Phase() != PhaseFailed {
		t.Fatalf("terminal phase moved to %q", s.Phase())
	}

	s.End()
	if s.Phase() != PhaseFailed {
		t.Fatalf("End overwrote failed phase with %q", s.Phase())
	}
	if s.View().EndedAt.IsZero() {
		t.Fatalf("expected ended timestamp")
	}
}

func TestSession_EndFromRunningPhase(t *testing.T) {
	s := NewSession(DirectionInbound, nil)
	s.SetPhase(PhaseRecording)
	s.End()
	if s.Phase() != PhaseEnded {
		t.Fatalf("expected ended phase, got %q", s.Phase())
	}
}

func TestSession_DeliverDropsWhenFull(t *testing.T) {
	s := NewSession(DirectionOutbound, nil)
	n := telephony.Notification{Kind: telephony.NotificationHangup, ChannelID: "chan-a"}

	for i := 0; i < 16; i++ {
		if !s.Deliver(n) {
			t.Fatalf("delivery %d dropped early", i)
		}
	}
	if s.Deliver(n) {
		t.Fatalf("expected delivery dropped on full buffer")
	}

	<-s.Events()
	if !s.Deliver(n) {
		t.Fatalf("expected delivery after a read freed space")
	}
}

func TestSession_View(t *testing.T) {
	s := NewSession(DirectionOutbound, nil)
	s.SetCustomer("chan-a", "5551234")
	s.SetAgent("chan-c", "user/1001")
	s.SetRecordingPath("/var/recordings/x.wav")
	s.MarkAnswered(time.Unix(1700000000, 0))

	v := s.View()
	if v.ID != s.ID() || v.Conference != "bridge-"+s.ID() {
		t.Fatalf("unexpected identity in view: %+v", v)
	}
	if v.CustomerChannelID != "chan-a" || v.CustomerNumber != "5551234" {
		t.Fatalf("unexpected customer leg in view: %+v", v)
	}
	if v.AgentChannelID != "chan-c" || v.AgentURI != "user/1001" {
		t.Fatalf("unexpected agent leg in view: %+v", v)
	}
	if v.RecordingPath != "/var/recordings/x.wav" {
		t.Fatalf("unexpected recording path %q", v.RecordingPath)
	}
	if !v.AnsweredAt.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("unexpected answered time %v", v.AnsweredAt)
	}
}
