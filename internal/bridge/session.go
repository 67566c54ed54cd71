package bridge

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"callbridge/internal/telephony"
)

// Phase tracks how far a session has progressed through the scenario.
type Phase string

const (
	PhaseDialing      Phase = "dialing"
	PhaseGreeting     Phase = "greeting"
	PhaseConferencing Phase = "conferencing"
	PhaseAgentDialing Phase = "agent_dialing"
	PhaseBridged      Phase = "bridged"
	PhaseRecording    Phase = "recording"
	PhaseEnded        Phase = "ended"
	PhaseFailed       Phase = "failed"
)

func (p Phase) Terminal() bool { return p == PhaseEnded || p == PhaseFailed }

// Direction of the customer leg.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Session carries every identifier of one customer-agent bridge: the
// conference name, both channel UUIDs, and the lifecycle phase. All state
// lives here rather than in package variables so concurrent sessions
// cannot see each other's calls.
//
// Invariants:
// - ID and Conference are set at creation and never change.
// - CustomerID and AgentID are each set at most once.
// - A terminal phase (ended, failed) is never left again.

type Session struct {
	mu sync.Mutex

	id         string
	conference string
	direction  Direction
	ctl        telephony.Controller

	customerID     string
	customerNumber string
	agentID        string
	agentURI       string

	recordingPath string

	phase      Phase
	failReason string

	startedAt  time.Time
	answeredAt time.Time
	endedAt    time.Time

	events chan telephony.Notification
}

func NewSession(direction Direction, ctl telephony.Controller) *Session {
	id := uuid.NewString()
	return &Session{
		id:         id,
		conference: "bridge-" + id,
		direction:  direction,
		ctl:        ctl,
		phase:      PhaseDialing,
		startedAt:  time.Now().UTC(),
		events:     make(chan telephony.Notification, 16),
	}
}

func (s *Session) ID() string                       { return s.id }
func (s *Session) Conference() string               { return s.conference }
func (s *Session) Direction() Direction             { return s.direction }
func (s *Session) Controller() telephony.Controller { return s.ctl }

func (s *Session) CustomerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerID
}

func (s *Session) AgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentID
}

func (s *Session) AgentURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentURI
}

func (s *Session) RecordingPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordingPath
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetCustomer records the customer leg. Only the first call takes effect.
func (s *Session) SetCustomer(channelID, number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customerID != "" {
		return
	}
	s.customerID = channelID
	s.customerNumber = number
}

// SetAgent records the agent leg. Only the first call takes effect.
func (s *Session) SetAgent(channelID, agentURI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agentID != "" {
		return
	}
	s.agentID = channelID
	s.agentURI = agentURI
}

func (s *Session) SetRecordingPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordingPath = path
}

// SetPhase advances the lifecycle. Terminal phases never change again.
func (s *Session) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.phase = p
}

func (s *Session) MarkAnswered(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answeredAt.IsZero() {
		s.answeredAt = t.UTC()
	}
}

// Fail marks the session failed with a reason. First failure wins.
func (s *Session) Fail(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.phase = PhaseFailed
	s.failReason = reason
	s.endedAt = time.Now().UTC()
}

// End marks the session finished. A failed session stays failed; only the
// end time is recorded.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.Terminal() {
		s.phase = PhaseEnded
	}
	if s.endedAt.IsZero() {
		s.endedAt = time.Now().UTC()
	}
}

// ChannelIDs returns the channel UUIDs the session currently owns.
func (s *Session) ChannelIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	if s.customerID != "" {
		ids = append(ids, s.customerID)
	}
	if s.agentID != "" {
		ids = append(ids, s.agentID)
	}
	return ids
}

// Deliver hands a switch notification to the session's observer. Never
// blocks; reports whether the event was accepted.
func (s *Session) Deliver(n telephony.Notification) bool {
	select {
	case s.events <- n:
		return true
	default:
		return false
	}
}

// Events is consumed by the orchestration while observing the bridge.
func (s *Session) Events() <-chan telephony.Notification { return s.events }

// View is the read-only JSON projection served by the operator API.
type View struct {
	ID         string    `json:"id"`
	Conference string    `json:"conference"`
	Direction  Direction `json:"direction"`
	Phase      Phase     `json:"phase"`
	FailReason string    `json:"fail_reason,omitempty"`

	CustomerChannelID string `json:"customer_channel_id,omitempty"`
	CustomerNumber    string `json:"customer_number,omitempty"`
	AgentChannelID    string `json:"agent_channel_id,omitempty"`
	AgentURI          string `json:"agent_uri,omitempty"`

	RecordingPath string `json:"recording_path,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	AnsweredAt time.Time `json:"answered_at"`
	EndedAt    time.Time `json:"ended_at"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:                s.id,
		Conference:        s.conference,
		Direction:         s.direction,
		Phase:             s.phase,
		FailReason:        s.failReason,
		CustomerChannelID: s.customerID,
		CustomerNumber:    s.customerNumber,
		AgentChannelID:    s.agentID,
		AgentURI:          s.agentURI,
		RecordingPath:     s.recordingPath,
		StartedAt:         s.startedAt,
		AnsweredAt:        s.answeredAt,
		EndedAt:           s.endedAt,
	}
}
