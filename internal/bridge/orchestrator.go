package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"callbridge/internal/cdr"
	"callbridge/internal/routing"
	"callbridge/internal/telephony"
)

var ErrSessionNotFound = errors.New("bridge: session not found")

const (
	// teardownGrace bounds best-effort cleanup after the run context is gone.
	teardownGrace = 5 * time.Second
	// cdrDrainWait bounds how long teardown waits for the final hangup
	// events after killing legs itself.
	cdrDrainWait = 2 * time.Second
)

// Orchestrator drives the bridge scenario: reach the customer, play the
// greeting, raise an ad-hoc conference, dial an agent into it, record, and
// tear everything down when either side leaves.
//
// Error policy: a failed step is logged and the scenario abandoned. No
// retries, no compensation beyond best-effort hangup and slot release.

type Orchestrator struct {
	Registry *Registry
	Selector *routing.Selector
	CDRs     *cdr.Service
	Log      *slog.Logger

	Greeting          string
	HoldMusic         string
	ConferenceProfile string
	RecordingDir      string
	CallerIDNumber    string
	CallerIDName      string
	OriginateTimeout  time.Duration
}

// originateVariables are the channel variables set on every leg this
// process dials. hold_music covers the stretch where a leg sits parked
// or held before the conference is up.
func (o *Orchestrator) originateVariables() map[string]string {
	if o.HoldMusic == "" {
		return nil
	}
	return map[string]string{"hold_music": o.HoldMusic}
}

// NewOutboundSession registers a session for a customer dial that is about
// to run, so callers can hand out the session id before Run starts.
func (o *Orchestrator) NewOutboundSession(ctl telephony.Controller) *Session {
	s := NewSession(DirectionOutbound, ctl)
	o.Registry.Add(s)
	return s
}

// Run executes the outbound scenario for s, blocking until the session
// reaches a terminal phase. The session's controller must have an event
// router draining its notifications (Observe).
func (o *Orchestrator) Run(ctx context.Context, s *Session, customerURI string) error {
	ctl := s.Controller()
	log := o.Log.With("session_id", s.ID(), "direction", string(s.Direction()))
	pending := map[string]cdr.Leg{}

	log.Info("scenario started", "customer_uri", customerURI)

	// Dial the customer and park the leg. Blocks until answer or failure.
	// The channel UUID is generated here so events can be routed to the
	// session while the call is still ringing.
	customerID := uuid.NewString()
	o.Registry.Bind(customerID, s)
	pending[customerID] = cdr.LegCustomer

	_, err := ctl.Originate(ctx, telephony.OriginateSpec{
		DestinationURI: customerURI,
		ChannelID:      customerID,
		CallerIDNumber: o.CallerIDNumber,
		CallerIDName:   o.CallerIDName,
		Timeout:        o.OriginateTimeout,
		Variables:      o.originateVariables(),
	})
	if err != nil {
		ferr := o.abandon(s, log, "dial customer", err)
		o.teardown(s, log, pending, false)
		return ferr
	}
	s.SetCustomer(customerID, customerURI)
	s.MarkAnswered(time.Now())
	log.Info("customer answered", "channel_id", customerID)

	return o.runBridge(ctx, s, log, pending)
}

// RunInbound serves a customer call the switch delivered to the listener:
// answer it, then run the same scenario from the greeting on.
func (o *Orchestrator) RunInbound(ctx context.Context, ctl telephony.Controller, in telephony.InboundCall) error {
	s := NewSession(DirectionInbound, ctl)
	o.Registry.Add(s)
	o.Registry.Bind(in.ChannelID, s)
	s.SetCustomer(in.ChannelID, in.CallerNumber)

	log := o.Log.With("session_id", s.ID(), "direction", string(s.Direction()))
	pending := map[string]cdr.Leg{in.ChannelID: cdr.LegCustomer}

	log.Info("scenario started", "customer_number", in.CallerNumber, "destination", in.Destination)

	if err := ctl.Answer(ctx, in.ChannelID); err != nil {
		ferr := o.abandon(s, log, "answer customer", err)
		o.teardown(s, log, pending, false)
		return ferr
	}
	s.MarkAnswered(time.Now())

	return o.runBridge(ctx, s, log, pending)
}

// runBridge covers the steps shared by both directions, starting with an
// answered customer leg.
func (o *Orchestrator) runBridge(ctx context.Context, s *Session, log *slog.Logger, pending map[string]cdr.Leg) error {
	ctl := s.Controller()
	customerID := s.CustomerID()
	conference := s.Conference()
	confArg := conference
	if o.ConferenceProfile != "" {
		confArg = conference + "@" + o.ConferenceProfile
	}

	// Greet the customer before any agent is disturbed.
	if o.Greeting != "" {
		s.SetPhase(PhaseGreeting)
		err := ctl.Execute(ctx, telephony.ExecuteSpec{
			ChannelID: customerID,
			App:       "playback",
			Args:      o.Greeting,
			Wait:      true,
		})
		if err != nil {
			ferr := o.abandon(s, log, "play greeting", err)
			o.teardown(s, log, pending, false)
			return ferr
		}
	}

	// Move the customer into the session conference. The customer waits
	// there alone while the agent rings.
	s.SetPhase(PhaseConferencing)
	err := ctl.Execute(ctx, telephony.ExecuteSpec{ChannelID: customerID, App: "conference", Args: confArg})
	if err != nil {
		ferr := o.abandon(s, log, "join customer to conference", err)
		o.teardown(s, log, pending, false)
		return ferr
	}

	// Pick an agent. The selection holds one line slot until teardown.
	s.SetPhase(PhaseAgentDialing)
	sel, err := o.Selector.Pick(ctx)
	if err != nil {
		ferr := o.abandon(s, log, "select agent", err)
		o.teardown(s, log, pending, false)
		return ferr
	}
	log.Info("agent selected", "agent_uri", sel.Agent.URI, "reason", string(sel.Reason))

	agentID := uuid.NewString()
	o.Registry.Bind(agentID, s)
	pending[agentID] = cdr.LegAgent

	_, err = ctl.Originate(ctx, telephony.OriginateSpec{
		DestinationURI: sel.Agent.URI,
		ChannelID:      agentID,
		CallerIDNumber: o.CallerIDNumber,
		CallerIDName:   o.CallerIDName,
		Timeout:        o.OriginateTimeout,
		Variables:      o.originateVariables(),
	})
	if err != nil {
		o.releaseAgent(sel.Agent, log)
		ferr := o.abandon(s, log, "dial agent", err)
		o.teardown(s, log, pending, false)
		return ferr
	}
	s.SetAgent(agentID, sel.Agent.URI)
	log.Info("agent answered", "channel_id", agentID, "agent_uri", sel.Agent.URI)

	// Join the agent. The two legs now hear each other.
	err = ctl.Execute(ctx, telephony.ExecuteSpec{ChannelID: agentID, App: "conference", Args: confArg})
	if err != nil {
		ferr := o.abandon(s, log, "join agent to conference", err)
		o.teardown(s, log, pending, false)
		return ferr
	}
	s.SetPhase(PhaseBridged)

	// Record the conference to one file per session.
	path := filepath.Join(o.RecordingDir, s.ID()+".wav")
	if err := ctl.StartConferenceRecording(ctx, conference, path); err != nil {
		ferr := o.abandon(s, log, "start recording", err)
		o.teardown(s, log, pending, false)
		return ferr
	}
	s.SetRecordingPath(path)
	s.SetPhase(PhaseRecording)
	log.Info("recording started", "path", path)

	// Hold until either side hangs up, the run context ends, or the
	// control connection drops.
	switchGone := o.observe(ctx, s, log, pending)
	o.teardown(s, log, pending, switchGone)
	return nil
}

// observe waits for the first hangup on either leg. Reports whether the
// control connection is gone, in which case no switch command can follow.
func (o *Orchestrator) observe(ctx context.Context, s *Session, log *slog.Logger, pending map[string]cdr.Leg) (switchGone bool) {
	ctl := s.Controller()
	for {
		select {
		case n := <-s.Events():
			if n.Kind != telephony.NotificationHangup {
				continue
			}
			leg, ok := pending[n.ChannelID]
			if !ok {
				continue
			}
			delete(pending, n.ChannelID)
			o.ingestRecord(s, log, n, leg)
			log.Info("leg hung up", "channel_id", n.ChannelID, "leg", string(leg), "cause", n.Cause)
			return false
		case <-ctx.Done():
			log.Info("run context canceled, tearing down")
			return false
		case <-ctl.Done():
			log.Warn("control connection lost during bridge")
			s.Fail("control connection lost")
			return true
		}
	}
}

// teardown is best effort: stop the recording, kill whatever legs still
// exist, collect their final events, release the agent line, deregister.
// It runs on a fresh context so a canceled run still cleans up.
func (o *Orchestrator) teardown(s *Session, log *slog.Logger, pending map[string]cdr.Leg, switchGone bool) {
	ctl := s.Controller()
	tctx, cancel := context.WithTimeout(context.Background(), teardownGrace)
	defer cancel()

	if !switchGone {
		if s.RecordingPath() != "" {
			if err := ctl.StopConferenceRecording(tctx, s.Conference()); err != nil {
				log.Error("stop recording", "error", err)
			}
		}
		for _, ch := range s.ChannelIDs() {
			if !ctl.ChannelExists(tctx, ch) {
				continue
			}
			if err := ctl.Hangup(tctx, ch, telephony.HangupCauseNormal); err != nil {
				log.Error("hang up leg", "channel_id", ch, "error", err)
			}
		}
		o.drainRecords(s, log, pending)
	}

	if uri := s.AgentURI(); uri != "" {
		o.releaseAgent(routing.Agent{URI: uri}, log)
	}

	s.End()
	o.Registry.Remove(s.ID())
	log.Info("scenario finished", "phase", string(s.Phase()))
}

// drainRecords waits briefly for the remaining hangup events so their
// call records are not lost when we killed the legs ourselves.
func (o *Orchestrator) drainRecords(s *Session, log *slog.Logger, pending map[string]cdr.Leg) {
	if len(pending) == 0 {
		return
	}
	timer := time.NewTimer(cdrDrainWait)
	defer timer.Stop()
	for len(pending) > 0 {
		select {
		case n := <-s.Events():
			if n.Kind != telephony.NotificationHangup {
				continue
			}
			leg, ok := pending[n.ChannelID]
			if !ok {
				continue
			}
			delete(pending, n.ChannelID)
			o.ingestRecord(s, log, n, leg)
		case <-timer.C:
			for ch := range pending {
				log.Warn("no final event for leg", "channel_id", ch)
			}
			return
		}
	}
}

func (o *Orchestrator) ingestRecord(s *Session, log *slog.Logger, n telephony.Notification, leg cdr.Leg) {
	if o.CDRs == nil {
		return
	}
	rec, ok := cdr.FromNotification(n, s.ID(), leg)
	if !ok {
		return
	}
	rec.RecordingPath = s.RecordingPath()

	ictx, cancel := context.WithTimeout(context.Background(), teardownGrace)
	defer cancel()
	if err := o.CDRs.Ingest(ictx, rec); err != nil {
		log.Error("store call record", "channel_id", rec.ChannelID, "error", err)
	}
}

func (o *Orchestrator) releaseAgent(a routing.Agent, log *slog.Logger) {
	rctx, cancel := context.WithTimeout(context.Background(), teardownGrace)
	defer cancel()
	if err := o.Selector.Release(rctx, a); err != nil {
		log.Error("release agent line", "agent_uri", a.URI, "error", err)
	}
}

// abandon logs a failed step and marks the session. Dependent steps are
// skipped; the caller still runs teardown.
func (o *Orchestrator) abandon(s *Session, log *slog.Logger, step string, err error) error {
	log.Error("scenario step failed", "step", step, "error", err)
	s.Fail(fmt.Sprintf("%s: %v", step, err))
	return fmt.Errorf("%s: %w", step, err)
}

// Observe routes switch notifications to their sessions until the context
// or the control connection ends. Run exactly one per controller.
func (o *Orchestrator) Observe(ctx context.Context, ctl telephony.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ctl.Done():
			return
		case n := <-ctl.Notifications():
			s, ok := o.Registry.ByChannel(n.ChannelID)
			if !ok {
				continue
			}
			if !s.Deliver(n) {
				o.Log.Debug("session event dropped", "session_id", s.ID(), "channel_id", n.ChannelID)
			}
		}
	}
}

// HangupSession kills the session's legs. The running scenario observes
// the hangups and finishes its own teardown.
func (o *Orchestrator) HangupSession(ctx context.Context, sessionID string) error {
	s, ok := o.Registry.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	ctl := s.Controller()
	for _, ch := range s.ChannelIDs() {
		if err := ctl.Hangup(ctx, ch, telephony.HangupCauseNormal); err != nil {
			o.Log.Error("hang up leg", "session_id", sessionID, "channel_id", ch, "error", err)
		}
	}
	return nil
}
