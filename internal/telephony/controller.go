package telephony

import (
	"context"
	"errors"
	"time"
)

// Controller is the narrow call-control contract the bridge orchestration
// depends on.
//
// Rules:
// - No event-socket library calls outside this package.
// - Channel identifiers are switch UUIDs; callers treat them as opaque.
// - Every blocking operation takes a context and honors its deadline.
// - State changes are observed through Notifications, never through
//   callbacks reaching into orchestration code.
type Controller interface {
	// Originate places an outbound call and blocks until it is answered
	// or fails. It returns the channel UUID of the new leg.
	Originate(ctx context.Context, spec OriginateSpec) (string, error)

	// Answer picks up a switch-delivered inbound call.
	Answer(ctx context.Context, channelID string) error

	// Execute runs a dialplan application on an existing channel,
	// optionally blocking until the application completes.
	Execute(ctx context.Context, spec ExecuteSpec) error

	// Hangup kills a channel with the given cause. Best effort: the
	// channel may already be gone.
	Hangup(ctx context.Context, channelID, cause string) error

	// ChannelExists probes whether the switch still knows the channel.
	ChannelExists(ctx context.Context, channelID string) bool

	StartConferenceRecording(ctx context.Context, conference, path string) error
	StopConferenceRecording(ctx context.Context, conference string) error

	// Notifications delivers channel state changes (answered, hangup,
	// application completion) for observation. The stream is best
	// effort; slow consumers lose notifications rather than stalling
	// the socket.
	Notifications() <-chan Notification

	// Done is closed when the underlying control connection goes away.
	Done() <-chan struct{}

	Close()
}

// OriginateSpec describes one outbound dial attempt.
type OriginateSpec struct {
	// DestinationURI is the switch dial target, e.g. "user/1001" or
	// "sofia/gateway/pstn/15551230000".
	DestinationURI string

	// ChannelID is the UUID the new channel must carry. Generated when
	// empty so the caller always knows the leg before the switch does.
	ChannelID string

	CallerIDNumber string
	CallerIDName   string

	// Timeout bounds the dial attempt on the switch side.
	Timeout time.Duration

	// App is the application the leg runs once answered. Empty parks
	// the leg so it stays under socket control.
	App     string
	AppArgs string

	// Variables are extra channel variables. Reserved variables set by
	// the controller (origination_uuid and friends) win on conflict.
	Variables map[string]string
}

// ExecuteSpec describes one application execution on a live channel.
type ExecuteSpec struct {
	ChannelID string
	App       string
	Args      string

	// Wait blocks until the switch reports the application finished.
	Wait bool
}

// HangupCauseNormal is the cause used for operator-initiated teardown.
const HangupCauseNormal = "NORMAL_CLEARING"

var (
	ErrClosed          = errors.New("telephony: controller closed")
	ErrChannelRequired = errors.New("telephony: channel id required")
	ErrDestRequired    = errors.New("telephony: destination uri required")
)
