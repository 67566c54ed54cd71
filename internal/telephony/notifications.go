package telephony

import (
	"strconv"
	"time"
)

type NotificationKind string

const (
	NotificationAnswered        NotificationKind = "answered"
	NotificationHangup          NotificationKind = "hangup"
	NotificationExecuteComplete NotificationKind = "execute_complete"
)

// Notification is one channel state change observed on the event socket.
// Billing fields are only populated on hangup notifications.
type Notification struct {
	Kind      NotificationKind
	ChannelID string

	CallerNumber string
	Destination  string
	Direction    string

	// Hangup fields.
	Cause           string
	StartedAt       time.Time
	AnsweredAt      time.Time
	EndedAt         time.Time
	DurationSeconds int
	BillSeconds     int

	// Execute fields.
	App         string
	AppResponse string
}

// headerSource is the slice of the event API the mapping needs.
// *eslgo.Event satisfies it.
type headerSource interface {
	GetHeader(name string) string
}

// notificationFromEvent maps a raw switch event onto a Notification.
// Events the bridge does not observe return ok=false.
func notificationFromEvent(ev headerSource) (Notification, bool) {
	channelID := ev.GetHeader("Unique-ID")
	if channelID == "" {
		return Notification{}, false
	}

	n := Notification{
		ChannelID:    channelID,
		CallerNumber: ev.GetHeader("Caller-Caller-ID-Number"),
		Destination:  ev.GetHeader("Caller-Destination-Number"),
		Direction:    ev.GetHeader("Call-Direction"),
	}

	switch ev.GetHeader("Event-Name") {
	case "CHANNEL_ANSWER":
		n.Kind = NotificationAnswered
		n.AnsweredAt = epochMicroTime(ev.GetHeader("Caller-Channel-Answered-Time"))

	case "CHANNEL_HANGUP_COMPLETE":
		n.Kind = NotificationHangup
		n.Cause = ev.GetHeader("Hangup-Cause")
		n.StartedAt = epochMicroTime(ev.GetHeader("Caller-Channel-Created-Time"))
		n.AnsweredAt = epochMicroTime(ev.GetHeader("Caller-Channel-Answered-Time"))
		n.EndedAt = epochMicroTime(ev.GetHeader("Caller-Channel-Hangup-Time"))
		n.DurationSeconds = atoiSafe(ev.GetHeader("variable_duration"))
		n.BillSeconds = atoiSafe(ev.GetHeader("variable_billsec"))

	case "CHANNEL_EXECUTE_COMPLETE":
		n.Kind = NotificationExecuteComplete
		n.App = ev.GetHeader("Application")
		n.AppResponse = ev.GetHeader("Application-Response")

	default:
		return Notification{}, false
	}

	return n, true
}

// epochMicroTime parses the switch's microsecond epoch headers.
// Zero or unparsable values yield the zero time.
func epochMicroTime(v string) time.Time {
	us, err := strconv.ParseInt(v, 10, 64)
	if err != nil || us <= 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func atoiSafe(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
