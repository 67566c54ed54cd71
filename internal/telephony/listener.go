package telephony

import (
	"context"
	"log/slog"

	"github.com/percipia/eslgo"
)

// InboundCall describes a channel the switch parked on our listener.
type InboundCall struct {
	ChannelID    string
	CallerNumber string
	CallerName   string
	Destination  string
}

// InboundHandler serves one switch-initiated connection. The controller is
// scoped to that connection and is closed when the handler returns.
type InboundHandler func(ctx context.Context, ctl Controller, in InboundCall)

// ListenAndServe accepts switch-initiated (outbound socket mode) connections
// on addr and runs handler for each. Blocks until the listener fails.
func ListenAndServe(addr string, log *slog.Logger, handler InboundHandler) error {
	return eslgo.ListenAndServe(addr, func(ctx context.Context, conn *eslgo.Conn, connectResponse *eslgo.RawResponse) {
		in := inboundCallFromHeaders(connectResponse)
		l := log.With("channel_id", in.ChannelID)

		ctl, err := adopt(ctx, conn, l)
		if err != nil {
			l.Error("attach to inbound connection", "error", err)
			return
		}
		defer ctl.Close()

		l.Info("inbound call accepted", "caller", in.CallerNumber, "destination", in.Destination)
		handler(ctx, ctl, in)
	})
}

// inboundCallFromHeaders pulls the channel data out of the connect response.
// The switch labels these headers inconsistently across versions, hence the
// fallback names.
func inboundCallFromHeaders(src headerSource) InboundCall {
	return InboundCall{
		ChannelID:    firstHeader(src, "Channel-Unique-ID", "Unique-ID", "Caller-Unique-ID"),
		CallerNumber: firstHeader(src, "Channel-Caller-ID-Number", "Caller-Caller-ID-Number"),
		CallerName:   firstHeader(src, "Channel-Caller-ID-Name", "Caller-Caller-ID-Name"),
		Destination:  firstHeader(src, "Channel-Destination-Number", "Caller-Destination-Number"),
	}
}

func firstHeader(src headerSource, names ...string) string {
	for _, name := range names {
		if v := src.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}
