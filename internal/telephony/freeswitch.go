package telephony

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/percipia/eslgo"
	"github.com/percipia/eslgo/command"
	"github.com/percipia/eslgo/command/call"
)

// watchedEvents is the subscription every control connection installs.
var watchedEvents = []string{
	"CHANNEL_ANSWER",
	"CHANNEL_HANGUP_COMPLETE",
	"CHANNEL_EXECUTE_COMPLETE",
}

// ESLController drives FreeSWITCH through the eslgo client. One instance
// wraps one event-socket connection: either a dialed control connection
// (Connect) or a switch-initiated one (ListenAndServe).
type ESLController struct {
	conn *eslgo.Conn
	log  *slog.Logger

	notifications chan Notification
	done          chan struct{}
	listenerID    string
	closeOnce     sync.Once

	mu          sync.Mutex
	execWaiters map[string]chan string
}

// Connect dials the switch's control port and authenticates with the
// shared secret (inbound socket mode).
func Connect(ctx context.Context, addr, password string, log *slog.Logger) (*ESLController, error) {
	conn, err := eslgo.Dial(addr, password, func() {
		log.Warn("switch control connection lost", "addr", addr)
	})
	if err != nil {
		return nil, fmt.Errorf("telephony: dial switch %s: %w", addr, err)
	}

	c, err := adopt(ctx, conn, log)
	if err != nil {
		conn.ExitAndClose()
		return nil, err
	}
	log.Info("switch control connection established", "addr", addr)
	return c, nil
}

// adopt wraps an established connection: installs the event subscription
// and starts routing raw events into the notification stream.
func adopt(ctx context.Context, conn *eslgo.Conn, log *slog.Logger) (*ESLController, error) {
	c := &ESLController{
		conn:          conn,
		log:           log,
		notifications: make(chan Notification, 64),
		done:          make(chan struct{}),
		execWaiters:   make(map[string]chan string),
	}

	c.listenerID = conn.RegisterEventListener(eslgo.EventListenAll, c.dispatch)

	resp, err := conn.SendCommand(ctx, command.Event{Format: "plain", Listen: watchedEvents})
	if err != nil {
		return nil, fmt.Errorf("telephony: subscribe events: %w", err)
	}
	if !resp.IsOk() {
		return nil, fmt.Errorf("telephony: subscribe events: %s", replyText(resp))
	}
	return c, nil
}

func (c *ESLController) Notifications() <-chan Notification { return c.notifications }

func (c *ESLController) Done() <-chan struct{} { return c.done }

// Close tears the control connection down. Safe to call more than once.
func (c *ESLController) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.RemoveEventListener(eslgo.EventListenAll, c.listenerID)
		c.conn.ExitAndClose()
	})
}

func (c *ESLController) Originate(ctx context.Context, spec OriginateSpec) (string, error) {
	if spec.DestinationURI == "" {
		return "", ErrDestRequired
	}
	channelID := spec.ChannelID
	if channelID == "" {
		channelID = uuid.NewString()
	}

	aLeg := eslgo.Leg{CallURL: spec.DestinationURI}
	bLeg := eslgo.Leg{CallURL: originateBLeg(spec)}

	resp, err := c.conn.OriginateCall(ctx, false, aLeg, bLeg, originationVariables(spec, channelID))
	if err != nil {
		return "", fmt.Errorf("telephony: originate %s: %w", spec.DestinationURI, err)
	}
	if !resp.IsOk() {
		return "", fmt.Errorf("telephony: originate %s: %s", spec.DestinationURI, replyText(resp))
	}
	return channelID, nil
}

func (c *ESLController) Answer(ctx context.Context, channelID string) error {
	return c.Execute(ctx, ExecuteSpec{ChannelID: channelID, App: "answer", Wait: true})
}

func (c *ESLController) Execute(ctx context.Context, spec ExecuteSpec) error {
	if spec.ChannelID == "" {
		return ErrChannelRequired
	}
	if spec.App == "" {
		return fmt.Errorf("telephony: application name required")
	}

	var waiter chan string
	if spec.Wait {
		waiter = c.addExecWaiter(spec.ChannelID, spec.App)
		defer c.removeExecWaiter(spec.ChannelID, spec.App)
	}

	resp, err := c.conn.SendCommand(ctx, &call.Execute{
		UUID:    spec.ChannelID,
		AppName: spec.App,
		AppArgs: spec.Args,
		Sync:    true,
	})
	if err != nil {
		return fmt.Errorf("telephony: execute %s on %s: %w", spec.App, spec.ChannelID, err)
	}
	if !resp.IsOk() {
		return fmt.Errorf("telephony: execute %s on %s: %s", spec.App, spec.ChannelID, replyText(resp))
	}
	if !spec.Wait {
		return nil
	}

	select {
	case appResp := <-waiter:
		c.log.Debug("application finished", "app", spec.App, "channel_id", spec.ChannelID, "response", appResp)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *ESLController) Hangup(ctx context.Context, channelID, cause string) error {
	if channelID == "" {
		return ErrChannelRequired
	}
	if cause == "" {
		cause = HangupCauseNormal
	}
	_, err := c.api(ctx, "uuid_kill", channelID+" "+cause)
	return err
}

func (c *ESLController) ChannelExists(ctx context.Context, channelID string) bool {
	if channelID == "" {
		return false
	}
	body, err := c.api(ctx, "uuid_exists", channelID)
	if err != nil {
		return false
	}
	return body == "true"
}

func (c *ESLController) StartConferenceRecording(ctx context.Context, conference, path string) error {
	if conference == "" || path == "" {
		return fmt.Errorf("telephony: conference and path required")
	}
	_, err := c.api(ctx, "conference", fmt.Sprintf("%s recording start %s", conference, path))
	return err
}

func (c *ESLController) StopConferenceRecording(ctx context.Context, conference string) error {
	if conference == "" {
		return fmt.Errorf("telephony: conference required")
	}
	_, err := c.api(ctx, "conference", fmt.Sprintf("%s recording stop all", conference))
	return err
}

// api runs a foreground api command and returns the response body.
// A body starting with -ERR is surfaced as an error.
func (c *ESLController) api(ctx context.Context, cmd, args string) (string, error) {
	resp, err := c.conn.SendCommand(ctx, command.API{Command: cmd, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("telephony: %s: %w", cmd, err)
	}
	body := strings.TrimSpace(string(resp.Body))
	if strings.HasPrefix(body, "-ERR") {
		return "", fmt.Errorf("telephony: %s: %s", cmd, strings.TrimSpace(strings.TrimPrefix(body, "-ERR")))
	}
	return body, nil
}

// dispatch runs on the eslgo event goroutine. It must not block.
func (c *ESLController) dispatch(ev *eslgo.Event) {
	n, ok := notificationFromEvent(ev)
	if !ok {
		return
	}
	if n.Kind == NotificationExecuteComplete {
		c.resolveExecWaiter(n)
	}

	select {
	case c.notifications <- n:
	case <-c.done:
	default:
		c.log.Debug("notification dropped", "kind", string(n.Kind), "channel_id", n.ChannelID)
	}
}

func (c *ESLController) addExecWaiter(channelID, app string) chan string {
	ch := make(chan string, 1)
	c.mu.Lock()
	c.execWaiters[execKey(channelID, app)] = ch
	c.mu.Unlock()
	return ch
}

func (c *ESLController) removeExecWaiter(channelID, app string) {
	c.mu.Lock()
	delete(c.execWaiters, execKey(channelID, app))
	c.mu.Unlock()
}

func (c *ESLController) resolveExecWaiter(n Notification) {
	c.mu.Lock()
	ch, ok := c.execWaiters[execKey(n.ChannelID, n.App)]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- n.AppResponse:
	default:
	}
}

func execKey(channelID, app string) string { return channelID + "|" + app }

// originationVariables assembles the channel-variable block for one dial.
// Caller-supplied extras never override the reserved variables.
func originationVariables(spec OriginateSpec, channelID string) map[string]string {
	vars := make(map[string]string, len(spec.Variables)+5)
	for k, v := range spec.Variables {
		vars[k] = v
	}

	vars["origination_uuid"] = channelID
	vars["ignore_early_media"] = "true"
	if spec.CallerIDNumber != "" {
		vars["origination_caller_id_number"] = spec.CallerIDNumber
	}
	if spec.CallerIDName != "" {
		vars["origination_caller_id_name"] = spec.CallerIDName
	}
	if spec.Timeout > 0 {
		vars["originate_timeout"] = strconv.Itoa(int(spec.Timeout.Seconds()))
	}
	return vars
}

// originateBLeg renders the application the new leg runs once answered.
// Without an explicit application the leg is parked under socket control.
func originateBLeg(spec OriginateSpec) string {
	if spec.App == "" {
		return "&park()"
	}
	return fmt.Sprintf("&%s(%s)", spec.App, spec.AppArgs)
}

func replyText(resp *eslgo.RawResponse) string {
	if body := strings.TrimSpace(string(resp.Body)); body != "" {
		return body
	}
	return strings.TrimSpace(resp.GetHeader("Reply-Text"))
}
