package bridge

import (
	"context"
	"sort"
	"sync"

	"callbridge/internal/telephony"
)

// Registry tracks active sessions and the channel-to-session binding the
// event router needs. Everything in here is best-effort observability
// state; the switch remains the source of truth for channel liveness.

type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	byChannel map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		byChannel: make(map[string]*Session),
	}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Bind routes events for a channel UUID to a session. Bind before the
// channel exists on the switch, or early events are lost.
func (r *Registry) Bind(channelID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byChannel[channelID] = s
}

func (r *Registry) ByChannel(channelID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byChannel[channelID]
	return s, ok
}

// Remove drops the session and its channel bindings.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	for ch, bound := range r.byChannel {
		if bound == s {
			delete(r.byChannel, ch)
		}
	}
}

// List returns the active sessions ordered by start time.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		vi, vj := out[i].View(), out[j].View()
		if vi.StartedAt.Equal(vj.StartedAt) {
			return vi.ID < vj.ID
		}
		return vi.StartedAt.Before(vj.StartedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// HangupAll is the shutdown path: best-effort hangup of every channel of
// every active session over that session's own control connection.
// Returns the number of hangups attempted.
func (r *Registry) HangupAll(ctx context.Context) int {
	var attempted int
	for _, s := range r.List() {
		ctl := s.Controller()
		if ctl == nil {
			continue
		}
		for _, ch := range s.ChannelIDs() {
			_ = ctl.Hangup(ctx, ch, telephony.HangupCauseNormal)
			attempted++
		}
	}
	return attempted
}
