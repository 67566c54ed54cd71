package routing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"callbridge/pkg/utils"
)

// LineGuard limits how many concurrent bridge legs an agent carries.
//
// Acquire and Release must pair up: every successful Acquire gets exactly
// one Release, including after failed dials.

type LineGuard interface {
	Acquire(ctx context.Context, agentURI string) (bool, error)
	Release(ctx context.Context, agentURI string) error
}

// NoopGuard admits every call. Used when Redis is not configured.
type NoopGuard struct{}

func (NoopGuard) Acquire(ctx context.Context, agentURI string) (bool, error) { return true, nil }

func (NoopGuard) Release(ctx context.Context, agentURI string) error { return nil }

// RedisGuard enforces per-agent line limits across bridge instances.
//
// The slot TTL bounds leakage when an instance dies between Acquire and
// Release; a busy agent frees up again after at most TTL.
type RedisGuard struct {
	RDB   *redis.Client
	Limit int
	TTL   time.Duration
}

func (g RedisGuard) Acquire(ctx context.Context, agentURI string) (bool, error) {
	return utils.AcquireLineSlot(ctx, g.RDB, lineKey(agentURI), g.Limit, g.TTL)
}

func (g RedisGuard) Release(ctx context.Context, agentURI string) error {
	return utils.ReleaseLineSlot(ctx, g.RDB, lineKey(agentURI))
}

func lineKey(agentURI string) string { return "callbridge:lines:" + agentURI }
