// Package throttle limits failed login attempts per username with a fixed
// window counter in Redis.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/redis/go-redis/v9"
)

// LoginLimiter is consulted by the session issuer around credential checks.
type LoginLimiter interface {
	// Check returns common.ErrTooManyAttempts once the failure budget for
	// userName is spent.
	Check(ctx context.Context, userName string) error
	Fail(ctx context.Context, userName string) error
	Reset(ctx context.Context, userName string) error
}

type Config struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// RedisLimiter counts failures under "tk:login:<username>". The first failure
// in a window sets the key's TTL to the cooldown.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{redis: client, config: cfg}
}

func loginKey(userName string) string {
	return "tk:login:" + userName
}

func (l *RedisLimiter) Check(ctx context.Context, userName string) error {
	count, err := l.redis.Get(ctx, loginKey(userName)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return common.ErrTooManyAttempts
	}
	return nil
}

func (l *RedisLimiter) Fail(ctx context.Context, userName string) error {
	key := loginKey(userName)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
		}
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, userName string) error {
	if err := l.redis.Del(ctx, loginKey(userName)).Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return nil
}

// Nop never throttles. Used when no Redis address is configured.
type Nop struct{}

func (Nop) Check(context.Context, string) error { return nil }
func (Nop) Fail(context.Context, string) error  { return nil }
func (Nop) Reset(context.Context, string) error { return nil }
