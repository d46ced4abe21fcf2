// Package ratelimit throttles per-user actions with a Redis fixed window
// (INCR, then EXPIRE on the first hit).
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const messageKeyPrefix = "rl:msg:"

type windowRule struct {
	Key    string
	Limit  int
	Window time.Duration
}

type Limiter struct {
	client *redis.Client
	rule   windowRule
	logger *slog.Logger
}

// NewMessageLimiter allows limit message sends per user per window.
func NewMessageLimiter(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		client: client,
		rule:   windowRule{Key: messageKeyPrefix, Limit: limit, Window: window},
		logger: logger,
	}
}

// AllowMessage counts one send for userID. Redis failures let the send
// through and are returned alongside true.
func (l *Limiter) AllowMessage(ctx context.Context, userID uuid.UUID) (bool, error) {
	return l.allow(ctx, userID.String())
}

func (l *Limiter) allow(ctx context.Context, identifier string) (bool, error) {
	if l.rule.Limit <= 0 {
		return true, nil
	}
	key := l.rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limit INCR failed, failing open", "key", key, "error", err)
		return true, fmt.Errorf("incr %s: %w", key, err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.rule.Window).Err(); err != nil {
			l.logger.Warn("rate limit EXPIRE failed, failing open", "key", key, "error", err)
			// a counter without TTL would block the identifier forever
			l.client.Del(ctx, key)
			return true, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	return int(count) <= l.rule.Limit, nil
}
