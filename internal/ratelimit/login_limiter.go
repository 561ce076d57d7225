// Package ratelimit throttles repeated failed logins per identifier using a
// fixed window counter in Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLimited            = errors.New("too many failed login attempts")
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)

type LoginLimiter struct {
	redis       *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		redis:       client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// NewClient builds a Redis client from a redis:// URL.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return client, nil
}

// Check returns ErrLimited once the identifier has used up its failures for
// the current window.
func (l *LoginLimiter) Check(ctx context.Context, identifier string) error {
	count, err := l.redis.Get(ctx, failureKey(identifier)).Int()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrLimited
	}
	return nil
}

// RecordFailure counts one failed attempt. The window starts at the first
// failure.
func (l *LoginLimiter) RecordFailure(ctx context.Context, identifier string) error {
	key := failureKey(identifier)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	return nil
}

func (l *LoginLimiter) Reset(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, failureKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func failureKey(identifier string) string {
	return "login:fail:" + strings.ToLower(strings.TrimSpace(identifier))
}
