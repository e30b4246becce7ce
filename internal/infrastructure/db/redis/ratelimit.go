package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowLimiter is a fixed-window request counter shared by every replica.
// Key format: ratelimit:<scope>:<key>:<window_start_unix>
type WindowLimiter struct {
	client *redis.Client
	scope  string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewWindowLimiter allows limit requests per key in each window.
func NewWindowLimiter(client *redis.Client, scope string, limit int, window time.Duration) *WindowLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &WindowLimiter{client: client, scope: scope, limit: int64(limit), window: window, now: time.Now}
}

// Allow counts one request for key and reports whether it fits in the current window.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return incr.Val() <= l.limit, nil
}

func (l *WindowLimiter) key(key string) string {
	start := l.now().Truncate(l.window).Unix()
	return fmt.Sprintf("ratelimit:%s:%s:%d", l.scope, key, start)
}
