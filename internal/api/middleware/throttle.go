package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/99minutos/admin-auth/internal/api/metrics"
	"github.com/99minutos/admin-auth/internal/core/domain"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Throttle rejects requests from a client IP once the limiter refuses them.
// Limiter failures are logged and the request is let through.
func Throttle(limiter Limiter, route string, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			ok, err := limiter.Allow(c.Request().Context(), route+"|"+ip)
			if err != nil {
				log.Warn().Err(err).Str("route", route).Msg("rate limiter unavailable")
				return next(c)
			}
			if !ok {
				metrics.ThrottledTotal.WithLabelValues(route).Inc()
				log.Debug().Str("route", route).Str("ip", ip).Msg("request throttled")
				return domain.ErrRateLimited
			}
			return next(c)
		}
	}
}

const (
	localIdleTTL    = 10 * time.Minute
	localSweepEvery = 1024
)

type localVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is an in-process token bucket per key, used when no shared
// store is configured.
type LocalLimiter struct {
	mu       sync.Mutex
	visitors map[string]*localVisitor
	limit    rate.Limit
	burst    int
	calls    int
	now      func() time.Time
}

// NewLocalLimiter allows burst requests per key, refilled evenly over window.
func NewLocalLimiter(burst int, window time.Duration) *LocalLimiter {
	if burst <= 0 {
		burst = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LocalLimiter{
		visitors: make(map[string]*localVisitor),
		limit:    rate.Limit(float64(burst) / window.Seconds()),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow satisfies Limiter. It never returns an error.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%localSweepEvery == 0 {
		l.sweep(now)
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &localVisitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1), nil
}

func (l *LocalLimiter) sweep(now time.Time) {
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > localIdleTTL {
			delete(l.visitors, k)
		}
	}
}
