package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	authapi "authsrv/cmd/internal/auth/api"
	"authsrv/cmd/internal/auth/session"
	"authsrv/cmd/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether the caller identified by key may proceed.
// When it may not, retryAfter says how long until the next window opens.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter is a fixed-window counter shared by every server instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per key in each window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client: client,
		limit:  int64(max(limit, 1)),
		window: window,
		prefix: "authsrv:throttle",
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	k, bucket := l.windowKey(key, now)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("throttle: %w", err)
	}

	if count.Val() <= l.limit {
		return true, 0, nil
	}
	windowEnd := time.Unix(0, (bucket+1)*int64(l.window))
	return false, windowEnd.Sub(now), nil
}

func (l *RedisLimiter) windowKey(key string, now time.Time) (string, int64) {
	bucket := now.UnixNano() / int64(l.window)
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket), bucket
}

// WithThrottle rejects callers over their limit with 429. Requests are keyed
// by client address only: cookies are caller-chosen until a handler has
// checked them. A limiter failure lets the request through.
func WithThrottle(limiter Limiter, m *metrics.Metrics, log *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter, err := limiter.Allow(r.Context(), throttleKey(r, trustProxy))
			if err != nil {
				log.WarnContext(r.Context(), "throttle.unavailable", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				m.IncThrottled()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
				authapi.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func throttleKey(r *http.Request, trustProxy bool) string {
	if ip := session.ClientIP(r, trustProxy); ip != nil {
		return "ip:" + ip.String()
	}
	return "ip:unknown"
}

func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
