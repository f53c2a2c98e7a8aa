// Package guard holds the optional abuse checks applied before delivery.
package guard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/elchemista/FormRelay/internal/config"
	errorspkg "github.com/elchemista/FormRelay/internal/errors"
)

// ttlSlack keeps a counter around slightly longer than its window.
const ttlSlack = 60 * time.Second

// Store is the key/value backend the limiter keeps its counters in.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Limiter is a fixed-window counter keyed by client IP.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewLimiter builds a limiter from cfg backed by store.
func NewLimiter(cfg config.RateLimit, store Store) *Limiter {
	limit := cfg.Limit
	if limit <= 0 {
		limit = config.DefaultRateLimit
	}
	window := cfg.Window()
	if window <= 0 {
		window = config.DefaultRateWindow * time.Second
	}
	return &Limiter{store: store, limit: limit, window: window, now: time.Now}
}

// WithClock replaces the limiter's clock.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Allow records one submission from ip and reports RateLimited once the
// count within the current window exceeds the limit. Store failures are
// returned as StorageFailed so callers can decide whether to fail open.
func (l *Limiter) Allow(ctx context.Context, ip string) error {
	if l == nil || l.store == nil {
		return nil
	}

	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}

	key := "rl:" + ip
	bucket := l.now().Unix() / int64(l.window/time.Second)

	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return errorspkg.Wrap(errorspkg.StorageFailed, err, "rate limit lookup failed")
	}

	count := 0
	if ok {
		if c, b, valid := decodeCounter(raw); valid && b == bucket {
			count = c
		}
	}
	count++

	if err := l.store.Set(ctx, key, encodeCounter(count, bucket), l.window+ttlSlack); err != nil {
		return errorspkg.Wrap(errorspkg.StorageFailed, err, "rate limit update failed")
	}

	if count > l.limit {
		return errorspkg.New(errorspkg.RateLimited, "rate limit exceeded")
	}
	return nil
}

func encodeCounter(count int, bucket int64) string {
	return fmt.Sprintf("%d:%d", count, bucket)
}

func decodeCounter(raw string) (int, int64, bool) {
	countPart, bucketPart, found := strings.Cut(raw, ":")
	if !found {
		return 0, 0, false
	}
	count, err := strconv.Atoi(countPart)
	if err != nil {
		return 0, 0, false
	}
	bucket, err := strconv.ParseInt(bucketPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return count, bucket, true
}
