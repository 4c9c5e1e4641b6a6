package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKeyLastInfo holds the most recent Info as JSON, shared by every
// client pointed at the same Redis.
const RedisKeyLastInfo = "fsf:rate_limit:last"

// DefaultInfoTTL bounds how long a stored Info is kept when the reset
// header cannot be interpreted.
const DefaultInfoTTL = 5 * time.Minute

// Prometheus metrics for server-reported rate limits.
var (
	fsfRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsf_rate_limit_remaining",
		Help: "Requests remaining in the current window as reported by the API",
	})

	fsfRateLimitLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fsf_rate_limit_limit",
		Help: "Request limit of the current window as reported by the API",
	})

	fsfRateLimitLowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fsf_rate_limit_low_total",
		Help: "Responses reporting a remaining budget below the warning ratio",
	})
)

// ErrNoInfo is returned by Last before any response has been recorded.
var ErrNoInfo = errors.New("no rate limit info recorded")

// Tracker remembers the last rate limit headers seen by the client.
// It is purely diagnostic; requests are never gated on it.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu   sync.RWMutex
	last Info
	seen bool
}

// NewTracker creates a tracker. redisClient may be nil, in which case the
// last Info is only kept in memory.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// Record stores info as the latest observation. Responses without any
// rate limit header are ignored.
func (t *Tracker) Record(ctx context.Context, info Info) error {
	if info.IsZero() {
		return nil
	}

	t.mu.Lock()
	t.last = info
	t.seen = true
	t.mu.Unlock()

	if remaining, ok := info.RemainingCount(); ok {
		fsfRateLimitRemaining.Set(float64(remaining))
	}
	if limit, ok := info.LimitCount(); ok {
		fsfRateLimitLimit.Set(float64(limit))
	}

	if info.IsLow() {
		fsfRateLimitLowTotal.Inc()
		t.logger.Warn().
			Str("limit", info.Limit).
			Str("remaining", info.Remaining).
			Str("reset", info.Reset).
			Str("request_id", info.RequestID).
			Msg("API rate limit budget running low")
	} else {
		t.logger.Debug().
			Str("limit", info.Limit).
			Str("remaining", info.Remaining).
			Str("reset", info.Reset).
			Msg("Rate limit info updated")
	}

	if t.redis == nil {
		return nil
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal rate limit info: %w", err)
	}

	ttl := DefaultInfoTTL
	if resetAt, ok := info.ResetAt(); ok {
		if until := time.Until(resetAt); until > 0 {
			ttl = until
		}
	}

	if err := t.redis.Set(ctx, RedisKeyLastInfo, data, ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit info in redis: %w", err)
	}

	return nil
}

// Last returns the most recent Info. With Redis configured the shared
// value wins, so observations of other processes are visible too.
func (t *Tracker) Last(ctx context.Context) (Info, error) {
	if t.redis != nil {
		data, err := t.redis.Get(ctx, RedisKeyLastInfo).Bytes()
		switch {
		case err == nil:
			var info Info
			if err := json.Unmarshal(data, &info); err != nil {
				return Info{}, fmt.Errorf("parse rate limit info: %w", err)
			}
			return info, nil
		case err != redis.Nil:
			return Info{}, fmt.Errorf("get rate limit info: %w", err)
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.seen {
		return Info{}, ErrNoInfo
	}
	return t.last, nil
}
