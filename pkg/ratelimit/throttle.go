package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var fsfThrottleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "fsf_throttle_wait_seconds",
	Help:    "Time spent waiting for the request budget before a request start",
	Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
})

// Throttle admits at most Limit request starts in any window of Period.
//
// Starts are spaced just over Period/Limit apart with a burst of one, so a
// rolling window of length Period, ends included, never holds more than
// Limit starts. Waiters
// are served in arrival order by the underlying limiter.
type Throttle struct {
	limiter *rate.Limiter
	limit   int
	period  time.Duration
}

// NewThrottle creates a throttle for limit requests per period.
func NewThrottle(limit int, period time.Duration) (*Throttle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be > 0 (got %d)", limit)
	}
	if period <= 0 {
		return nil, fmt.Errorf("rate period must be > 0 (got %s)", period)
	}

	// Limit intervals must exceed Period, so the start after Limit others
	// falls outside the closed window that began with the first.
	interval := period/time.Duration(limit) + 1

	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		limit:   limit,
		period:  period,
	}, nil
}

// Wait blocks until one more request may start. It only returns early
// when ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}
	fsfThrottleWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// Limit returns the configured number of starts per period.
func (t *Throttle) Limit() int { return t.limit }

// Period returns the configured window length.
func (t *Throttle) Period() time.Duration { return t.period }
