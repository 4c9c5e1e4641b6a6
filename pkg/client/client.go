// Package client provides the First Street Foundation API client: a batch
// dispatcher with a request budget, a connection limit and retries.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/fsf-api-client/pkg/endpoint"
	"github.com/Sternrassler/fsf-api-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for API client operations.
var (
	fsfRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsf_requests_total",
		Help: "Total API requests by product and status",
	}, []string{"product", "status"})

	fsfRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsf_request_duration_seconds",
		Help:    "API request duration in seconds by product",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"product"})

	fsfRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsf_retries_total",
		Help: "Total number of retry attempts by reason",
	}, []string{"reason"})

	fsfRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsf_retry_exhausted_total",
		Help: "Total number of keys whose retry attempts were exhausted by product",
	}, []string{"product"})

	fsfSentinelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsf_sentinels_total",
		Help: "Total number of error sentinels returned by reason",
	}, []string{"reason"})

	fsfDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsf_dispatch_total",
		Help: "Total number of dispatched batches by outcome",
	}, []string{"outcome"})
)

// Client is the First Street API client. It is safe for concurrent use;
// concurrent dispatches share the request budget.
type Client struct {
	config   Config
	planner  endpoint.Planner
	throttle *ratelimit.Throttle
	tracker  *ratelimit.Tracker
	logger   zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey is sent as a bearer token (REQUIRED).
	APIKey string

	// Service location
	BaseURL string
	Version string

	// UserAgent identifies the client to the service.
	UserAgent string

	// ConnectionLimit is the maximum number of requests in flight.
	ConnectionLimit int

	// Request budget: at most RateLimit request starts per RatePeriod.
	RateLimit  int
	RatePeriod time.Duration

	// RequestTimeout bounds a single attempt.
	RequestTimeout time.Duration

	// Retry of timeouts and unreadable bodies, with a flat backoff.
	MaxAttempts  int
	RetryBackoff time.Duration

	// Redis optionally shares the last seen rate limit headers.
	Redis *redis.Client

	// Transport replaces the per-batch connection pool (tests, proxies).
	// Dispatch leaves it open; Close releases its idle connections.
	Transport http.RoundTripper
}

// DefaultConfig returns the default configuration for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:          apiKey,
		BaseURL:         endpoint.DefaultBaseURL,
		Version:         endpoint.DefaultVersion,
		UserAgent:       "go/fsf-api-client",
		ConnectionLimit: 100,
		RateLimit:       4990,
		RatePeriod:      60 * time.Second,
		RequestTimeout:  60 * time.Second,
		MaxAttempts:     5,
		RetryBackoff:    1 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.ConnectionLimit <= 0 {
		return nil, fmt.Errorf("connection_limit must be > 0 (got %d)", cfg.ConnectionLimit)
	}

	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request_timeout must be > 0 (got %s)", cfg.RequestTimeout)
	}

	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max_attempts must be > 0 (got %d)", cfg.MaxAttempts)
	}

	if cfg.RetryBackoff < 0 {
		return nil, fmt.Errorf("retry_backoff must be >= 0 (got %s)", cfg.RetryBackoff)
	}

	throttle, err := ratelimit.NewThrottle(cfg.RateLimit, cfg.RatePeriod)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	// Initialize logger
	logger := log.With().Str("component", "fsf-client").Logger()

	return &Client{
		config:   cfg,
		planner:  endpoint.NewPlanner(cfg.BaseURL, cfg.Version),
		throttle: throttle,
		tracker:  ratelimit.NewTracker(cfg.Redis, logger),
		logger:   logger,
	}, nil
}

// Get fetches a single key. Per-key failures come back as a sentinel
// result, like in Dispatch.
func (c *Client) Get(ctx context.Context, key endpoint.Key, product endpoint.Product) (Result, error) {
	results, err := c.Dispatch(ctx, []endpoint.Key{key}, product)
	if err != nil {
		return Result{}, err
	}
	return results[0], nil
}

// RateLimit returns the rate limit headers of the most recent response,
// or ratelimit.ErrNoInfo before the first one.
func (c *Client) RateLimit(ctx context.Context) (ratelimit.Info, error) {
	return c.tracker.Last(ctx)
}

// Planner returns the planner used to build request URLs.
func (c *Client) Planner() endpoint.Planner {
	return c.planner
}

// Close releases idle connections of a configured Transport. Connection
// pools created by Dispatch are released when it returns.
func (c *Client) Close() error {
	if t, ok := c.config.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}
