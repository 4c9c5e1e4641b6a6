package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/fsf-api-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

func TestNew_Validation(t *testing.T) {
	valid := DefaultConfig("test-key")

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "missing api key",
			mutate:      func(c *Config) { c.APIKey = "" },
			expectError: true,
			errorMsg:    "api key is required",
		},
		{
			name:        "empty user agent",
			mutate:      func(c *Config) { c.UserAgent = "" },
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "zero connection limit",
			mutate:      func(c *Config) { c.ConnectionLimit = 0 },
			expectError: true,
			errorMsg:    "connection_limit must be > 0 (got 0)",
		},
		{
			name:        "zero rate limit",
			mutate:      func(c *Config) { c.RateLimit = 0 },
			expectError: true,
		},
		{
			name:        "zero rate period",
			mutate:      func(c *Config) { c.RatePeriod = 0 },
			expectError: true,
		},
		{
			name:        "zero max attempts",
			mutate:      func(c *Config) { c.MaxAttempts = 0 },
			expectError: true,
			errorMsg:    "max_attempts must be > 0 (got 0)",
		},
		{
			name:        "zero request timeout",
			mutate:      func(c *Config) { c.RequestTimeout = 0 },
			expectError: true,
			errorMsg:    "request_timeout must be > 0 (got 0s)",
		},
		{
			name:        "negative backoff",
			mutate:      func(c *Config) { c.RetryBackoff = -time.Second },
			expectError: true,
			errorMsg:    "retry_backoff must be >= 0 (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			client, err := New(cfg)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestNew_MissingAPIKeyIsSentinel(t *testing.T) {
	_, err := New(DefaultConfig(""))
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("New() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("key")

	if cfg.APIKey != "key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "key")
	}
	if cfg.BaseURL != "https://api.firststreet.org" || cfg.Version != "v1" {
		t.Errorf("BaseURL/Version = %q/%q", cfg.BaseURL, cfg.Version)
	}
	if cfg.ConnectionLimit != 100 {
		t.Errorf("ConnectionLimit = %d, want 100", cfg.ConnectionLimit)
	}
	if cfg.RateLimit != 4990 || cfg.RatePeriod != 60*time.Second {
		t.Errorf("RateLimit/RatePeriod = %d/%s, want 4990/1m0s", cfg.RateLimit, cfg.RatePeriod)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.RetryBackoff != time.Second {
		t.Errorf("RetryBackoff = %s, want 1s", cfg.RetryBackoff)
	}
	if cfg.Redis != nil {
		t.Error("Redis should be optional")
	}
}

func TestClient_RateLimitBeforeFirstRequest(t *testing.T) {
	c, err := New(DefaultConfig("key"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if _, err := c.RateLimit(context.Background()); !errors.Is(err, ratelimit.ErrNoInfo) {
		t.Errorf("RateLimit() error = %v, want ErrNoInfo", err)
	}
}

func TestClient_PlannerUsesConfig(t *testing.T) {
	cfg := DefaultConfig("key")
	cfg.BaseURL = "http://localhost:9999/"
	cfg.Version = "v2"

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p := c.Planner()
	if p.BaseURL != "http://localhost:9999" || p.Version != "v2" {
		t.Errorf("Planner() = %+v", p)
	}
}

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}
