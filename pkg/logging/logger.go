// Package logging configures zerolog for the First Street API client and
// its command line tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs every attempt, gate wait and rate limit update.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs batches and retries.
	LevelInfo LogLevel = "info"

	// LevelWarn logs sentinels and low rate limit budgets.
	LevelWarn LogLevel = "warn"

	// LevelError logs failed keys and aborted batches only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug:    zerolog.DebugLevel,
	LevelInfo:     zerolog.InfoLevel,
	LevelWarn:     zerolog.WarnLevel,
	LevelError:    zerolog.ErrorLevel,
	LevelDisabled: zerolog.Disabled,
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ParseLevel reads a level name such as "debug" or "WARNING".
func ParseLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if level == "warning" {
		level = LevelWarn
	}
	if _, ok := zerologLevels[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Setup configures the global zerolog logger. Unknown levels fall back to info.
func Setup(cfg Config) zerolog.Logger {
	level, ok := zerologLevels[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-attempt flow
//   - gates acquired (with wait time)
//   - request executed (attempt number)
//   - rate limit headers recorded
//
// Info: batch flow
//   - batch dispatched / complete
//   - transient error, retrying
//
// Warn: per-key outcomes that are not errors of the client
//   - key mapped to error sentinel (not found, outside tile coverage)
//   - remaining rate limit budget below 10%
//
// Error:
//   - retries exhausted
//   - connection failures (DNS, refused)
//   - systemic API errors aborting a batch
//   - batch rejected by validation
//
// Context Fields:
//   - component: fsf-client, fsf-fetch
//   - url, key, product: the request
//   - attempt: 1-based attempt number
//   - status: HTTP status code
//   - duration: batch duration
//   - error_class: unauthorized, not_acceptable, rate_limited, internal, offline, unknown
//   - limit, remaining, reset, request_id: rate limit headers
