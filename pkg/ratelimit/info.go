// Package ratelimit implements the client-side request budget and keeps
// track of the rate limit headers reported by the First Street API.
//
// Local throttling is budget-based: the Throttle enforces the configured
// requests-per-period and never looks at server headers. The headers are
// parsed into Info for diagnostics and error messages only.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Response headers carrying the server's view of the request budget.
const (
	HeaderLimit     = "X-Ratelimit-Limit"
	HeaderRemaining = "X-Ratelimit-Remaining"
	HeaderReset     = "X-Ratelimit-Reset"
	HeaderRequestID = "X-Request-Id"
)

// LowRemainingRatio marks the point below which a remaining budget is
// logged as a warning.
const LowRemainingRatio = 0.1

// Info is the rate limit metadata of one response. Values are kept as
// sent by the server so they can be echoed verbatim in error messages.
type Info struct {
	Limit     string    `json:"limit"`
	Remaining string    `json:"remaining"`
	Reset     string    `json:"reset"`
	RequestID string    `json:"request_id"`
	SeenAt    time.Time `json:"seen_at"`
}

// ParseHeaders extracts Info from response headers. Missing headers
// leave the corresponding field empty.
func ParseHeaders(headers http.Header) Info {
	return Info{
		Limit:     headers.Get(HeaderLimit),
		Remaining: headers.Get(HeaderRemaining),
		Reset:     headers.Get(HeaderReset),
		RequestID: headers.Get(HeaderRequestID),
		SeenAt:    time.Now(),
	}
}

// IsZero reports whether no rate limit header was present.
func (i Info) IsZero() bool {
	return i.Limit == "" && i.Remaining == "" && i.Reset == "" && i.RequestID == ""
}

// LimitCount returns the parsed limit header.
func (i Info) LimitCount() (int, bool) {
	return atoi(i.Limit)
}

// RemainingCount returns the parsed remaining header.
func (i Info) RemainingCount() (int, bool) {
	return atoi(i.Remaining)
}

// ResetAt interprets the reset header. Large values are unix timestamps,
// small ones are seconds relative to when the response was seen.
func (i Info) ResetAt() (time.Time, bool) {
	v, err := strconv.ParseInt(i.Reset, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	if v > 1_000_000_000 {
		return time.Unix(v, 0), true
	}
	return i.SeenAt.Add(time.Duration(v) * time.Second), true
}

// IsLow reports whether the remaining budget is below LowRemainingRatio
// of the limit.
func (i Info) IsLow() bool {
	limit, okLimit := i.LimitCount()
	remaining, okRemaining := i.RemainingCount()
	if !okLimit || !okRemaining || limit <= 0 {
		return false
	}
	return float64(remaining) < float64(limit)*LowRemainingRatio
}

func atoi(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
