package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/fsf-api-client/pkg/endpoint"
	"github.com/Sternrassler/fsf-api-client/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// state is the position of one key in its request lifecycle.
type state int

const (
	statePending state = iota
	stateThrottled
	stateExecuting
	stateSuccess
	stateRetryable
	stateTerminal
)

func (s state) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateThrottled:
		return "throttled"
	case stateExecuting:
		return "executing"
	case stateSuccess:
		return "success"
	case stateRetryable:
		return "retryable"
	case stateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// executor runs descriptors through the gates and the retry loop. One
// executor serves one dispatch.
type executor struct {
	httpClient *http.Client
	gate       *Gate
	throttle   *ratelimit.Throttle
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// run tracks one key through its states
type run struct {
	desc    endpoint.Descriptor
	state   state
	attempt int
	result  Result
	// lastErr is the transport error of a retryable attempt. In
	// stateTerminal it is the systemic error, or nil when result is a sentinel.
	lastErr error
	logger  zerolog.Logger
}

// execute returns a Result for d. The error is non-nil only for systemic
// API errors and for a cancelled ctx.
func (e *executor) execute(ctx context.Context, d endpoint.Descriptor) (Result, error) {
	r := &run{
		desc:  d,
		state: statePending,
		logger: e.logger.With().
			Str("url", d.URL).
			Str("key", d.Key.String()).
			Str("product", d.Product.Name()).
			Logger(),
	}

	for {
		switch r.state {
		case statePending:
			r.attempt++
			r.state = stateThrottled

		case stateThrottled:
			e.acquireAndExecute(ctx, r)

		case stateRetryable:
			if r.attempt >= e.config.MaxAttempts {
				fsfRetryExhaustedTotal.WithLabelValues(d.Product.Name()).Inc()
				fsfSentinelsTotal.WithLabelValues("exhausted").Inc()
				r.logger.Error().
					Err(retryExhausted(r.attempt, r.lastErr)).
					Int("attempt", r.attempt).
					Msg("Giving up")
				r.state = stateTerminal
				r.result = sentinelResult(d, "")
				r.lastErr = nil
				continue
			}

			var te *transportError
			reason := reasonTimeout
			if errors.As(r.lastErr, &te) {
				reason = te.reason
			}
			fsfRetriesTotal.WithLabelValues(reason).Inc()
			r.logger.Info().
				Err(r.lastErr).
				Int("attempt", r.attempt).
				Dur("backoff", e.config.RetryBackoff).
				Msg("Transient error, retrying")

			if err := sleep(ctx, e.config.RetryBackoff); err != nil {
				return Result{}, err
			}
			r.state = statePending

		case stateSuccess:
			return r.result, nil

		case stateTerminal:
			return r.result, r.lastErr
		}
	}
}

// acquireAndExecute waits for a gate worker, then for the throttle, then
// performs one attempt. Both are re-acquired for every attempt.
func (e *executor) acquireAndExecute(ctx context.Context, r *run) {
	err := e.gate.Run(ctx, func(ctx context.Context) error {
		start := time.Now()
		if err := e.throttle.Wait(ctx); err != nil {
			return err
		}
		r.logger.Debug().
			Stringer("state", r.state).
			Int("attempt", r.attempt).
			Dur("waited", time.Since(start)).
			Msg("Gates acquired")

		r.state = stateExecuting
		e.attempt(ctx, r)
		return nil
	})
	if err != nil {
		// Only a cancelled dispatch fails the gates.
		r.state = stateTerminal
		r.lastErr = err
		if ctx.Err() != nil {
			r.lastErr = ctx.Err()
		}
	}
}

// attempt performs the GET and moves r out of stateExecuting.
func (e *executor) attempt(ctx context.Context, r *run) {
	d := r.desc
	product := d.Product.Name()

	reqCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, d.URL, nil)
	if err != nil {
		e.terminal(r, &transportError{reason: reasonConnection, err: err})
		return
	}
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("User-Agent", e.config.UserAgent)

	r.logger.Debug().Stringer("state", r.state).Int("attempt", r.attempt).Msg("Executing API request")

	startTime := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		fsfRequestsTotal.WithLabelValues(product, "network_error").Inc()
		e.transportFailure(ctx, r, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	fsfRequestDuration.WithLabelValues(product).Observe(time.Since(startTime).Seconds())
	fsfRequestsTotal.WithLabelValues(product, strconv.Itoa(resp.StatusCode)).Inc()
	if err != nil {
		e.transportFailure(ctx, r, err)
		return
	}

	info := ratelimit.ParseHeaders(resp.Header)
	if err := e.tracker.Record(ctx, info); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record rate limit info")
	}

	classifier := classifyProduct
	if d.Product.IsTile() {
		classifier = classifyTile
	}

	result, reason, err := classifier(d, response{status: resp.StatusCode, body: body, info: info})

	var te *transportError
	var apiErr *APIError
	switch {
	case errors.As(err, &te) && te.retryable:
		r.state = stateRetryable
		r.lastErr = err
	case te != nil:
		e.terminal(r, te)
	case errors.As(err, &apiErr):
		r.logger.Error().
			Int("status", apiErr.StatusCode).
			Str("error_class", string(apiErr.Class)).
			Str("limit", info.Limit).
			Str("remaining", info.Remaining).
			Str("reset", info.Reset).
			Str("request_id", info.RequestID).
			Msg(apiErr.Message)
		r.state = stateTerminal
		r.lastErr = err
	default:
		if reason != "" {
			fsfSentinelsTotal.WithLabelValues(reason).Inc()
			r.logger.Warn().
				Int("status", resp.StatusCode).
				Str("reason", reason).
				Msg("Key mapped to error sentinel")
		}
		r.state = stateSuccess
		r.result = result
	}
}

// transportFailure sorts a failed round trip into retry, sentinel or abort.
func (e *executor) transportFailure(ctx context.Context, r *run, err error) {
	switch {
	case ctx.Err() != nil:
		r.state = stateTerminal
		r.lastErr = ctx.Err()
	case isTimeout(err):
		r.state = stateRetryable
		r.lastErr = &transportError{reason: reasonTimeout, retryable: true, err: err}
	default:
		e.terminal(r, &transportError{reason: reasonConnection, err: err})
	}
}

// terminal ends r with a sentinel for a failure that retrying cannot fix.
func (e *executor) terminal(r *run, err *transportError) {
	fsfSentinelsTotal.WithLabelValues(err.reason).Inc()
	r.logger.Error().Err(err).Int("attempt", r.attempt).Msg("Request failed")
	r.state = stateTerminal
	r.result = sentinelResult(r.desc, "")
	r.lastErr = nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
