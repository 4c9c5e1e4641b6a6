package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/fsf-api-client/pkg/endpoint"
)

// session holds the resources scoped to one Dispatch call.
type session struct {
	transport *http.Transport // nil when Config.Transport is used
	gate      *Gate
	exec      *executor
}

// openSession creates the connection pool and the gate for one batch.
func (c *Client) openSession() *session {
	s := &session{gate: NewGate(c.config.ConnectionLimit)}

	roundTripper := c.config.Transport
	if roundTripper == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxConnsPerHost = c.config.ConnectionLimit
		t.MaxIdleConnsPerHost = c.config.ConnectionLimit
		s.transport = t
		roundTripper = t
	}

	s.exec = &executor{
		httpClient: &http.Client{Transport: roundTripper},
		gate:       s.gate,
		throttle:   c.throttle,
		tracker:    c.tracker,
		config:     c.config,
		logger:     c.logger,
	}
	return s
}

// close must run after every task has returned.
func (s *session) close() {
	s.gate.Close()
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
}

// Dispatch fetches every key for product and returns one Result per key in
// input order. Per-key failures are sentinel results. An error is returned
// for invalid input, before any request is made, and for systemic API
// errors (see APIError), which abort the rest of the batch.
//
// Once started a batch runs to completion: cancelling ctx does not stop it.
// Values carried by ctx are kept.
func (c *Client) Dispatch(ctx context.Context, keys []endpoint.Key, product endpoint.Product) ([]Result, error) {
	ctx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()

	sess := c.openSession()
	defer sess.close()

	descriptors, err := c.planner.Plan(keys, product)
	if err != nil {
		fsfDispatchTotal.WithLabelValues("invalid").Inc()
		c.logger.Error().Err(err).Str("product", product.Name()).Int("keys", len(keys)).Msg("Batch rejected")
		return nil, err
	}

	c.logger.Info().
		Str("product", product.Name()).
		Int("keys", len(descriptors)).
		Msg("Dispatching batch")
	startTime := time.Now()

	results := make([]Result, len(descriptors))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	for i, d := range descriptors {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := sess.exec.execute(ctx, d)
			if err != nil {
				// Tasks cut short by the abort report context.Canceled;
				// only the error that caused it is kept.
				once.Do(func() {
					firstErr = err
					abort()
				})
				return
			}
			results[i] = result
		}()
	}
	wg.Wait()

	if firstErr != nil {
		fsfDispatchTotal.WithLabelValues("aborted").Inc()
		var apiErr *APIError
		if errors.As(firstErr, &apiErr) {
			c.logger.Error().
				Err(firstErr).
				Str("error_class", string(apiErr.Class)).
				Str("product", product.Name()).
				Msg("Batch aborted")
		}
		return nil, firstErr
	}

	fsfDispatchTotal.WithLabelValues("ok").Inc()
	c.logger.Info().
		Str("product", product.Name()).
		Int("keys", len(results)).
		Dur("duration", time.Since(startTime)).
		Msg("Batch complete")

	return results, nil
}
