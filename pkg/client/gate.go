package client

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/slok/goresilience"
	"github.com/slok/goresilience/bulkhead"
)

var fsfInFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "fsf_inflight_requests",
	Help: "Requests currently executing inside the concurrency gate",
})

// Gate bounds how many requests execute at once. It is a bulkhead with a
// fixed pool of workers; callers queue until a worker is free.
type Gate struct {
	runner   goresilience.Runner
	stopC    chan struct{}
	capacity int
	once     sync.Once
}

// NewGate starts a gate with capacity workers. Close must be called once
// every Run has returned.
func NewGate(capacity int) *Gate {
	stopC := make(chan struct{})
	return &Gate{
		runner: bulkhead.New(bulkhead.Config{
			Workers: capacity,
			StopC:   stopC,
		}),
		stopC:    stopC,
		capacity: capacity,
	}
}

// Run executes f on a gate worker. It returns goresilience's
// ErrContextCanceled without calling f when ctx is done by the time a
// worker picks it up.
func (g *Gate) Run(ctx context.Context, f func(ctx context.Context) error) error {
	return g.runner.Run(ctx, func(ctx context.Context) error {
		fsfInFlightRequests.Inc()
		defer fsfInFlightRequests.Dec()
		return f(ctx)
	})
}

// Capacity returns the number of workers.
func (g *Gate) Capacity() int {
	return g.capacity
}

// Close stops the workers.
func (g *Gate) Close() {
	g.once.Do(func() { close(g.stopC) })
}
