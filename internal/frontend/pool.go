package frontend

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/edvin/mapd/internal/metrics"
)

// Pool is the bounded worker pool shared by both endpoints. It is the single
// point of concurrency control for request execution: no more than size work
// items run at once, regardless of which transport accepted them.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool admitting size concurrent work items.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the pool's concurrency bound.
func (p *Pool) Size() int { return p.size }

// Submit blocks until a slot is free, then runs fn on its own goroutine.
// The slot is released when fn returns.
func (p *Pool) Submit(ctx context.Context, transport string, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	metrics.RequestsDispatched.WithLabelValues(transport).Inc()
	metrics.PoolInFlight.Inc()
	go func() {
		defer func() {
			metrics.PoolInFlight.Dec()
			p.sem.Release(1)
		}()
		fn()
	}()
	return nil
}

// Do runs fn on the calling goroutine once a slot is free, releasing the slot
// when fn returns. Used by the HTTP endpoint, which already runs each request
// on its own goroutine.
func (p *Pool) Do(ctx context.Context, transport string, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer func() {
		metrics.PoolInFlight.Dec()
		p.sem.Release(1)
	}()
	metrics.RequestsDispatched.WithLabelValues(transport).Inc()
	metrics.PoolInFlight.Inc()
	fn()
	return nil
}
