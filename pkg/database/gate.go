package database

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// gate admits at most limit concurrent statements. Callers beyond the limit
// either fail fast or queue, and the queue itself may be bounded.
type gate struct {
	sem        *semaphore.Weighted
	queueLimit int64
	wait       bool

	waiting  atomic.Int64
	rejected atomic.Uint64
}

func newGate(limit, queueLimit int, wait bool) *gate {
	if limit <= 0 {
		limit = 1
	}
	if queueLimit < 0 {
		queueLimit = 0
	}
	return &gate{
		sem:        semaphore.NewWeighted(int64(limit)),
		queueLimit: int64(queueLimit),
		wait:       wait,
	}
}

func (g *gate) enter(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.sem.TryAcquire(1) {
		return g.releaser(), nil
	}
	if !g.wait {
		g.rejected.Add(1)
		return nil, ErrPoolExhausted
	}

	// queueLimit of zero means an unbounded queue.
	queued := g.waiting.Add(1)
	defer g.waiting.Add(-1)
	if g.queueLimit > 0 && queued > g.queueLimit {
		g.rejected.Add(1)
		return nil, ErrQueueFull
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return g.releaser(), nil
}

func (g *gate) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { g.sem.Release(1) })
	}
}
