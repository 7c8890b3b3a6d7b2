package review

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate is the process-wide admission gate bounding simultaneously in-flight
// model requests. Reviewer completions, bridge-triggered completions, and
// synthesis all acquire a slot from the same gate. A caller that cannot
// acquire a slot waits until one frees, bounded by its own context deadline.
type Gate struct {
	sem *semaphore.Weighted
}

// NewGate returns a gate admitting at most n concurrent requests.
func NewGate(n int64) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{sem: semaphore.NewWeighted(n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release frees a slot acquired with Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}
