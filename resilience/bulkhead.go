package resilience

import (
	"context"
)

// Bulkhead bounds the number of units of work in flight. The
// orchestrator uses one per job as its dispatch worker pool: chunks
// queue for a slot instead of fanning out unbounded.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead allowing maxConcurrent concurrent calls.
func NewBulkhead(maxConcurrent int) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a slot is free or the context is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired with Acquire.
func (b *Bulkhead) Release() {
	<-b.sem
}

// Execute runs fn within the bulkhead, waiting for a slot first.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return fn()
}

// InFlight returns the number of currently occupied slots.
func (b *Bulkhead) InFlight() int {
	return len(b.sem)
}
