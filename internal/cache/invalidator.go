// Package cache carries the process-wide invalidation signal for readers of
// membership and domain data. The engine only bumps the signal; cache storage
// and eviction live with the readers.
package cache

import (
	"context"
	"sync/atomic"
)

// Invalidator is notified after any successful membership or domain mutation.
// Exactly one call per webhook delivery (not per row), and one per
// reconciliation run. Best-effort: implementations log failures and never
// block the mutation path on them.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// MemoryInvalidator is an in-process Invalidator backed by an atomic version
// counter. Used in tests and when Redis is not configured.
type MemoryInvalidator struct {
	version atomic.Int64
}

// NewMemoryInvalidator returns an in-process invalidation signal.
func NewMemoryInvalidator() *MemoryInvalidator {
	return &MemoryInvalidator{}
}

// Invalidate bumps the version.
func (m *MemoryInvalidator) Invalidate(_ context.Context) {
	m.version.Add(1)
}

// Version returns the current invalidation version. Readers compare it to the
// version they cached at.
func (m *MemoryInvalidator) Version() int64 {
	return m.version.Load()
}
