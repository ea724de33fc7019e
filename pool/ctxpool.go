// File: pool/ctxpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ContextPool recycles single-job compression contexts between jobs.

package pool

import (
	"sync"

	"github.com/momentics/hioload-zstd/api"
)

// ContextPool keeps up to max idle contexts. An empty pool allocates
// through the factory instead of blocking; reuse is an optimization only.
type ContextPool[C any] struct {
	mu      sync.Mutex
	idle    []C
	max     int
	leased  int
	factory func() (C, error)
	sizeOf  func(C) int

	totalAlloc int64
	totalReuse int64
	discarded  int64
}

// NewContextPool creates a pool bounded by maxCount idle contexts.
// sizeOf may be nil when contexts cannot report their footprint.
func NewContextPool[C any](maxCount int, factory func() (C, error), sizeOf func(C) int) *ContextPool[C] {
	return &ContextPool[C]{
		idle:    make([]C, 0, maxCount),
		max:     maxCount,
		factory: factory,
		sizeOf:  sizeOf,
	}
}

// Get pops an idle context or creates one outside the lock.
func (cp *ContextPool[C]) Get() (C, error) {
	cp.mu.Lock()
	if n := len(cp.idle); n > 0 {
		c := cp.idle[n-1]
		var zero C
		cp.idle[n-1] = zero
		cp.idle = cp.idle[:n-1]
		cp.leased++
		cp.totalReuse++
		cp.mu.Unlock()
		return c, nil
	}
	cp.mu.Unlock()

	c, err := cp.factory()
	if err != nil {
		var zero C
		return zero, api.Wrap(api.ErrCodeResourceExhausted, "context allocation failed", err)
	}
	cp.mu.Lock()
	cp.leased++
	cp.totalAlloc++
	cp.mu.Unlock()
	return c, nil
}

// Release parks c, or drops it when the idle list is full.
func (cp *ContextPool[C]) Release(c C) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.leased > 0 {
		cp.leased--
	}
	if len(cp.idle) >= cp.max {
		cp.discarded++
		return
	}
	cp.idle = append(cp.idle, c)
}

// Expand raises the idle bound, dropping current idle contexts.
func (cp *ContextPool[C]) Expand(maxCount int) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if maxCount <= cp.max {
		return
	}
	cp.discarded += int64(len(cp.idle))
	cp.idle = make([]C, 0, maxCount)
	cp.max = maxCount
}

// SizeOf sums the footprint of idle contexts.
func (cp *ContextPool[C]) SizeOf() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	total := 0
	if cp.sizeOf != nil {
		for _, c := range cp.idle {
			total += cp.sizeOf(c)
		}
	}
	return total
}

// Stats returns pool accounting; TargetSize is always 0.
func (cp *ContextPool[C]) Stats() api.PoolStats {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return api.PoolStats{
		Leased:     cp.leased,
		Idle:       len(cp.idle),
		Max:        cp.max,
		TotalAlloc: cp.totalAlloc,
		TotalReuse: cp.totalReuse,
		Discarded:  cp.discarded,
	}
}

var _ api.ObjectPool[int] = (*ContextPool[int])(nil)
