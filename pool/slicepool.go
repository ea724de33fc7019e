// File: pool/slicepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Generic bounded pool of slices shared by BufferPool and SeqPool.

package pool

import (
	"sync"
	"unsafe"

	"github.com/momentics/hioload-zstd/api"
)

// slicePool keeps idle slices of element type E. Sizes are counted in
// elements, so the same code serves byte buffers and sequence arrays.
type slicePool[E any] struct {
	mu     sync.Mutex
	idle   [][]E
	max    int
	target int
	leased int

	totalAlloc int64
	totalReuse int64
	discarded  int64
}

func newSlicePool[E any](maxCount, target int) *slicePool[E] {
	return &slicePool[E]{
		idle:   make([][]E, 0, maxCount),
		max:    maxCount,
		target: target,
	}
}

// get pops an idle slice whose capacity sits in [target, 8*target]. Idle
// slices outside that band are dropped. When nothing fits, a fresh slice is
// allocated outside the lock.
func (p *slicePool[E]) get() ([]E, error) {
	p.mu.Lock()
	target := p.target
	for len(p.idle) > 0 {
		n := len(p.idle) - 1
		s := p.idle[n]
		p.idle[n] = nil
		p.idle = p.idle[:n]
		if cap(s) >= target && cap(s)/8 <= target {
			p.leased++
			p.totalReuse++
			p.mu.Unlock()
			return s[:cap(s)], nil
		}
		p.discarded++
	}
	if p.leased >= p.max {
		leased, limit := p.leased, p.max
		p.mu.Unlock()
		return nil, api.ErrResourceExhausted.
			WithContext("leased", leased).
			WithContext("max", limit)
	}
	p.leased++
	p.totalAlloc++
	p.mu.Unlock()

	return make([]E, target), nil
}

// release parks s for reuse, or drops it when it is far below the current
// target or the idle list is full.
func (p *slicePool[E]) release(s []E) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.leased > 0 {
		p.leased--
	}
	if cap(s) < p.target/8 || len(p.idle)+p.leased >= p.max {
		p.discarded++
		return
	}
	p.idle = append(p.idle, s[:0])
}

func (p *slicePool[E]) setTarget(n int) {
	p.mu.Lock()
	p.target = n
	p.mu.Unlock()
}

func (p *slicePool[E]) targetSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// expand raises the bound to maxCount, starting from an empty idle list.
// Leases already out stay counted. A smaller bound is ignored.
func (p *slicePool[E]) expand(maxCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if maxCount <= p.max {
		return
	}
	p.discarded += int64(len(p.idle))
	p.idle = make([][]E, 0, maxCount)
	p.max = maxCount
}

func (p *slicePool[E]) sizeOf() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var e E
	total := int(unsafe.Sizeof(*p)) + cap(p.idle)*int(unsafe.Sizeof([]E(nil)))
	for _, s := range p.idle {
		total += cap(s) * int(unsafe.Sizeof(e))
	}
	return total
}

func (p *slicePool[E]) stats() api.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return api.PoolStats{
		Leased:     p.leased,
		Idle:       len(p.idle),
		Max:        p.max,
		TargetSize: p.target,
		TotalAlloc: p.totalAlloc,
		TotalReuse: p.totalReuse,
		Discarded:  p.discarded,
	}
}
