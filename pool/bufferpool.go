// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
//
// BufferPool hands out job destination buffers. It is owned by one engine
// instance; there is no process-wide default pool.

package pool

import "github.com/momentics/hioload-zstd/api"

// MaxBuffers returns the buffer bound for a worker count: one buffer per
// ring slot plus headroom for the flush path.
func MaxBuffers(workers int) int {
	return 2*workers + 3
}

// BufferPool is a bounded pool of byte buffers of at least TargetSize bytes.
type BufferPool struct {
	p *slicePool[byte]
}

// NewBufferPool creates a pool holding at most maxCount buffers.
func NewBufferPool(maxCount, targetSize int) *BufferPool {
	return &BufferPool{p: newSlicePool[byte](maxCount, targetSize)}
}

// Get returns a buffer with len == cap >= target size. It fails with
// api.ErrResourceExhausted when maxCount buffers are already leased.
func (bp *BufferPool) Get() ([]byte, error) { return bp.p.get() }

// Release returns buf to the pool.
func (bp *BufferPool) Release(buf []byte) { bp.p.release(buf) }

// SetTargetSize changes the size of future allocations. Idle buffers are
// replaced lazily by the reuse band check in Get.
func (bp *BufferPool) SetTargetSize(n int) { bp.p.setTarget(n) }

// TargetSize returns the current target size.
func (bp *BufferPool) TargetSize() int { return bp.p.targetSize() }

// Expand raises the buffer bound. Call it only between frames.
func (bp *BufferPool) Expand(maxCount int) { bp.p.expand(maxCount) }

// SizeOf reports bytes held by idle buffers plus bookkeeping.
func (bp *BufferPool) SizeOf() int { return bp.p.sizeOf() }

// Stats implements api.BytePool.
func (bp *BufferPool) Stats() api.PoolStats { return bp.p.stats() }

var _ api.BytePool = (*BufferPool)(nil)
