// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs: bounded, reusable buffers and compression
// contexts leased to exactly one job at a time.

package api

// BytePool provides reusable []byte buffers sized to the current target.
type BytePool interface {
	// Get returns a buffer whose length equals its capacity and is at least
	// the pool's target size.
	Get() ([]byte, error)

	// Release returns a buffer to the pool; it must not be used afterwards.
	Release(buf []byte)

	// Stats exposes resource/accounting metrics for observability.
	Stats() PoolStats
}

// ObjectPool provides generic pooling of expensive objects.
type ObjectPool[T any] interface {
	// Get returns an available instance from pool, creating one if needed.
	Get() (T, error)

	// Release returns an instance for reuse.
	Release(obj T)
}

// PoolStats aggregates allocation/reuse stats of one pool.
type PoolStats struct {
	Leased     int   // objects currently held by jobs
	Idle       int   // objects parked in the pool
	Max        int   // bound on Leased+Idle
	TargetSize int   // current target size (bytes or records), 0 for contexts
	TotalAlloc int64 // fresh allocations
	TotalReuse int64 // leases served from the idle list
	Discarded  int64 // objects dropped instead of recycled
}
