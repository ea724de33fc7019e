// Package pool
// Author: momentics <momentics@gmail.com>
//
// Bounded, lock-protected pools for the resources a compression job leases:
// destination buffers, per-worker compression contexts and long-distance
// match sequence buffers, plus the power-of-two Ring that holds job slots.
// A leased object belongs to exactly one job until it is released; the pool
// keeps no reference to it in the meantime.
// See bufferpool.go, ctxpool.go, seqpool.go, ring.go for implementation details.
package pool
