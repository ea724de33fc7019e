// File: pool/ring.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-size ring addressed by a monotonically increasing sequence number.
// The power-of-two size and the index masking live here so callers never
// touch a mask directly. Slots are not synchronized; each slot type carries
// its own lock.

package pool

// Ring holds len(slots) slots, a power of two.
type Ring[T any] struct {
	slots []T
	mask  uint64
}

// NextPow2 returns the smallest power of two >= n (1 for n <= 1).
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// NewRing allocates a ring of at least minSize slots, rounded up to a power
// of two. init, when non-nil, prepares every slot in place.
func NewRing[T any](minSize int, init func(*T)) *Ring[T] {
	size := NextPow2(minSize)
	r := &Ring[T]{
		slots: make([]T, size),
		mask:  uint64(size - 1),
	}
	if init != nil {
		for i := range r.slots {
			init(&r.slots[i])
		}
	}
	return r
}

// At returns the slot for sequence number seq.
func (r *Ring[T]) At(seq uint64) *T {
	return &r.slots[seq&r.mask]
}

// Full reports whether producing seq next would overwrite the slot of
// oldest, the first sequence number not yet retired.
func (r *Ring[T]) Full(seq, oldest uint64) bool {
	return seq > oldest+r.mask
}

// Each calls fn for the slots of sequence numbers [from, to).
func (r *Ring[T]) Each(from, to uint64, fn func(seq uint64, slot *T)) {
	for seq := from; seq < to; seq++ {
		fn(seq, r.At(seq))
	}
}

// Cap returns the number of slots.
func (r *Ring[T]) Cap() int {
	return len(r.slots)
}
