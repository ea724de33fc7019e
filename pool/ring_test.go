// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

// ring_test.go — sizing and masking of the sequence-addressed ring.
package pool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-zstd/pool"
)

func TestNextPow2(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 6: 8, 8: 8, 9: 16}
	for in, want := range cases {
		assert.Equal(t, want, pool.NextPow2(in), "NextPow2(%d)", in)
	}
}

func TestRing_MaskingAndFull(t *testing.T) {
	type slot struct{ seq uint64 }
	r := pool.NewRing[slot](4+2, func(s *slot) { s.seq = ^uint64(0) })
	assert.Equal(t, 8, r.Cap())
	assert.Equal(t, ^uint64(0), r.At(3).seq)

	for seq := uint64(0); seq < 8; seq++ {
		assert.False(t, r.Full(seq, 0))
		r.At(seq).seq = seq
	}
	assert.True(t, r.Full(8, 0))
	assert.False(t, r.Full(8, 1))
	assert.Same(t, r.At(0), r.At(8))

	var seen []uint64
	r.Each(2, 5, func(seq uint64, s *slot) { seen = append(seen, s.seq) })
	assert.Equal(t, []uint64{2, 3, 4}, seen)
}
