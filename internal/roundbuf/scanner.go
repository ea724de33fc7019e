// File: internal/roundbuf/scanner.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Content-defined job boundaries. A polynomial rolling hash runs over a
// 32-byte window of staged input; a job is cut right after any position
// where the low bits of the hash are all ones, once the job holds at least
// 128 KiB. Boundaries then depend on content only, so a small edit upstream
// moves at most the neighbouring cuts.

package roundbuf

import "math/bits"

const (
	// SyncWindow is the rolling hash window length.
	SyncWindow = 32
	// MinSyncBlock is the smallest job a sync point may cut.
	MinSyncBlock = 128 << 10

	hashPrime  = 0xCF1BBCDCB7A56463
	charOffset = 10
)

// primePower is hashPrime^(SyncWindow-1), the weight of the byte leaving
// the window.
var primePower = func() uint64 {
	p := uint64(1)
	for i := 0; i < SyncWindow-1; i++ {
		p *= hashPrime
	}
	return p
}()

func hashAppend(h uint64, buf []byte) uint64 {
	for _, c := range buf {
		h = h*hashPrime + uint64(c) + charOffset
	}
	return h
}

func hashRotate(h uint64, out, in byte) uint64 {
	h -= (uint64(out) + charOffset) * primePower
	h *= hashPrime
	return h + uint64(in) + charOffset
}

// SyncPoint tells the engine how many input bytes to stage and whether the
// job must be cut right after them.
type SyncPoint struct {
	ToLoad int
	Flush  bool
}

// Scanner finds sync points. The zero value is disabled.
type Scanner struct {
	enabled bool
	hitMask uint64
}

// NewScanner derives the hit mask from the job size: one expected hit per
// job-sized stretch of random input.
func NewScanner(jobSize int, enabled bool) Scanner {
	if !enabled {
		return Scanner{}
	}
	kb := uint32(jobSize >> 10)
	rbits := bits.Len32(kb) - 1 + 10
	return Scanner{enabled: true, hitMask: (uint64(1) << rbits) - 1}
}

// Enabled reports whether content-defined cuts are on.
func (s Scanner) Enabled() bool { return s.enabled }

// HitMask exposes the boundary mask.
func (s Scanner) HitMask() uint64 { return s.hitMask }

// Find scans input as the continuation of staged, the bytes already loaded
// for the current job, which may take up to target bytes in total.
func (s Scanner) Find(staged, input []byte, target int) SyncPoint {
	filled := len(staged)
	sp := SyncPoint{ToLoad: min(len(input), target-filled)}
	if !s.enabled {
		return sp
	}
	if filled+len(input) < MinSyncBlock || filled+sp.ToLoad < SyncWindow {
		return sp
	}

	var (
		pos  int
		prev []byte // SyncWindow bytes preceding input[0]
		h    uint64
	)
	if filled < MinSyncBlock {
		pos = MinSyncBlock - filled
		if pos >= SyncWindow {
			h = hashAppend(0, input[pos-SyncWindow:pos])
		} else {
			prev = staged[filled-SyncWindow:]
			h = hashAppend(0, prev[pos:])
			h = hashAppend(h, input[:pos])
		}
	} else {
		prev = staged[filled-SyncWindow:]
		h = hashAppend(0, prev)
		if h&s.hitMask == s.hitMask {
			// the staged bytes already end on a boundary
			return SyncPoint{ToLoad: 0, Flush: true}
		}
	}
	for ; pos < sp.ToLoad; pos++ {
		var out byte
		if pos < SyncWindow {
			out = prev[pos]
		} else {
			out = input[pos-SyncWindow]
		}
		h = hashRotate(h, out, input[pos])
		if h&s.hitMask == s.hitMask {
			return SyncPoint{ToLoad: pos + 1, Flush: true}
		}
	}
	return sp
}
