// File: internal/ldm/ldm.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Long-distance match index. One Index covers a whole frame: every job's
// bytes are fed to Generate strictly in stream order, which both searches
// the table for matches reaching back up to one window and inserts the
// job's own anchors. Anchors are chosen by a gear rolling hash; candidate
// positions are keyed and verified by an xxh3 fingerprint of MinMatch bytes.
// The index keeps a private copy of the last window of input, so the
// caller may reuse its buffers as soon as Generate returns.

package ldm

import (
	"fmt"
	"unsafe"

	"github.com/zeebo/xxh3"

	"github.com/momentics/hioload-zstd/api"
)

const (
	MinMatchMin = 4
	MinMatchMax = 4096

	DefaultMinMatch  = 64
	DefaultBucketLog = 3
	defaultHashRate  = 7
	maxWindowLog     = 27
	minHashLog       = 6
	maxHashLog       = 30
	bucketLogMax     = 8
)

// Params configures an Index.
type Params struct {
	WindowLog int // match reach, capped at 2^27
	HashLog   int // 0 = WindowLog-7
	MinMatch  int // 0 = DefaultMinMatch
	BucketLog int // 0 = DefaultBucketLog
}

// withDefaults fills zero fields and validates ranges.
func (p Params) withDefaults() (Params, error) {
	if p.WindowLog <= 0 {
		return p, fmt.Errorf("ldm: window log %d", p.WindowLog)
	}
	if p.WindowLog > maxWindowLog {
		p.WindowLog = maxWindowLog
	}
	if p.HashLog == 0 {
		p.HashLog = p.WindowLog - defaultHashRate
	}
	if p.HashLog < minHashLog {
		p.HashLog = minHashLog
	}
	if p.HashLog > maxHashLog {
		return p, fmt.Errorf("ldm: hash log %d out of range", p.HashLog)
	}
	if p.MinMatch == 0 {
		p.MinMatch = DefaultMinMatch
	}
	if p.MinMatch < MinMatchMin || p.MinMatch > MinMatchMax {
		return p, fmt.Errorf("ldm: min match %d out of range", p.MinMatch)
	}
	if p.BucketLog == 0 {
		p.BucketLog = DefaultBucketLog
	}
	if p.BucketLog > bucketLogMax || p.BucketLog > p.HashLog {
		p.BucketLog = min(bucketLogMax, p.HashLog)
	}
	return p, nil
}

// MaxSeqs is the most sequences one job of jobSize bytes can yield.
func MaxSeqs(jobSize, minMatch int) int {
	if minMatch <= 0 {
		minMatch = DefaultMinMatch
	}
	return jobSize/minMatch + 1
}

type entry struct {
	offset uint64 // absolute stream position of the fingerprinted bytes
	check  uint32
}

// Index is not safe for concurrent use; callers serialize access.
type Index struct {
	p Params

	window uint64
	hist   []byte
	hmask  uint64
	block  int

	table    []entry
	next     []uint8 // per-bucket round-robin insert cursor
	stopMask uint64
	gear     [256]uint64

	pos      uint64 // bytes indexed so far
	hash     uint64 // rolling gear state
	inserted int64
	matched  int64
}

// New creates an Index.
func New(p Params) (*Index, error) {
	p, err := p.withDefaults()
	if err != nil {
		return nil, err
	}
	x := &Index{p: p}
	x.window = 1 << p.WindowLog
	histSize := nextPow2(2 * (int(x.window) + p.MinMatch))
	x.hist = make([]byte, histSize)
	x.hmask = uint64(histSize - 1)
	x.block = histSize - int(x.window) - p.MinMatch

	x.table = make([]entry, 1<<p.HashLog)
	x.next = make([]uint8, 1<<(p.HashLog-p.BucketLog))
	if rate := p.WindowLog - p.HashLog; rate > 0 {
		x.stopMask = ((uint64(1) << rate) - 1) << (64 - rate)
	}
	var seed [1]byte
	for i := range x.gear {
		seed[0] = byte(i)
		x.gear[i] = xxh3.Hash(seed[:])
	}
	return x, nil
}

// Params returns the effective parameters.
func (x *Index) Params() Params { return x.p }

// Pos returns the number of stream bytes indexed since the last Reset.
func (x *Index) Pos() uint64 { return x.pos }

// Reset forgets all history for a new frame.
func (x *Index) Reset() {
	clear(x.table)
	clear(x.next)
	x.pos = 0
	x.hash = 0
	x.inserted = 0
	x.matched = 0
}

// Clear drops every table entry but keeps the stream position, so later
// jobs continue at the right offsets without referencing older bytes.
func (x *Index) Clear() {
	clear(x.table)
	clear(x.next)
	x.hash = 0
}

// Generate indexes src as the next bytes of the stream and appends the
// long-distance matches it finds to seqs, without growing seqs past its
// capacity. Offsets are distances back from the match start; literal
// lengths count from the end of the previous sequence or the start of src.
func (x *Index) Generate(src []byte, seqs []api.RawSeq) []api.RawSeq {
	last := x.pos
	for len(src) > 0 {
		n := min(len(src), x.block)
		seqs = x.indexBlock(src[:n], &last, seqs)
		src = src[n:]
	}
	return seqs
}

func (x *Index) indexBlock(src []byte, last *uint64, seqs []api.RawSeq) []api.RawSeq {
	base := x.pos
	x.copyIn(base, src)
	end := base + uint64(len(src))
	mm := uint64(x.p.MinMatch)

	for i, b := range src {
		x.hash = (x.hash << 1) + x.gear[b]
		abs := base + uint64(i) + 1
		if x.hash&x.stopMask != 0 || abs < mm {
			continue
		}
		cur := abs - mm
		fp := x.fingerprint(cur)
		bucket, check := x.bucketOf(fp)
		if cur >= *last && len(seqs) < cap(seqs) {
			if cand, ok := x.lookup(bucket, check, cur); ok {
				length := x.extend(cand, cur, end)
				if length >= mm {
					seqs = append(seqs, api.RawSeq{
						Offset:      uint32(cur - cand),
						LitLength:   uint32(cur - *last),
						MatchLength: uint32(length),
					})
					*last = cur + length
					x.matched++
				}
			}
		}
		x.insert(bucket, entry{offset: cur, check: check})
	}
	x.pos = end
	return seqs
}

func (x *Index) copyIn(at uint64, src []byte) {
	for len(src) > 0 {
		off := int(at & x.hmask)
		n := copy(x.hist[off:], src)
		src = src[n:]
		at += uint64(n)
	}
}

func (x *Index) byteAt(abs uint64) byte { return x.hist[abs&x.hmask] }

// fingerprint hashes MinMatch bytes starting at abs.
func (x *Index) fingerprint(abs uint64) uint64 {
	off := int(abs & x.hmask)
	n := x.p.MinMatch
	if off+n <= len(x.hist) {
		return xxh3.Hash(x.hist[off : off+n])
	}
	var scratch [MinMatchMax]byte
	k := copy(scratch[:], x.hist[off:])
	copy(scratch[k:n], x.hist)
	return xxh3.Hash(scratch[:n])
}

func (x *Index) bucketOf(fp uint64) (int, uint32) {
	idx := int(fp>>(64-(x.p.HashLog-x.p.BucketLog))) << x.p.BucketLog
	return idx, uint32(fp)
}

func (x *Index) lookup(bucket int, check uint32, cur uint64) (uint64, bool) {
	var best uint64
	found := false
	for _, e := range x.table[bucket : bucket+1<<x.p.BucketLog] {
		if e.check != check || e.offset >= cur || cur-e.offset > x.window {
			continue
		}
		if !found || e.offset > best {
			best, found = e.offset, true
		}
	}
	return best, found
}

// extend counts equal bytes at cand and cur, stopping at end.
func (x *Index) extend(cand, cur, end uint64) uint64 {
	var n uint64
	for cur+n < end && x.byteAt(cand+n) == x.byteAt(cur+n) {
		n++
	}
	return n
}

func (x *Index) insert(bucket int, e entry) {
	b := bucket >> x.p.BucketLog
	slot := int(x.next[b]) & (1<<x.p.BucketLog - 1)
	x.table[bucket+slot] = e
	x.next[b]++
	x.inserted++
}

// Stats reports cumulative anchor insertions and emitted matches.
func (x *Index) Stats() (inserted, matched int64) {
	return x.inserted, x.matched
}

// SizeOf reports memory held by the index.
func (x *Index) SizeOf() int {
	return int(unsafe.Sizeof(*x)) + len(x.hist) + len(x.next) +
		len(x.table)*int(unsafe.Sizeof(entry{}))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
