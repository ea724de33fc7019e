// File: internal/roundbuf/roundbuf.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffer is the circular staging area for input that has not yet become a
// job. The engine is its only writer; running jobs read their own ranges.
// Jobs are laid out back to back, so the prefix of the next job is always
// the tail of the previous one and sits right before the write cursor.

package roundbuf

import "fmt"

// Range addresses bytes of a Buffer by offset.
type Range struct {
	Start int
	Len   int
}

// End returns the offset one past the range.
func (r Range) End() int { return r.Start + r.Len }

// Overlaps reports whether r and o share a byte.
func (r Range) Overlaps(o Range) bool {
	if r.Len == 0 || o.Len == 0 {
		return false
	}
	return r.Start < o.End() && o.Start < r.End()
}

// Capacity sizes a buffer that lets every worker hold a job while the
// engine stages the next one. window is the long-distance match reach, or
// 0 when matching is off.
func Capacity(jobSize, workers, prefixSize, window int) int {
	slack := 2
	if prefixSize > 0 {
		slack++
	}
	sections := jobSize * max(workers, 1)
	return max(window, sections) + jobSize*slack
}

// Buffer is not safe for concurrent writes.
type Buffer struct {
	data []byte
	pos  int
}

// New allocates a buffer of capacity bytes.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Grow makes room for capacity bytes, reallocating only when larger. It
// must only be called while no job references the buffer.
func (b *Buffer) Grow(capacity int) {
	if capacity > len(b.data) {
		b.data = make([]byte, capacity)
	}
	b.pos = 0
}

// Cap returns the buffer size.
func (b *Buffer) Cap() int { return len(b.data) }

// Pos returns the write cursor.
func (b *Buffer) Pos() int { return b.pos }


// Bytes returns the slice addressed by r.
func (b *Buffer) Bytes(r Range) []byte {
	return b.data[r.Start:r.End():r.End()]
}

// Guard tells Reserve whether a range is still read by a job, and waits
// for ordered indexing that may be reading staged bytes.
type Guard interface {
	InUse(r Range) bool
	WaitIndexing()
}

// Reserve finds room for target bytes after prefix. When the tail of the
// buffer is too short, the prefix is moved to offset 0 first. It returns
// ok == false when a running job still reads the bytes that would be
// overwritten; the caller retries later with the returned prefix. A refusal
// after the move leaves the cursor just past the relocated prefix.
func (b *Buffer) Reserve(prefix Range, target int, g Guard) (in Range, newPrefix Range, ok bool, err error) {
	if prefix.Len+target > len(b.data) {
		return Range{}, prefix, false, fmt.Errorf("roundbuf: %d bytes do not fit in %d", prefix.Len+target, len(b.data))
	}
	newPrefix = prefix
	if len(b.data)-b.pos < target {
		front := Range{Start: 0, Len: prefix.Len + target}
		if g.InUse(front) {
			return Range{}, prefix, false, nil
		}
		g.WaitIndexing()
		copy(b.data[:prefix.Len], b.data[prefix.Start:prefix.End()])
		newPrefix = Range{Start: 0, Len: prefix.Len}
		b.pos = prefix.Len
	}
	in = Range{Start: b.pos, Len: target}
	if g.InUse(in) {
		// a relocated prefix stays valid: it now sits right before pos
		return Range{}, newPrefix, false, nil
	}
	g.WaitIndexing()
	return in, newPrefix, true, nil
}

// Advance moves the cursor past n staged bytes that became a job.
func (b *Buffer) Advance(n int) {
	b.pos += n
}
