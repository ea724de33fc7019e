// File: codec/compressor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Compressor is the default single-job collaborator of the parallel engine.
// It writes standard Zstandard blocks; the first job of a frame also writes
// the frame header. The content checksum is left to the caller.

package codec

import (
	"unsafe"

	"github.com/klauspost/compress/huff0"

	"github.com/momentics/hioload-zstd/api"
)

// Compressor creates independent contexts. It holds no mutable state and
// is safe for concurrent use.
type Compressor struct{}

// New returns the default compressor.
func New() *Compressor { return &Compressor{} }

// NewContext implements api.Compressor.
func (c *Compressor) NewContext() (api.Context, error) {
	return &Context{scratch: &huff0.Scratch{}}, nil
}

// CompressBound implements api.BoundedCompressor.
func (c *Compressor) CompressBound(n, windowLog int) int { return CompressBound(n, windowLog) }

// Stats accumulates what a context produced since Begin.
type Stats struct {
	BytesIn        int64
	BytesOut       int64
	RawBlocks      int64
	RLEBlocks      int64
	CompBlocks     int64
	PrefixBytes    int
	ReferencedSeqs int
	Pledged        int64
}

// Context compresses one job at a time. It is not safe for concurrent use.
type Context struct {
	scratch *huff0.Scratch
	params  api.SessionParams
	pledged int64

	blockSize     int
	headerPending bool
	ended         bool
	began         bool

	blocks blockStats
	stats  Stats
}

// Begin implements api.Context. The prefix is accepted for window
// continuity; the literal coder has no match finder to feed it to.
// pledgedSize is recorded only; the engine enforces it.
func (c *Context) Begin(prefix []byte, params api.SessionParams, pledgedSize int64) error {
	hdr := FrameHeader{WindowLog: params.WindowLog, Checksum: params.Checksum, ContentSize: params.ContentSize}
	if err := hdr.Validate(); err != nil {
		return api.Wrap(api.ErrCodeInvalidParameter, "codec: bad session", err)
	}
	c.params = params
	c.pledged = pledgedSize
	c.blockSize = BlockSizeFor(params.WindowLog)
	c.headerPending = params.FirstJob
	c.ended = false
	c.began = true
	c.blocks = blockStats{}
	c.stats = Stats{PrefixBytes: len(prefix)}
	return nil
}

// ReferenceSequences implements api.Context.
func (c *Context) ReferenceSequences(seqs []api.RawSeq) error {
	c.stats.ReferencedSeqs += len(seqs)
	return nil
}

// CompressContinue implements api.Context.
func (c *Context) CompressContinue(dst, src []byte) (int, error) {
	return c.compress(dst, src, false)
}

// CompressEnd implements api.Context. It closes the frame with a last
// block; an empty src yields an empty raw last block.
func (c *Context) CompressEnd(dst, src []byte) (int, error) {
	return c.compress(dst, src, true)
}

// bound is the most bytes compress may write for n input bytes.
func (c *Context) bound(n int) int {
	b := n + (n/c.blockSize+1)*BlockHeaderSize
	if c.headerPending {
		b += MaxFrameHeaderSize
	}
	return b
}

func (c *Context) compress(dst, src []byte, last bool) (int, error) {
	if !c.began {
		return 0, api.NewError(api.ErrCodeProtocolViolation, "codec: compress before Begin")
	}
	if c.ended {
		return 0, api.NewError(api.ErrCodeProtocolViolation, "codec: compress after end of frame")
	}
	if need := c.bound(len(src)); len(dst) < need {
		return 0, api.ErrDstTooSmall.WithContext("need", need).WithContext("have", len(dst))
	}

	out := dst[:0]
	if c.headerPending {
		out = FrameHeader{
			WindowLog:   c.params.WindowLog,
			Checksum:    c.params.Checksum,
			ContentSize: c.params.ContentSize,
		}.AppendTo(out)
		c.headerPending = false
	}

	var err error
	emptyEnd := last && len(src) == 0
	for len(src) > 0 {
		n := min(len(src), c.blockSize)
		out, err = encodeBlock(out, src[:n], last && n == len(src), c.scratch, &c.blocks)
		if err != nil {
			return 0, api.Wrap(api.ErrCodeCompressorFailure, "codec: block", err)
		}
		c.stats.BytesIn += int64(n)
		src = src[n:]
	}
	if emptyEnd {
		out = AppendLastEmptyBlock(out)
	}
	if last {
		c.ended = true
	}
	if cap(out) != cap(dst) {
		return 0, api.NewError(api.ErrCodeInternal, "codec: output escaped destination buffer")
	}
	c.stats.BytesOut += int64(len(out))
	return len(out), nil
}

// Stats returns a snapshot of the context counters.
func (c *Context) Stats() Stats {
	s := c.stats
	s.RawBlocks, s.RLEBlocks, s.CompBlocks = c.blocks.Raw, c.blocks.RLE, c.blocks.Compressed
	s.Pledged = c.pledged
	return s
}

// SizeOf reports memory held by the context.
func (c *Context) SizeOf() int {
	return int(unsafe.Sizeof(*c)) + int(unsafe.Sizeof(*c.scratch)) + cap(c.scratch.Out)
}

var (
	_ api.BoundedCompressor = (*Compressor)(nil)
	_ api.Context           = (*Context)(nil)
)
