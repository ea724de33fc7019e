// File: api/compressor.go
// Author: momentics <momentics@gmail.com>
//
// Contract of the single-job compressor the orchestration core drives.
// Implementations must not touch cross-job state: checksums and the
// long-distance index are applied by the engine in job order.

package api

// SessionParams is the per-job snapshot handed to Context.Begin.
type SessionParams struct {
	// FirstJob jobs emit the frame header before their first block.
	FirstJob bool
	// LastJob jobs terminate the frame with a last-block flag.
	LastJob bool
	// WindowLog bounds match distance and block size.
	WindowLog int
	// Level is an opaque effort hint for the implementation.
	Level int
	// Checksum announces a trailing content checksum in the frame header.
	Checksum bool
	// ContentSize is the whole frame's pledged size, or -1 when unknown.
	ContentSize int64
}

// Compressor creates independent single-job contexts.
type Compressor interface {
	// NewContext allocates a context; this may be expensive.
	NewContext() (Context, error)
}

// Context compresses one job's byte range at a time. A context is used by
// a single goroutine between Begin and the final CompressEnd/CompressContinue.
type Context interface {
	// Begin starts a session over a job. prefix holds the bytes that precede
	// the job in the stream and may be referenced by matches.
	Begin(prefix []byte, params SessionParams, pledgedSize int64) error

	// ReferenceSequences hands long-distance matches found for the job.
	ReferenceSequences(seqs []RawSeq) error

	// CompressContinue compresses src into dst as non-final blocks and
	// returns the number of bytes written.
	CompressContinue(dst, src []byte) (int, error)

	// CompressEnd compresses src into dst and closes the frame with a last block.
	CompressEnd(dst, src []byte) (int, error)
}

// BoundedCompressor reports the worst-case output size for a job,
// including the frame header and checksum, however the job is split into
// compress calls.
type BoundedCompressor interface {
	Compressor
	CompressBound(srcSize, windowLog int) int
}
