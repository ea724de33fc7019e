// Package zstdmt
// Author: momentics <momentics@gmail.com>
//
// Multi-threaded streaming compression into a single Zstandard frame.
//
// The engine stages caller input in a round buffer, cuts it into jobs
// (optionally at content-defined rsync boundaries), hands each job to a
// worker with the tail of its predecessor as prefix, and flushes the
// compressed jobs back in order. Ordered side effects, the frame checksum
// and the long-distance match index, run through a serial gate so they see
// the stream exactly once and in order, whatever the scheduling.
package zstdmt
