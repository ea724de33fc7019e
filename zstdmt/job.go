// File: zstdmt/job.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A job is one section of the frame compressed by one worker. Job slots
// live in a ring and are reused; the engine fills a slot before submission
// and only reads it afterwards, under the slot mutex, while the worker
// publishes progress chunk by chunk.

package zstdmt

import (
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/hioload-zstd/api"
	"github.com/momentics/hioload-zstd/internal/roundbuf"
)

type job struct {
	mu   sync.Mutex
	cond *sync.Cond

	// set by the engine before submission, read-only while running
	id      uint64
	src     roundbuf.Range
	prefix  roundbuf.Range
	params  api.SessionParams
	pledged int64

	// guarded by mu
	dst      []byte
	cSize    int   // bytes of dst produced
	consumed int   // bytes of src compressed
	done     bool  // worker finished, successfully or not
	err      error // first failure

	// engine only
	flushed        int
	checksumNeeded bool
}

func initJob(j *job) {
	j.cond = sync.NewCond(&j.mu)
}

// reset prepares a slot for a new job. The slot must be idle.
func (j *job) reset(id uint64) {
	j.mu.Lock()
	j.id = id
	j.src, j.prefix = roundbuf.Range{}, roundbuf.Range{}
	j.params = api.SessionParams{}
	j.pledged = 0
	j.dst = nil
	j.cSize, j.consumed = 0, 0
	j.done = false
	j.err = nil
	j.flushed = 0
	j.checksumNeeded = false
	j.mu.Unlock()
}

// publish records progress and wakes the flushing caller.
func (j *job) publish(produced, consumed int) {
	j.mu.Lock()
	j.cSize += produced
	j.consumed += consumed
	j.cond.Broadcast()
	j.mu.Unlock()
}

// finish marks the job complete with err, which may be nil.
func (j *job) finish(err error) {
	j.mu.Lock()
	if err != nil && j.err == nil {
		j.err = err
	}
	j.done = true
	j.cond.Broadcast()
	j.mu.Unlock()
}

// waitDone blocks until the worker has finished with the slot.
func (j *job) waitDone() {
	j.mu.Lock()
	for !j.done {
		j.cond.Wait()
	}
	j.mu.Unlock()
}

// runJob is the worker body. It never panics past the executor: a failure
// of any step is stored in the slot for the flushing caller.
func (e *Engine) runJob(j *job) {
	var (
		cctx    api.Context
		seqs    []api.RawSeq
		haveCtx bool
		err     error
	)
	defer func() {
		if r := recover(); r != nil {
			err = api.NewError(api.ErrCodeInternal, "job panicked").
				WithContext("job", j.id).
				WithContext("panic", fmt.Sprint(r))
			e.logger.Error("job panicked", zap.Uint64("job", j.id),
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
		if haveCtx {
			e.ctxPool.Release(cctx)
		}
		if seqs != nil {
			e.seqPool.Release(seqs)
		}
		e.serial.EnsureFinished(j.id)
		if err != nil {
			e.metrics.JobsFailed.Inc()
			e.logger.Error("job failed", zap.Uint64("job", j.id), zap.Error(err))
		} else {
			e.logger.Debug("job compressed", zap.Uint64("job", j.id),
				zap.Int("src", j.src.Len), zap.Int("prefix", j.prefix.Len))
		}
		j.finish(err)
	}()

	if cctx, err = e.ctxPool.Get(); err != nil {
		return
	}
	haveCtx = true
	if seqs, err = e.seqPool.Get(); err != nil {
		return
	}

	src := e.round.Bytes(j.src)
	seqs = e.serial.Apply(j.id, src, seqs)

	dst, err := e.bufPool.Get()
	if err != nil {
		return
	}
	j.mu.Lock()
	j.dst = dst
	j.mu.Unlock()

	if err = cctx.Begin(e.round.Bytes(j.prefix), j.params, j.pledged); err != nil {
		err = collaboratorError(fmt.Sprintf("job %d: begin", j.id), err)
		return
	}
	if len(seqs) > 0 {
		if err = cctx.ReferenceSequences(seqs); err != nil {
			err = collaboratorError(fmt.Sprintf("job %d: sequences", j.id), err)
			return
		}
	}

	written := 0
	for off := 0; off < len(src) || off == 0; {
		n := min(chunkSize, len(src)-off)
		chunk := src[off : off+n]
		last := off+n == len(src)
		var out int
		if last && j.params.LastJob {
			out, err = cctx.CompressEnd(dst[written:], chunk)
		} else {
			out, err = cctx.CompressContinue(dst[written:], chunk)
		}
		if err != nil {
			err = collaboratorError(fmt.Sprintf("job %d: compress at %d", j.id, off), err)
			return
		}
		written += out
		off += n
		j.publish(out, n)
		if last {
			break
		}
	}
}

// collaboratorError tags an uncoded collaborator error as a compressor
// failure. Errors that already carry a code keep it.
func collaboratorError(msg string, err error) error {
	code := api.CodeOf(err)
	if code == api.ErrCodeInternal {
		code = api.ErrCodeCompressorFailure
	}
	return api.Wrap(code, msg, err)
}
