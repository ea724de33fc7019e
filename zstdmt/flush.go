// File: zstdmt/flush.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Output side of the engine: jobs are drained strictly in id order, each
// one as far as the caller's buffer allows, and retired once fully copied.

package zstdmt

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/momentics/hioload-zstd/api"
	"github.com/momentics/hioload-zstd/internal/roundbuf"
)

// flushProduced copies finished bytes of the oldest jobs into out. With
// block set it first waits until the oldest job has something new, which
// keeps a caller without input progress from spinning.
func (e *Engine) flushProduced(out *api.OutBuffer, block bool, end api.EndDirective) (int, error) {
	for e.doneJobID < e.nextJobID {
		j := e.jobs.At(e.doneJobID)
		j.mu.Lock()
		if block {
			for j.flushed == j.cSize && !j.done {
				e.metrics.FlushWaits.Inc()
				j.cond.Wait()
			}
			block = false
		}
		if j.err != nil {
			err := j.err
			j.mu.Unlock()
			return 0, e.fail(err)
		}
		if j.done && j.checksumNeeded {
			j.dst = binary.LittleEndian.AppendUint32(j.dst[:j.cSize], e.serial.Checksum())
			j.dst = j.dst[:cap(j.dst)]
			j.cSize += 4
			j.checksumNeeded = false
		}
		done, cSize, dst := j.done, j.cSize, j.dst
		j.mu.Unlock()

		n := copy(out.Dst[out.Pos:], dst[j.flushed:cSize])
		out.Pos += n
		j.flushed += n
		if !done || j.flushed < cSize {
			return max(cSize-j.flushed, 1), nil
		}
		e.retire(j)
	}

	if e.jobReady || e.filled > 0 {
		return 1, nil
	}
	if e.frameEnded {
		if !e.allJobsCompleted {
			e.allJobsCompleted = true
			e.logger.Debug("frame completed",
				zap.Uint64("jobs", e.nextJobID),
				zap.Uint64("in", e.consumed),
				zap.Uint64("out", e.produced))
		}
		return 0, nil
	}
	if end == api.End {
		return 1, nil
	}
	return 0, nil
}

// retire releases a fully flushed job and moves on to the next id.
func (e *Engine) retire(j *job) {
	j.mu.Lock()
	dst := j.dst
	j.dst = nil
	j.mu.Unlock()
	e.bufPool.Release(dst)

	e.consumed += uint64(j.src.Len)
	e.produced += uint64(j.cSize)
	e.doneJobID++
	e.retired.Store(e.doneJobID)

	e.metrics.JobsCompleted.Inc()
	e.metrics.BytesConsumed.Add(float64(j.src.Len))
	e.metrics.BytesProduced.Add(float64(j.cSize))
	e.metrics.InFlight.Set(float64(e.nextJobID - e.doneJobID))
	e.logger.Debug("job flushed", zap.Uint64("job", j.id), zap.Int("size", j.cSize))
}

// fail aborts the frame and makes err sticky until Init or Reset.
func (e *Engine) fail(err error) error {
	e.drain()
	e.err = err
	e.logger.Error("frame aborted", zap.Error(err))
	return err
}

// drain waits for every submitted job, releases what the frame holds and
// leaves the engine between frames.
func (e *Engine) drain() {
	last := e.nextJobID
	if e.jobReady {
		// built but never submitted: nothing runs in its slot
		last++
	}
	e.jobs.Each(e.doneJobID, e.nextJobID, func(_ uint64, j *job) { j.waitDone() })
	e.jobs.Each(e.doneJobID, last, func(_ uint64, j *job) {
		j.mu.Lock()
		dst := j.dst
		j.dst = nil
		j.mu.Unlock()
		if dst != nil {
			e.bufPool.Release(dst)
		}
	})
	if e.doneJobID < e.nextJobID {
		e.logger.Debug("frame abandoned",
			zap.Uint64("from", e.doneJobID),
			zap.Uint64("to", e.nextJobID))
	}
	e.doneJobID = e.nextJobID
	e.retired.Store(e.doneJobID)
	e.metrics.InFlight.Set(0)
	e.jobReady = false
	e.in, e.prefix, e.filled = roundbuf.Range{}, roundbuf.Range{}, 0
	e.frameStarted, e.frameEnded, e.allJobsCompleted = false, false, false
}
