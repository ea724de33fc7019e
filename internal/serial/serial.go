// File: internal/serial/serial.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// State is the ordering gate between parallel jobs. Jobs run out of order,
// but the running frame checksum and the long-distance match index must see
// job bytes in submission order. Every job calls Apply once its input is
// known and EnsureFinished when it completes, successful or not.

package serial

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/momentics/hioload-zstd/api"
	"github.com/momentics/hioload-zstd/internal/ldm"
)

// Observer is told about each ordered side effect as it runs, under the
// gate. Used by diagnostics and tests.
type Observer func(jobID uint64, size int)

// State holds the ordered side effects of one frame.
type State struct {
	mu   sync.Mutex
	cond *sync.Cond

	next     uint64 // next job allowed to run its side effects
	indexing bool   // LDM or checksum work in progress outside the lock

	checksum bool
	digest   *xxhash.Digest // written only by the job holding the turn
	sum      uint64         // digest value after the last Apply, under mu
	index    *ldm.Index

	observer Observer
}

// New creates an idle gate.
func New() *State {
	s := &State{digest: xxhash.New()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Reset prepares the gate for a new frame. index may be nil when long
// distance matching is off; it is reset here and owned by the gate until
// the next Reset.
func (s *State) Reset(checksum bool, index *ldm.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.indexing {
		s.cond.Wait()
	}
	s.next = 0
	s.checksum = checksum
	s.digest.Reset()
	s.sum = s.digest.Sum64()
	s.index = index
	if index != nil {
		index.Reset()
	}
	s.cond.Broadcast()
}

// SetObserver installs fn; nil removes it.
func (s *State) SetObserver(fn Observer) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Apply waits for job id's turn, then folds src into the checksum and, when
// the index is enabled, appends the job's long-distance matches to seqs.
// A job whose turn has already passed gets seqs back unchanged: the side
// effects run at most once per id.
func (s *State) Apply(id uint64, src []byte, seqs []api.RawSeq) []api.RawSeq {
	s.mu.Lock()
	for s.next < id {
		s.cond.Wait()
	}
	if s.next != id {
		s.mu.Unlock()
		return seqs
	}
	s.indexing = true
	index, checksum, observer := s.index, s.checksum, s.observer
	s.mu.Unlock()

	// Only the job holding the turn gets here, and the turn does not move
	// until indexing is cleared, so the index and digest need no lock.
	if index != nil {
		seqs = index.Generate(src, seqs)
	}
	if checksum {
		_, _ = s.digest.Write(src)
	}
	if observer != nil {
		observer(id, len(src))
	}

	s.mu.Lock()
	if checksum {
		s.sum = s.digest.Sum64()
	}
	s.indexing = false
	s.next = id + 1
	s.cond.Broadcast()
	s.mu.Unlock()
	return seqs
}

// EnsureFinished advances the gate past job id if Apply never completed for
// it. It still waits for id's turn so the ordering of later jobs holds. When
// it has to skip id, the match index is cleared: later jobs must not match
// against history the index never saw.
func (s *State) EnsureFinished(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next > id {
		return
	}
	for s.next < id || s.indexing {
		s.cond.Wait()
	}
	if s.next > id {
		return
	}
	s.next = id + 1
	if s.index != nil {
		s.index.Clear()
	}
	s.cond.Broadcast()
}

// WaitWindowClear blocks while a job is indexing. The round buffer calls it
// before overwriting staged bytes.
func (s *State) WaitWindowClear() {
	s.mu.Lock()
	for s.indexing {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// Next returns the id of the job whose side effects run next.
func (s *State) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Checksum returns the low 32 bits of the XXH64 of every byte applied so
// far, the value a zstd frame carries in its content checksum field.
func (s *State) Checksum() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(s.sum)
}

// SizeOf reports memory held by the gate, including the match index.
func (s *State) SizeOf() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 128
	if s.index != nil {
		n += s.index.SizeOf()
	}
	return n
}
