// File: pool/seqpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SeqPool leases arrays of long-distance match records to jobs.

package pool

import "github.com/momentics/hioload-zstd/api"

// SeqPool is a slice pool sized in records. With a zero record budget
// (long-distance matching off) Get returns an empty handle without touching
// the pool.
type SeqPool struct {
	p *slicePool[api.RawSeq]
}

// NewSeqPool creates a pool of at most maxCount sequence arrays.
func NewSeqPool(maxCount int) *SeqPool {
	return &SeqPool{p: newSlicePool[api.RawSeq](maxCount, 0)}
}

// SetMaxSeqs sets the record capacity each leased array must offer.
func (sp *SeqPool) SetMaxSeqs(n int) { sp.p.setTarget(n) }

// MaxSeqs returns the current record capacity.
func (sp *SeqPool) MaxSeqs() int { return sp.p.targetSize() }

// Get returns an empty array with room for at least MaxSeqs records, or nil
// when MaxSeqs is zero.
func (sp *SeqPool) Get() ([]api.RawSeq, error) {
	if sp.p.targetSize() == 0 {
		return nil, nil
	}
	s, err := sp.p.get()
	if err != nil {
		return nil, err
	}
	return s[:0], nil
}

// Release returns seqs to the pool. A nil handle is ignored.
func (sp *SeqPool) Release(seqs []api.RawSeq) { sp.p.release(seqs) }

// Expand raises the array bound.
func (sp *SeqPool) Expand(maxCount int) { sp.p.expand(maxCount) }

// SizeOf reports bytes held by idle arrays plus bookkeeping.
func (sp *SeqPool) SizeOf() int { return sp.p.sizeOf() }

// Stats returns accounting with TargetSize in records.
func (sp *SeqPool) Stats() api.PoolStats { return sp.p.stats() }
