// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package serial

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-zstd/api"
	"github.com/momentics/hioload-zstd/internal/ldm"
)

func chunks(seed int64, n, size int) [][]byte {
	r := rand.New(rand.NewSource(seed))
	out := make([][]byte, n)
	for i := range out {
		out[i] = make([]byte, size)
		r.Read(out[i])
	}
	return out
}

func recorder() (Observer, func() []uint64) {
	var mu sync.Mutex
	var order []uint64
	return func(id uint64, _ int) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}, func() []uint64 {
			mu.Lock()
			defer mu.Unlock()
			return append([]uint64(nil), order...)
		}
}

func TestApply_OrderedDespiteReverseArrival(t *testing.T) {
	s := New()
	s.Reset(true, nil)
	obs, order := recorder()
	s.SetObserver(obs)

	data := chunks(1, 3, 1000)
	var wg sync.WaitGroup
	// job 1 arrives first, then job 2, then job 0
	for _, id := range []uint64{1, 2, 0} {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			s.Apply(id, data[id], nil)
			s.EnsureFinished(id)
		}(id)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []uint64{0, 1, 2}, order())
	assert.EqualValues(t, 3, s.Next())

	want := xxhash.New()
	for _, d := range data {
		_, _ = want.Write(d)
	}
	assert.Equal(t, uint32(want.Sum64()), s.Checksum())
}

func TestApply_ChecksumDeterministicUnderShuffle(t *testing.T) {
	data := chunks(2, 16, 4096)
	want := xxhash.New()
	for _, d := range data {
		_, _ = want.Write(d)
	}

	for round := 0; round < 5; round++ {
		s := New()
		s.Reset(true, nil)
		ids := rand.New(rand.NewSource(int64(round))).Perm(len(data))
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				s.Apply(id, data[id], nil)
				s.EnsureFinished(id)
			}(uint64(id))
		}
		wg.Wait()
		require.Equal(t, uint32(want.Sum64()), s.Checksum(), "round %d", round)
	}
}

func TestEnsureFinished_SkipsFailedJob(t *testing.T) {
	s := New()
	s.Reset(false, nil)
	obs, order := recorder()
	s.SetObserver(obs)

	done := make(chan struct{})
	go func() {
		s.Apply(1, []byte("b"), nil)
		s.EnsureFinished(1)
		close(done)
	}()
	// job 0 fails before reaching Apply
	s.EnsureFinished(0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job 1 stuck behind a failed job")
	}
	assert.Equal(t, []uint64{1}, order())
	assert.EqualValues(t, 2, s.Next())
}

func TestApply_NoDoubleApply(t *testing.T) {
	s := New()
	s.Reset(true, nil)
	var calls [8]int
	var mu sync.Mutex
	s.SetObserver(func(id uint64, _ int) {
		mu.Lock()
		calls[id]++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for id := uint64(0); id < 8; id++ {
		wg.Add(2)
		go func(id uint64) {
			defer wg.Done()
			s.Apply(id, []byte{byte(id)}, nil)
		}(id)
		go func(id uint64) {
			defer wg.Done()
			s.EnsureFinished(id)
		}(id)
	}
	wg.Wait()
	// a second Apply after the turn passed is a no-op
	s.Apply(3, []byte{3}, nil)

	for id, n := range calls {
		assert.LessOrEqual(t, n, 1, "job %d", id)
	}
	assert.EqualValues(t, 8, s.Next())
}

func TestApply_GeneratesLongDistanceMatches(t *testing.T) {
	index, err := ldm.New(ldm.Params{WindowLog: 20, MinMatch: 32})
	require.NoError(t, err)
	s := New()
	s.Reset(false, index)

	block := chunks(3, 1, 32<<10)[0]
	seqs := s.Apply(0, block, make([]api.RawSeq, 0, 16))
	assert.Empty(t, seqs)
	s.EnsureFinished(0)

	seqs = s.Apply(1, block, make([]api.RawSeq, 0, ldm.MaxSeqs(len(block), 32)))
	s.EnsureFinished(1)
	require.NotEmpty(t, seqs)
	assert.EqualValues(t, len(block), seqs[0].Offset)
	assert.Greater(t, s.SizeOf(), index.SizeOf()-1)

	s.WaitWindowClear()
	s.Reset(false, index)
	assert.EqualValues(t, 0, index.Pos())
	assert.EqualValues(t, 0, s.Next())
}

func TestChecksum_ReadableWhileApplying(t *testing.T) {
	s := New()
	s.Reset(true, nil)
	parts := chunks(11, 64, 256<<10)

	// every value a reader may see is a checksum of some applied prefix
	valid := map[uint32]bool{uint32(xxhash.New().Sum64()): true}
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
		valid[uint32(d.Sum64())] = true
	}

	stop := make(chan struct{})
	var seen []uint32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if c := s.Checksum(); len(seen) == 0 || seen[len(seen)-1] != c {
					seen = append(seen, c)
				}
			}
		}
	}()
	for i, p := range parts {
		s.Apply(uint64(i), p, nil)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, uint32(d.Sum64()), s.Checksum())
	for _, c := range seen {
		assert.True(t, valid[c], "checksum %08x is not of an applied prefix", c)
	}
}
