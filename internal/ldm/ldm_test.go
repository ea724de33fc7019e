// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package ldm

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-zstd/api"
)

func randomBytes(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

// replay rebuilds the stream covered by seqs from history and literals.
func verifySeqs(t *testing.T, stream []byte, jobStart int, seqs []api.RawSeq) {
	t.Helper()
	pos := jobStart
	for _, s := range seqs {
		pos += int(s.LitLength)
		require.Greater(t, int(s.Offset), 0)
		require.LessOrEqual(t, int(s.Offset), pos)
		for k := 0; k < int(s.MatchLength); k++ {
			require.Equal(t, stream[pos-int(s.Offset)+k], stream[pos+k], "match byte %d", k)
		}
		pos += int(s.MatchLength)
	}
	require.LessOrEqual(t, pos, len(stream))
}

func TestParamsDefaults(t *testing.T) {
	x, err := New(Params{WindowLog: 20})
	require.NoError(t, err)
	p := x.Params()
	assert.Equal(t, 13, p.HashLog)
	assert.Equal(t, DefaultMinMatch, p.MinMatch)
	assert.Equal(t, DefaultBucketLog, p.BucketLog)

	_, err = New(Params{WindowLog: 20, MinMatch: 2})
	assert.Error(t, err)
	_, err = New(Params{})
	assert.Error(t, err)
}

func TestGenerate_FindsRepeatAcrossJobs(t *testing.T) {
	x, err := New(Params{WindowLog: 20, MinMatch: 32})
	require.NoError(t, err)

	block := randomBytes(1, 64<<10)
	stream := append(append([]byte{}, block...), randomBytes(2, 32<<10)...)
	stream = append(stream, block...)

	job0 := stream[:96<<10]
	job1 := stream[96<<10:]

	seqs := x.Generate(job0, make([]api.RawSeq, 0, MaxSeqs(len(job0), 32)))
	assert.Empty(t, seqs, "random data has no long matches")

	seqs = x.Generate(job1, make([]api.RawSeq, 0, MaxSeqs(len(job1), 32)))
	require.NotEmpty(t, seqs)
	verifySeqs(t, stream, 96<<10, seqs)

	covered := 0
	for _, s := range seqs {
		covered += int(s.MatchLength)
		assert.EqualValues(t, 96<<10, s.Offset)
	}
	assert.Greater(t, covered, 60<<10)
	assert.EqualValues(t, len(stream), x.Pos())

	_, matched := x.Stats()
	assert.EqualValues(t, len(seqs), matched)
}

func TestGenerate_RespectsSeqCapacity(t *testing.T) {
	x, err := New(Params{WindowLog: 18, MinMatch: 16})
	require.NoError(t, err)
	unit := randomBytes(3, 4096)
	var stream []byte
	for i := 0; i < 16; i++ {
		stream = append(stream, unit...)
	}
	seqs := x.Generate(stream, make([]api.RawSeq, 0, 1))
	assert.Len(t, seqs, 1)
	verifySeqs(t, stream, 0, seqs)
}

func TestGenerate_WindowLimit(t *testing.T) {
	x, err := New(Params{WindowLog: 12, MinMatch: 16})
	require.NoError(t, err)
	unit := randomBytes(4, 1024)
	stream := append([]byte{}, unit...)
	stream = append(stream, randomBytes(5, 8192)...)
	stream = append(stream, unit...)

	seqs := x.Generate(stream, make([]api.RawSeq, 0, 64))
	for _, s := range seqs {
		assert.LessOrEqual(t, int(s.Offset), 1<<12)
	}
	verifySeqs(t, stream, 0, seqs)
}

func TestDeterministicAcrossSplits(t *testing.T) {
	unit := randomBytes(6, 20000)
	stream := bytes.Repeat(unit, 4)

	whole, err := New(Params{WindowLog: 17, MinMatch: 64})
	require.NoError(t, err)
	split, err := New(Params{WindowLog: 17, MinMatch: 64})
	require.NoError(t, err)

	all := whole.Generate(stream, make([]api.RawSeq, 0, 4096))
	verifySeqs(t, stream, 0, all)

	var parts []api.RawSeq
	for off := 0; off < len(stream); off += 10000 {
		got := split.Generate(stream[off:off+10000], make([]api.RawSeq, 0, 4096))
		verifySeqs(t, stream, off, got)
		parts = append(parts, got...)
	}
	assert.NotEmpty(t, parts)
	assert.Equal(t, whole.Pos(), split.Pos())
}

func TestResetAndClear(t *testing.T) {
	x, err := New(Params{WindowLog: 16, MinMatch: 16})
	require.NoError(t, err)
	unit := randomBytes(7, 2048)
	x.Generate(unit, nil)

	x.Clear()
	assert.EqualValues(t, 2048, x.Pos())
	seqs := x.Generate(unit, make([]api.RawSeq, 0, 16))
	assert.Empty(t, seqs, "cleared table forgets earlier anchors")

	x.Reset()
	assert.EqualValues(t, 0, x.Pos())
	inserted, matched := x.Stats()
	assert.Zero(t, inserted)
	assert.Zero(t, matched)
	assert.Greater(t, x.SizeOf(), 1<<16)
}
