// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package codec

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-zstd/api"
)

func decode(t *testing.T, frame []byte) []byte {
	t.Helper()
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	require.NoError(t, err)
	defer dec.Close()
	out, err := dec.DecodeAll(frame, nil)
	require.NoError(t, err)
	return out
}

func textLike(n int) []byte {
	words := []string{"alpha ", "beta ", "gamma ", "delta ", "epsilon\n", "zeta, "}
	r := rand.New(rand.NewSource(9))
	var b bytes.Buffer
	for b.Len() < n {
		b.WriteString(words[r.Intn(len(words))])
	}
	return b.Bytes()[:n]
}

// single compresses src as one job and frame.
func single(t *testing.T, src []byte, checksum bool, size int64) []byte {
	t.Helper()
	c := New()
	ctx, err := c.NewContext()
	require.NoError(t, err)
	params := api.SessionParams{FirstJob: true, LastJob: true, WindowLog: 20, Checksum: checksum, ContentSize: size}
	require.NoError(t, ctx.Begin(nil, params, size))
	dst := make([]byte, c.CompressBound(len(src), 20))
	n, err := ctx.CompressEnd(dst, src)
	require.NoError(t, err)
	out := dst[:n]
	if checksum {
		out = binary.LittleEndian.AppendUint32(out, uint32(xxhash.Sum64(src)))
	}
	return out
}

func TestFrameHeader_ContentSizeField(t *testing.T) {
	cases := []struct {
		size int64
		want int
	}{
		{-1, 6}, {0, 10}, {255, 10}, {256, 8}, {65791, 8}, {65792, 10}, {1 << 33, 14},
	}
	for _, tc := range cases {
		got := FrameHeader{WindowLog: 20, ContentSize: tc.size}.AppendTo(nil)
		assert.Len(t, got, tc.want, "content size %d", tc.size)
		assert.Equal(t, uint32(Magic), binary.LittleEndian.Uint32(got))
		assert.Equal(t, byte(10<<3), got[5])
	}
	assert.Error(t, FrameHeader{WindowLog: 9}.Validate())
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	b := appendBlockHeader(nil, true, BlockCompressed, 12345)
	last, typ, size, err := ParseBlockHeader(b)
	require.NoError(t, err)
	assert.True(t, last)
	assert.Equal(t, BlockCompressed, typ)
	assert.Equal(t, 12345, size)

	assert.Equal(t, []byte{1, 0, 0}, AppendLastEmptyBlock(nil))
	_, _, _, err = ParseBlockHeader([]byte{6, 0, 0})
	assert.Error(t, err)
}

func TestCompress_DecodesAcrossContentKinds(t *testing.T) {
	random := make([]byte, 300<<10)
	rand.New(rand.NewSource(1)).Read(random)

	inputs := map[string][]byte{
		"empty":  {},
		"tiny":   []byte("hello"),
		"rle":    bytes.Repeat([]byte{'z'}, 200<<10),
		"text":   textLike(700 << 10),
		"random": random,
		"small":  textLike(900),
	}
	for name, src := range inputs {
		t.Run(name, func(t *testing.T) {
			for _, checksum := range []bool{false, true} {
				frame := single(t, src, checksum, int64(len(src)))
				assert.Equal(t, src, append([]byte{}, decode(t, frame)...))
				assert.LessOrEqual(t, len(frame), CompressBound(len(src), 20))

				unknown := single(t, src, checksum, -1)
				assert.Equal(t, src, append([]byte{}, decode(t, unknown)...))
			}
		})
	}
}

func TestCompress_BlockKinds(t *testing.T) {
	c := New()
	ctx, err := c.NewContext()
	require.NoError(t, err)
	src := append(bytes.Repeat([]byte{0}, MaxBlockSize), textLike(MaxBlockSize)...)
	random := make([]byte, MaxBlockSize)
	rand.New(rand.NewSource(2)).Read(random)
	src = append(src, random...)

	require.NoError(t, ctx.Begin(nil, api.SessionParams{FirstJob: true, LastJob: true, WindowLog: 22, ContentSize: -1}, -1))
	dst := make([]byte, CompressBound(len(src), 22))
	n, err := ctx.CompressEnd(dst, src)
	require.NoError(t, err)

	st := ctx.(*Context).Stats()
	assert.EqualValues(t, 1, st.RLEBlocks)
	assert.EqualValues(t, 1, st.CompBlocks)
	assert.EqualValues(t, 1, st.RawBlocks)
	assert.EqualValues(t, len(src), st.BytesIn)
	assert.EqualValues(t, n, st.BytesOut)
	assert.Equal(t, src, decode(t, dst[:n]))
}

func TestCompress_JobsConcatenateIntoOneFrame(t *testing.T) {
	src := textLike(1 << 20)
	c := New()
	var frame []byte
	cuts := []int{0, 300 << 10, 700 << 10, len(src)}
	for i := 0; i < len(cuts)-1; i++ {
		ctx, err := c.NewContext()
		require.NoError(t, err)
		params := api.SessionParams{
			FirstJob:    i == 0,
			LastJob:     i == len(cuts)-2,
			WindowLog:   21,
			Checksum:    true,
			ContentSize: int64(len(src)),
		}
		var prefix []byte
		if i > 0 {
			prefix = src[cuts[i]-1024 : cuts[i]]
		}
		require.NoError(t, ctx.Begin(prefix, params, int64(cuts[i+1]-cuts[i])))
		require.NoError(t, ctx.ReferenceSequences([]api.RawSeq{{Offset: 10, MatchLength: 64}}))

		job := src[cuts[i]:cuts[i+1]]
		dst := make([]byte, c.CompressBound(len(job), 21))
		var n int
		if params.LastJob {
			n, err = ctx.CompressEnd(dst, job)
		} else {
			n, err = ctx.CompressContinue(dst, job)
		}
		require.NoError(t, err)
		frame = append(frame, dst[:n]...)
		st := ctx.(*Context).Stats()
		assert.Equal(t, 1, st.ReferencedSeqs)
		assert.Equal(t, len(prefix), st.PrefixBytes)
	}
	frame = binary.LittleEndian.AppendUint32(frame, uint32(xxhash.Sum64(src)))
	assert.Equal(t, src, decode(t, frame))
}

func TestCompress_Errors(t *testing.T) {
	c := New()
	ctx, err := c.NewContext()
	require.NoError(t, err)

	_, err = ctx.CompressContinue(make([]byte, 64), []byte("x"))
	assert.True(t, api.CodeOf(err) == api.ErrCodeProtocolViolation)

	err = ctx.Begin(nil, api.SessionParams{WindowLog: 40}, -1)
	assert.Equal(t, api.ErrCodeInvalidParameter, api.CodeOf(err))

	require.NoError(t, ctx.Begin(nil, api.SessionParams{FirstJob: true, WindowLog: 20, ContentSize: -1}, -1))
	_, err = ctx.CompressContinue(make([]byte, 8), make([]byte, 100))
	assert.ErrorIs(t, err, api.ErrDstTooSmall)

	_, err = ctx.CompressEnd(make([]byte, 64), nil)
	require.NoError(t, err)
	_, err = ctx.CompressContinue(make([]byte, 64), nil)
	assert.Equal(t, api.ErrCodeProtocolViolation, api.CodeOf(err))
	assert.Greater(t, ctx.(*Context).SizeOf(), 0)
}
