// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

// hioload_test.go — writer round trips on both paths, flush, reset and config checks.

package facade_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-zstd/api"
	"github.com/momentics/hioload-zstd/facade"
	"github.com/momentics/hioload-zstd/zstdmt"
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

func sample(n int) []byte {
	r := rand.New(rand.NewSource(21))
	b := make([]byte, n)
	for i := range b {
		// skewed alphabet: compressible but not trivial
		b[i] = "aaaabbbccd\n"[r.Intn(11)]
	}
	return b
}

func config(workers int) *facade.Config {
	cfg := facade.DefaultConfig()
	cfg.Params.Workers = workers
	cfg.Params.JobSize = zstdmt.JobSizeMin
	cfg.Params.WindowLog = 20
	return cfg
}

func TestWriter_RoundTrip(t *testing.T) {
	src := sample(3<<20 + 123)
	for _, workers := range []int{0, 1, 4} {
		var dst bytes.Buffer
		zw, err := facade.NewWriter(&dst, config(workers))
		require.NoError(t, err)
		assert.Equal(t, workers == 0, zw.Engine() == nil)

		for off := 0; off < len(src); off += 100 << 10 {
			n, err := zw.Write(src[off:min(off+100<<10, len(src))])
			require.NoError(t, err)
			assert.Positive(t, n)
		}
		require.NoError(t, zw.Close())
		require.NoError(t, zw.Close(), "close is idempotent")
		assert.Equal(t, src, decode(t, dst.Bytes()), "workers=%d", workers)

		_, err = zw.Write([]byte("late"))
		assert.Error(t, err)
	}
}

func TestWriter_FlushMidStream(t *testing.T) {
	for _, workers := range []int{0, 2} {
		var dst bytes.Buffer
		zw, err := facade.NewWriter(&dst, config(workers))
		require.NoError(t, err)

		first := sample(10 << 10)
		_, err = zw.Write(first)
		require.NoError(t, err)
		require.NoError(t, zw.Flush())
		assert.Positive(t, dst.Len(), "flush writes the staged bytes out")

		_, err = zw.Write([]byte("tail"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		assert.Equal(t, append(first, "tail"...), decode(t, dst.Bytes()))
	}
}

func TestWriter_ResetStartsNewFrame(t *testing.T) {
	var a, b bytes.Buffer
	zw, err := facade.NewWriter(&a, config(2))
	require.NoError(t, err)
	_, err = zw.Write([]byte("discarded"))
	require.NoError(t, err)

	require.NoError(t, zw.Reset(&b))
	_, err = zw.Write([]byte("kept"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	assert.Equal(t, []byte("kept"), decode(t, b.Bytes()))
	assert.ErrorIs(t, zw.Reset(&a), api.ErrEngineClosed)
}

func TestWriter_PledgedSizeMismatch(t *testing.T) {
	cfg := config(2)
	cfg.ContentSize = 10
	var dst bytes.Buffer
	zw, err := facade.NewWriter(&dst, cfg)
	require.NoError(t, err)
	_, err = zw.Write([]byte("short"))
	require.NoError(t, err)
	assert.ErrorIs(t, zw.Close(), api.ErrSrcSizeWrong)
}

func TestWriter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := config(2)
	cfg.Registerer = reg
	var dst bytes.Buffer
	zw, err := facade.NewWriter(&dst, cfg)
	require.NoError(t, err)
	_, err = zw.Write(sample(2 * zstdmt.JobSizeMin))
	require.NoError(t, err)
	require.NoError(t, zw.Flush())
	assert.Equal(t, 2.0, testutil.ToFloat64(zw.Engine().Metrics().JobsCompleted))
	require.NoError(t, zw.Close())
}

func TestNewWriter_RejectsBadConfig(t *testing.T) {
	cfg := config(-1)
	_, err := facade.NewWriter(&bytes.Buffer{}, cfg)
	assert.ErrorIs(t, err, api.ErrInvalidParameter)

	cfg = config(1)
	cfg.OutBufferSize = 0
	_, err = facade.NewWriter(&bytes.Buffer{}, cfg)
	assert.ErrorIs(t, err, api.ErrInvalidParameter)
}

func TestCompress_OneShot(t *testing.T) {
	src := sample(700 << 10)
	for _, workers := range []int{0, 3} {
		p := config(workers).Params
		frame, err := facade.Compress(src, p)
		require.NoError(t, err)
		assert.Equal(t, src, decode(t, frame))
		assert.Less(t, len(frame), len(src))
	}
	empty, err := facade.Compress(nil, config(2).Params)
	require.NoError(t, err)
	assert.Empty(t, decode(t, empty))
}
