// File: facade/hioload.go
// Unified facade layer for hioload-zstd.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Writer puts the streaming engines behind io.WriteCloser. With Workers set
// to 0 it compresses on the caller's goroutine with the klauspost encoder;
// otherwise it drives a multi-threaded zstdmt.Engine. Both produce standard
// Zstandard frames.

package facade

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-zstd/api"
	"github.com/momentics/hioload-zstd/zstdmt"
)

// Config holds parameters immutable per writer.
type Config struct {
	Params        zstdmt.Params         // Engine parameters; Workers 0 selects the single-threaded encoder
	ContentSize   int64                 // Pledged input size, -1 when unknown
	OutBufferSize int                   // Staging buffer for compressed output
	QueueDepth    int                   // Jobs allowed to wait for a busy worker
	CPUAffinity   bool                  // Whether to pin workers to CPUs
	Registerer    prometheus.Registerer // Metrics registry, nil to skip registration
	Logger        *zap.Logger           // Parent logger, nil for none
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Params:        zstdmt.DefaultParams(),
		ContentSize:   -1,        // Unknown size
		OutBufferSize: 128 << 10, // 128 KiB, one full block
		QueueDepth:    0,         // Direct hand-off to idle workers
	}
}

// Validate checks the configuration; Workers may be 0 here.
func (c *Config) Validate() error {
	p := c.Params
	if p.Workers == 0 {
		p.Workers = 1
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if c.OutBufferSize <= 0 {
		return api.ErrInvalidParameter.WithContext("field", "out_buffer_size").WithContext("value", c.OutBufferSize)
	}
	return nil
}

// Writer compresses everything written to it into one frame per stream.
type Writer struct {
	w      io.Writer
	cfg    Config
	engine *zstdmt.Engine
	enc    *zstd.Encoder
	out    []byte
	err    error
	closed bool
}

var _ io.WriteCloser = (*Writer)(nil)

// NewWriter creates a Writer writing compressed bytes to w.
func NewWriter(w io.Writer, cfg *Config) (*Writer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	zw := &Writer{w: w, cfg: *cfg}
	if cfg.Params.Workers == 0 {
		enc, err := newEncoder(w, cfg)
		if err != nil {
			return nil, err
		}
		zw.enc = enc
		return zw, nil
	}

	engine, err := zstdmt.New(cfg.Params,
		zstdmt.WithLogger(cfg.Logger),
		zstdmt.WithMetrics(cfg.Registerer),
		zstdmt.WithQueueDepth(cfg.QueueDepth),
		zstdmt.WithCPUAffinity(cfg.CPUAffinity))
	if err != nil {
		return nil, err
	}
	if err := engine.Init(cfg.Params, cfg.ContentSize); err != nil {
		_ = engine.Close()
		return nil, err
	}
	zw.engine = engine
	zw.out = make([]byte, cfg.OutBufferSize)
	return zw, nil
}

func newEncoder(w io.Writer, cfg *Config) (*zstd.Encoder, error) {
	p := cfg.Params
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(p.Level)),
		zstd.WithEncoderCRC(p.Checksum),
		zstd.WithWindowSize(min(1<<p.WindowLog, zstd.MaxWindowSize)),
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true),
		zstd.WithLowerEncoderMem(true))
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInvalidParameter, "single-threaded encoder", err)
	}
	enc.ResetContentSize(w, cfg.ContentSize)
	return enc, nil
}

// Engine returns the multi-threaded engine, or nil on the single-threaded
// path.
func (zw *Writer) Engine() *zstdmt.Engine { return zw.engine }

// Write compresses p. Output is written to the destination as it becomes
// available.
func (zw *Writer) Write(p []byte) (int, error) {
	if err := zw.check(); err != nil {
		return 0, err
	}
	if zw.enc != nil {
		n, err := zw.enc.Write(p)
		if err != nil {
			zw.err = err
		}
		return n, err
	}
	in := &api.InBuffer{Src: p}
	for in.Remaining() > 0 {
		if _, err := zw.step(in, api.Continue); err != nil {
			return in.Pos, err
		}
	}
	return len(p), nil
}

// Flush compresses everything written so far and writes it out. The frame
// stays open.
func (zw *Writer) Flush() error {
	if err := zw.check(); err != nil {
		return err
	}
	if zw.enc != nil {
		if err := zw.enc.Flush(); err != nil {
			zw.err = err
			return err
		}
		return nil
	}
	return zw.drain(api.Flush)
}

// Close ends the frame and releases the workers. It does not close the
// destination.
func (zw *Writer) Close() error {
	if zw.closed {
		return zw.err
	}
	zw.closed = true
	if zw.enc != nil {
		if zw.err == nil {
			zw.err = zw.enc.Close()
		}
		return zw.err
	}
	if zw.err == nil {
		zw.err = zw.drain(api.End)
	}
	if err := zw.engine.Close(); err != nil && zw.err == nil {
		zw.err = err
	}
	return zw.err
}

// Reset discards the current frame and starts a new one written to w.
func (zw *Writer) Reset(w io.Writer) error {
	if zw.closed && zw.engine != nil {
		return api.ErrEngineClosed
	}
	zw.w, zw.err, zw.closed = w, nil, false
	if zw.enc != nil {
		zw.enc.ResetContentSize(w, zw.cfg.ContentSize)
		return nil
	}
	if err := zw.engine.Reset(api.ResetSessionOnly); err != nil {
		return err
	}
	return zw.engine.Init(zw.cfg.Params, zw.cfg.ContentSize)
}

func (zw *Writer) check() error {
	if zw.closed {
		return errors.New("facade: writer is closed")
	}
	return zw.err
}

// step runs one engine call and writes whatever it produced.
func (zw *Writer) step(in *api.InBuffer, end api.EndDirective) (int, error) {
	out := &api.OutBuffer{Dst: zw.out}
	rem, err := zw.engine.Compress(out, in, end)
	if err != nil {
		zw.err = err
		return 0, err
	}
	if out.Pos > 0 {
		if _, err := zw.w.Write(out.Bytes()); err != nil {
			zw.err = err
			return 0, err
		}
	}
	return rem, nil
}

func (zw *Writer) drain(end api.EndDirective) error {
	in := &api.InBuffer{}
	for {
		rem, err := zw.step(in, end)
		if err != nil {
			return err
		}
		if rem == 0 {
			return nil
		}
	}
}

// Compress is a one-shot helper compressing src into a single frame.
func Compress(src []byte, p zstdmt.Params) ([]byte, error) {
	cfg := DefaultConfig()
	cfg.Params = p
	cfg.ContentSize = int64(len(src))
	var buf bytes.Buffer
	zw, err := NewWriter(&buf, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
