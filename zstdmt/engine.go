// File: zstdmt/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine splits a stream into jobs, compresses them on a worker pool and
// hands the compressed bytes back in submission order, so the output is one
// standard frame regardless of how jobs were scheduled.
//
// The caller-facing methods are meant for one goroutine at a time; they are
// serialized by a mutex, so introspection calls from elsewhere wait for a
// running Compress to return.

package zstdmt

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/momentics/hioload-zstd/api"
	"github.com/momentics/hioload-zstd/codec"
	"github.com/momentics/hioload-zstd/control"
	"github.com/momentics/hioload-zstd/internal/concurrency"
	"github.com/momentics/hioload-zstd/internal/ldm"
	"github.com/momentics/hioload-zstd/internal/roundbuf"
	"github.com/momentics/hioload-zstd/internal/serial"
	"github.com/momentics/hioload-zstd/pool"
)

// State is the position of the engine in the frame life cycle.
type State int

const (
	// StateIdle means no frame has been started.
	StateIdle State = iota
	// StateLoading means input is being staged for the next job.
	StateLoading
	// StateJobReady means a job is built but no worker accepted it yet.
	StateJobReady
	// StateFlushing means jobs are in flight or output is pending.
	StateFlushing
	// StateFrameEnded means the last byte of the frame was flushed.
	StateFrameEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateJobReady:
		return "job-ready"
	case StateFlushing:
		return "flushing"
	case StateFrameEnded:
		return "frame-ended"
	}
	return "unknown"
}

// Progress is a snapshot of the current frame.
type Progress struct {
	Ingested      uint64 // input bytes accepted
	Consumed      uint64 // input bytes compressed
	Produced      uint64 // compressed bytes generated
	Flushed       uint64 // compressed bytes handed to the caller
	CurrentJobID  uint64 // id the next job will get
	ActiveWorkers int    // jobs still compressing
}

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	pin        bool
	queueDepth int
	compressor api.BoundedCompressor
	config     *control.ConfigStore
	probes     *control.DebugProbes
}

// Option customizes engine construction.
type Option func(*options)

// WithLogger sets the parent logger; the engine logs under "zstdmt".
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics registers the engine's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithCPUAffinity pins worker goroutines to CPUs where supported.
func WithCPUAffinity(enable bool) Option {
	return func(o *options) { o.pin = enable }
}

// WithQueueDepth lets depth jobs wait for a busy worker. The default, 0,
// hands a job over only to an idle worker.
func WithQueueDepth(depth int) Option {
	return func(o *options) { o.queueDepth = depth }
}

// WithCompressor replaces the default codec.
func WithCompressor(c api.BoundedCompressor) Option {
	return func(o *options) { o.compressor = c }
}

// WithConfigStore subscribes the engine to live "level" updates.
func WithConfigStore(cs *control.ConfigStore) Option {
	return func(o *options) { o.config = cs }
}

// WithDebugProbes registers the engine's probes in a shared registry,
// prefixed with the engine id.
func WithDebugProbes(dp *control.DebugProbes) Option {
	return func(o *options) { o.probes = dp }
}

// Engine is a multi-threaded streaming compressor.
type Engine struct {
	mu sync.Mutex

	id         uuid.UUID
	logger     *zap.Logger
	metrics    *control.Metrics
	probes     *control.DebugProbes
	compressor api.BoundedCompressor

	params     Params
	level      atomic.Int64
	jobSize    int
	prefixSize int
	pledged    int64 // -1 when unknown
	ldmParams  ldm.Params

	exec    *concurrency.Executor
	bufPool *pool.BufferPool
	ctxPool *pool.ContextPool[api.Context]
	seqPool *pool.SeqPool
	jobs    *pool.Ring[job]
	round   *roundbuf.Buffer
	scanner roundbuf.Scanner
	serial  *serial.State
	index   *ldm.Index

	in     roundbuf.Range // reserved staging section
	filled int            // bytes staged in in
	prefix roundbuf.Range // tail of the previous job

	nextJobID uint64
	doneJobID uint64
	jobReady  bool

	frameStarted     bool
	frameEnded       bool
	allJobsCompleted bool

	ingested uint64
	consumed uint64
	produced uint64

	err    error
	closed bool

	// read by probes without the engine lock
	created  atomic.Uint64
	retired  atomic.Uint64
	ringSize atomic.Int64
}

// New creates an idle engine with p.Workers workers.
func New(p Params, opts ...Option) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.queueDepth < 0 {
		return nil, api.ErrInvalidParameter.WithContext("field", "queue_depth").WithContext("value", o.queueDepth)
	}
	if o.compressor == nil {
		o.compressor = codec.New()
	}

	id := uuid.New()
	logger := o.logger.Named("zstdmt").With(zap.String("engine", id.String()))
	metrics, err := control.NewMetrics(o.registerer, id.String())
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "metrics registration", err)
	}
	exec, err := concurrency.NewExecutor(p.Workers, o.queueDepth,
		concurrency.WithLogger(logger),
		concurrency.WithPinning(o.pin))
	if err != nil {
		metrics.Unregister()
		return nil, api.Wrap(api.ErrCodeInvalidParameter, "executor", err)
	}

	e := &Engine{
		id:         id,
		logger:     logger,
		metrics:    metrics,
		compressor: o.compressor,
		params:     p,
		pledged:    -1,
		exec:       exec,
		bufPool:    pool.NewBufferPool(pool.MaxBuffers(p.Workers), 0),
		ctxPool:    pool.NewContextPool(p.Workers, o.compressor.NewContext, contextSize),
		seqPool:    pool.NewSeqPool(p.Workers),
		jobs:       pool.NewRing(p.Workers+2, initJob),
		round:      roundbuf.New(0),
		serial:     serial.New(),
	}
	e.level.Store(int64(p.Level))
	e.ringSize.Store(int64(e.jobs.Cap()))

	prefix := ""
	if o.probes != nil {
		prefix = id.String() + "/"
		e.probes = o.probes
	} else {
		e.probes = control.NewDebugProbes()
	}
	e.registerProbes(prefix)
	if o.config != nil {
		o.config.OnReload(e.onReload)
	}

	logger.Info("engine created", zap.Stringer("params", p), zap.Int("queue_depth", o.queueDepth))
	return e, nil
}

func contextSize(c api.Context) int {
	if s, ok := c.(interface{ SizeOf() int }); ok {
		return s.SizeOf()
	}
	return 0
}

// ID returns the engine instance id.
func (e *Engine) ID() uuid.UUID { return e.id }

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *control.Metrics { return e.metrics }

// Params returns the parameters the next frame starts with.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.params
	p.Level = int(e.level.Load())
	return p
}

// SetLevel changes the effort level of jobs created from now on, including
// the remaining jobs of the current frame. Safe from any goroutine.
func (e *Engine) SetLevel(level int) error {
	if level < levelMin || level > levelMax {
		return api.ErrInvalidParameter.WithContext("field", "level").WithContext("value", level)
	}
	e.level.Store(int64(level))
	return nil
}

func (e *Engine) onReload(changed map[string]any) {
	v, ok := changed["level"]
	if !ok {
		return
	}
	var level int
	switch x := v.(type) {
	case int:
		level = x
	case int64:
		level = int(x)
	case float64:
		level = int(x)
	default:
		e.logger.Warn("ignoring level update", zap.Any("value", v))
		return
	}
	if err := e.SetLevel(level); err != nil {
		e.logger.Warn("ignoring level update", zap.Error(err))
		return
	}
	e.logger.Info("level updated", zap.Int("level", level))
}

// Init starts a new frame with p. pledgedSize is the exact number of input
// bytes the frame will carry, or a negative value when unknown. A frame in
// progress is abandoned.
func (e *Engine) Init(p Params, pledgedSize int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return api.ErrEngineClosed
	}
	if err := p.Validate(); err != nil {
		return err
	}
	e.drain()
	if p.Workers != e.params.Workers {
		if err := e.resizeLocked(p.Workers); err != nil {
			return err
		}
	}
	e.params = p
	e.level.Store(int64(p.Level))
	return e.startFrame(pledgedSize)
}

// startFrame prepares every component for a new frame with e.params.
func (e *Engine) startFrame(pledgedSize int64) error {
	p := e.params
	e.jobSize = p.TargetJobSize()
	e.prefixSize = p.OverlapSize()
	e.scanner = roundbuf.NewScanner(e.jobSize, p.Rsyncable)

	var index *ldm.Index
	if p.LDM {
		lp := p.ldmParams()
		if e.index == nil || e.ldmParams != lp {
			x, err := ldm.New(lp)
			if err != nil {
				return api.Wrap(api.ErrCodeInvalidParameter, "long distance matching", err)
			}
			e.index, e.ldmParams = x, lp
		}
		index = e.index
		e.seqPool.SetMaxSeqs(ldm.MaxSeqs(e.jobSize, index.Params().MinMatch))
	} else {
		e.index = nil
		e.seqPool.SetMaxSeqs(0)
	}
	e.serial.Reset(p.Checksum, index)

	e.round.Grow(roundbuf.Capacity(e.jobSize, p.Workers, e.prefixSize, 0))
	e.bufPool.SetTargetSize(e.compressor.CompressBound(e.jobSize, p.WindowLog))

	if pledgedSize < 0 {
		pledgedSize = -1
	}
	e.pledged = pledgedSize
	e.in, e.prefix, e.filled = roundbuf.Range{}, roundbuf.Range{}, 0
	e.nextJobID, e.doneJobID = 0, 0
	e.created.Store(0)
	e.retired.Store(0)
	e.jobReady = false
	e.frameStarted, e.frameEnded, e.allJobsCompleted = true, false, false
	e.ingested, e.consumed, e.produced = 0, 0, 0
	e.err = nil

	e.logger.Info("frame started",
		zap.Int("job_size", e.jobSize),
		zap.Int("overlap", e.prefixSize),
		zap.Int64("pledged", e.pledged),
		zap.Int("round_buffer", e.round.Cap()))
	return nil
}

// Compress stages input from in, dispatches full jobs and copies finished
// output into out. It returns a lower bound of the bytes still to flush;
// with End, 0 means the frame is complete.
func (e *Engine) Compress(out *api.OutBuffer, in *api.InBuffer, end api.EndDirective) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, api.ErrEngineClosed
	}
	if e.err != nil {
		return 0, e.err
	}
	if in.Pos < 0 || in.Pos > len(in.Src) || out.Pos < 0 || out.Pos > len(out.Dst) {
		return 0, api.ErrProtocolViolation.WithContext("reason", "buffer position out of range")
	}
	if end < api.Continue || end > api.End {
		return 0, api.ErrInvalidParameter.WithContext("field", "end").WithContext("value", int(end))
	}
	if !e.frameStarted || e.allJobsCompleted {
		if err := e.startFrame(-1); err != nil {
			return 0, err
		}
	}
	if e.frameEnded {
		if in.Remaining() > 0 {
			return 0, api.ErrProtocolViolation.WithContext("reason", "input after end of frame")
		}
		if end != api.End {
			return 0, api.ErrProtocolViolation.WithContext("reason", "frame is ending").WithContext("end", end.String())
		}
	}

	progressed := false
	if !e.frameEnded && !e.jobReady && in.Remaining() > 0 {
		var err error
		if end, progressed, err = e.stage(in, end); err != nil {
			return 0, e.fail(err)
		}
	}
	if in.Remaining() > 0 && end == api.End {
		// the frame cannot end while input is left
		end = api.Flush
	}

	if e.jobReady || e.filled >= e.jobSize ||
		(end != api.Continue && e.filled > 0) ||
		(end == api.End && !e.frameEnded) {
		if err := e.createJob(e.filled, end); err != nil {
			return 0, e.fail(err)
		}
	}

	remaining, err := e.flushProduced(out, !progressed, end)
	if err != nil {
		return 0, err
	}
	if in.Remaining() > 0 {
		remaining = max(remaining, 1)
	}
	return remaining, nil
}

// stage copies input into the reserved section, stopping at a sync point
// when rsyncable cuts are on.
func (e *Engine) stage(in *api.InBuffer, end api.EndDirective) (api.EndDirective, bool, error) {
	if e.in.Len == 0 {
		ok, err := e.reserveInput()
		if err != nil || !ok {
			return end, false, err
		}
	}
	src := in.Src[in.Pos:]
	staged := e.round.Bytes(roundbuf.Range{Start: e.in.Start, Len: e.filled})
	sp := e.scanner.Find(staged, src, e.in.Len)

	if e.pledged >= 0 && e.ingested+uint64(sp.ToLoad) > uint64(e.pledged) {
		return end, false, api.ErrSrcSizeWrong.
			WithContext("pledged", e.pledged).
			WithContext("ingested", e.ingested+uint64(sp.ToLoad))
	}
	copy(e.round.Bytes(roundbuf.Range{Start: e.in.Start + e.filled, Len: sp.ToLoad}), src[:sp.ToLoad])
	in.Pos += sp.ToLoad
	e.filled += sp.ToLoad
	e.ingested += uint64(sp.ToLoad)

	if sp.Flush {
		if sp.ToLoad > 0 {
			e.metrics.SyncPoints.Inc()
		}
		if end == api.Continue {
			end = api.Flush
		}
	}
	return end, sp.ToLoad > 0, nil
}

// reserveInput claims a job-sized section of the round buffer. It reports
// false when the bytes are still read by a running job.
func (e *Engine) reserveInput() (bool, error) {
	prev := e.prefix
	in, prefix, ok, err := e.round.Reserve(e.prefix, e.jobSize, guard{e})
	if err != nil {
		return false, api.Wrap(api.ErrCodeInternal, "round buffer", err)
	}
	e.prefix = prefix
	if prefix.Start != prev.Start && prefix.Len > 0 {
		e.logger.Debug("round buffer wrapped", zap.Int("prefix", prefix.Len))
	}
	if !ok {
		return false, nil
	}
	e.in, e.filled = in, 0
	return true, nil
}

// guard tells the round buffer which bytes running jobs still read.
type guard struct{ e *Engine }

func (g guard) InUse(r roundbuf.Range) bool {
	e := g.e
	for id := e.doneJobID; id < e.nextJobID; id++ {
		j := e.jobs.At(id)
		j.mu.Lock()
		running := !j.done
		j.mu.Unlock()
		if !running {
			continue
		}
		start := j.src.Start
		if j.prefix.Len > 0 {
			start = j.prefix.Start
		}
		if r.Overlaps(roundbuf.Range{Start: start, Len: j.src.End() - start}) {
			return true
		}
	}
	return false
}

func (g guard) WaitIndexing() { g.e.serial.WaitWindowClear() }

// createJob turns the staged bytes into job nextJobID and submits it. A
// job no worker accepts stays ready and is retried by the next call.
func (e *Engine) createJob(size int, end api.EndDirective) error {
	if e.jobs.Full(e.nextJobID, e.doneJobID) {
		return nil
	}
	j := e.jobs.At(e.nextJobID)
	if !e.jobReady {
		endFrame := end == api.End
		if endFrame && e.pledged >= 0 && e.ingested != uint64(e.pledged) {
			return api.ErrSrcSizeWrong.
				WithContext("pledged", e.pledged).
				WithContext("ingested", e.ingested)
		}
		j.reset(e.nextJobID)
		start := e.in.Start
		if e.in.Len == 0 {
			start = e.round.Pos()
		}
		j.src = roundbuf.Range{Start: start, Len: size}
		j.prefix = e.prefix
		j.params = api.SessionParams{
			FirstJob:    e.nextJobID == 0,
			LastJob:     endFrame,
			WindowLog:   e.params.WindowLog,
			Level:       int(e.level.Load()),
			Checksum:    e.params.Checksum,
			ContentSize: -1,
		}
		j.pledged = int64(size)
		if j.params.FirstJob {
			j.params.ContentSize = e.pledged
			j.pledged = e.pledged
		}
		j.checksumNeeded = endFrame && e.params.Checksum

		e.round.Advance(size)
		e.in, e.filled = roundbuf.Range{}, 0
		if endFrame {
			e.prefix = roundbuf.Range{}
			e.frameEnded = true
		} else {
			n := min(size, e.prefixSize)
			e.prefix = roundbuf.Range{Start: j.src.End() - n, Len: n}
		}

		if size == 0 && endFrame {
			e.emitInline(j)
			return nil
		}
		e.logger.Debug("job created",
			zap.Uint64("job", j.id),
			zap.Int("src", size),
			zap.Int("prefix", j.prefix.Len),
			zap.Bool("last", endFrame))
	}

	task := func() { e.runJob(j) }
	if e.exec.TryAdd(task) {
		e.submitted()
		return nil
	}
	if e.doneJobID == e.nextJobID {
		// nothing in flight for the flush path to wait on; workers are
		// about to park, so a blocking hand-off returns promptly
		if err := e.exec.Add(task); err != nil {
			return api.Wrap(api.ErrCodeInternal, "job submission", err)
		}
		e.submitted()
		return nil
	}
	if !e.jobReady {
		e.metrics.JobsDeferred.Inc()
		e.logger.Warn("no idle worker, job deferred", zap.Uint64("job", j.id))
	}
	e.jobReady = true
	return nil
}

func (e *Engine) submitted() {
	e.nextJobID++
	e.created.Store(e.nextJobID)
	e.jobReady = false
	e.metrics.JobsCreated.Inc()
	e.metrics.InFlight.Set(float64(e.nextJobID - e.doneJobID))
}

// emitInline completes an empty last job on the caller's goroutine. After
// earlier jobs that is a bare last block; for an empty frame the
// collaborator writes the header too.
func (e *Engine) emitInline(j *job) {
	dst, err := e.bufPool.Get()
	n := 0
	if err == nil {
		if j.params.FirstJob {
			n, err = e.compressEmptyFrame(j, dst)
		} else {
			n = len(codec.AppendLastEmptyBlock(dst[:0]))
		}
	}
	j.mu.Lock()
	j.dst = dst
	j.cSize = n
	j.err = err
	j.done = true
	j.mu.Unlock()

	e.nextJobID++
	e.created.Store(e.nextJobID)
	e.metrics.InFlight.Set(float64(e.nextJobID - e.doneJobID))
	e.logger.Debug("empty last job", zap.Uint64("job", j.id), zap.Int("size", n))
}

func (e *Engine) compressEmptyFrame(j *job, dst []byte) (int, error) {
	cctx, err := e.ctxPool.Get()
	if err != nil {
		return 0, err
	}
	defer e.ctxPool.Release(cctx)
	if err := cctx.Begin(nil, j.params, j.pledged); err != nil {
		return 0, err
	}
	return cctx.CompressEnd(dst, nil)
}

// Reset clears the session, the parameters or both. Parameters can only be
// reset between frames.
func (e *Engine) Reset(d api.ResetDirective) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return api.ErrEngineClosed
	}
	switch d {
	case api.ResetSessionOnly, api.ResetSessionAndParameters:
		e.drain()
		e.err = nil
		e.frameStarted = false
		if d == api.ResetSessionAndParameters {
			e.resetParams()
		}
	case api.ResetParameters:
		if e.busyLocked() {
			return api.ErrProtocolViolation.WithContext("reason", "parameters reset during a frame")
		}
		e.resetParams()
	default:
		return api.ErrInvalidParameter.WithContext("field", "reset").WithContext("value", int(d))
	}
	e.logger.Debug("engine reset", zap.Int("directive", int(d)))
	return nil
}

func (e *Engine) resetParams() {
	p := DefaultParams()
	p.Workers = e.params.Workers
	e.params = p
	e.level.Store(int64(p.Level))
}

// Resize changes the worker count between frames. During a frame it fails
// with a protocol violation and changes nothing.
func (e *Engine) Resize(workers int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return api.ErrEngineClosed
	}
	if e.busyLocked() {
		return api.ErrProtocolViolation.
			WithContext("reason", "resize during a frame").
			WithContext("state", e.stateLocked().String())
	}
	return e.resizeLocked(workers)
}

func (e *Engine) resizeLocked(workers int) error {
	if workers < 1 {
		return api.ErrInvalidParameter.WithContext("field", "workers").WithContext("value", workers)
	}
	if err := e.exec.Resize(workers); err != nil {
		return api.Wrap(api.ErrCodeInternal, "executor resize", err)
	}
	e.bufPool.Expand(pool.MaxBuffers(workers))
	e.ctxPool.Expand(workers)
	e.seqPool.Expand(workers)
	if size := pool.NextPow2(workers + 2); size > e.jobs.Cap() {
		e.jobs = pool.NewRing(size, initJob)
		e.ringSize.Store(int64(size))
	}
	prev := e.params.Workers
	e.params.Workers = workers
	if e.frameStarted && !e.allJobsCompleted {
		// nothing staged yet: size the round buffer for the new count
		e.in, e.prefix, e.filled = roundbuf.Range{}, roundbuf.Range{}, 0
		e.round.Grow(roundbuf.Capacity(e.jobSize, workers, e.prefixSize, 0))
	}
	e.logger.Info("workers resized", zap.Int("from", prev), zap.Int("to", workers))
	return nil
}

// Close abandons any frame in progress and stops the workers. Close is
// idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.drain()
	e.exec.JoinAll()
	e.closed = true
	e.frameStarted = false
	e.metrics.Unregister()
	e.logger.Info("engine closed")
	return nil
}

// State returns the life-cycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	switch {
	case !e.frameStarted:
		return StateIdle
	case e.allJobsCompleted:
		return StateFrameEnded
	case e.jobReady:
		return StateJobReady
	case e.doneJobID < e.nextJobID || e.frameEnded:
		return StateFlushing
	default:
		return StateLoading
	}
}

// busyLocked reports whether a frame holds input or output.
func (e *Engine) busyLocked() bool {
	switch e.stateLocked() {
	case StateJobReady, StateFlushing:
		return true
	case StateLoading:
		return e.ingested > 0 || e.nextJobID > 0
	}
	return false
}

// Progress reports how far the current frame has come.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := Progress{
		Ingested:     e.ingested,
		Consumed:     e.consumed,
		Produced:     e.produced,
		Flushed:      e.produced,
		CurrentJobID: e.nextJobID,
	}
	e.jobs.Each(e.doneJobID, e.nextJobID, func(_ uint64, j *job) {
		j.mu.Lock()
		p.Consumed += uint64(j.consumed)
		p.Produced += uint64(j.cSize)
		p.Flushed += uint64(j.flushed)
		if !j.done {
			p.ActiveWorkers++
		}
		j.mu.Unlock()
	})
	return p
}

// ToFlushNow returns the bytes of the oldest job that can be flushed
// without waiting.
func (e *Engine) ToFlushNow() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doneJobID == e.nextJobID {
		return 0
	}
	j := e.jobs.At(e.doneJobID)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return 0
	}
	return j.cSize - j.flushed
}

// SizeOf estimates the memory held by the engine.
func (e *Engine) SizeOf() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(unsafe.Sizeof(*e)) +
		e.jobs.Cap()*int(unsafe.Sizeof(job{})) +
		e.round.Cap() +
		e.bufPool.SizeOf() +
		e.ctxPool.SizeOf() +
		e.seqPool.SizeOf() +
		e.serial.SizeOf() +
		e.exec.SizeOf()
}

// DumpState runs every registered probe.
func (e *Engine) DumpState() map[string]any {
	return e.probes.DumpState()
}

// RegisterProbe adds a caller probe next to the engine's own.
func (e *Engine) RegisterProbe(name string, fn func() any) {
	e.probes.RegisterProbe(name, fn)
}

func (e *Engine) registerProbes(prefix string) {
	e.probes.RegisterProbe(prefix+"pools", func() any {
		return map[string]api.PoolStats{
			"buffers":   e.bufPool.Stats(),
			"contexts":  e.ctxPool.Stats(),
			"sequences": e.seqPool.Stats(),
		}
	})
	e.probes.RegisterProbe(prefix+"ring", func() any {
		return map[string]any{
			"slots":   e.ringSize.Load(),
			"created": e.created.Load(),
			"retired": e.retired.Load(),
			"workers": e.exec.NumWorkers(),
			"busy":    e.exec.Busy(),
			"queued":  e.exec.QueueLen(),
		}
	})
	e.probes.RegisterProbe(prefix+"serial", func() any {
		return map[string]any{
			"next":     e.serial.Next(),
			"checksum": e.serial.Checksum(),
		}
	})
	e.probes.RegisterProbe(prefix+"cpu", func() any {
		return map[string]any{
			"cpus":     concurrency.NumCPUs(),
			"features": concurrency.CPUFeatures(),
		}
	})
}

var _ api.Debug = (*Engine)(nil)
