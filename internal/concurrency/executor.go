// File: internal/concurrency/executor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor is a bounded FIFO of tasks served by long-lived worker goroutines.
// Add blocks while the queue is full; TryAdd never blocks. A queue depth of
// zero means direct hand-off: a task is accepted only while a worker is idle.
// Workers are removed on shrink only after finishing their current task, so
// resizing never drops queued work.
//

package concurrency

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-zstd/api"
)

// TaskFunc is a unit of work. Failures are recorded by the task itself.
type TaskFunc = func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	mu       sync.Mutex
	notEmpty *sync.Cond // tasks queued, shutdown or shrink requested
	notFull  *sync.Cond // a queue slot became free
	idle     *sync.Cond // queue empty and nobody busy

	tasks *queue.Queue
	depth int

	target  int // requested worker count
	running int // live worker goroutines
	waiting int // workers parked on notEmpty
	busy    int // workers executing a task
	nextID  int

	joining bool
	closed  bool
	wg      sync.WaitGroup

	pin    bool
	logger *zap.Logger
}

// ExecutorOption customizes executor construction.
type ExecutorOption func(*Executor)

// WithLogger routes recovered panics and lifecycle events to logger.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPinning pins each worker goroutine to one CPU where supported.
func WithPinning(enable bool) ExecutorOption {
	return func(e *Executor) { e.pin = enable }
}

// NewExecutor creates a new Executor with the given number of workers and
// queue depth.
func NewExecutor(numWorkers, queueDepth int, opts ...ExecutorOption) (*Executor, error) {
	if numWorkers <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, numWorkers)
	}
	if queueDepth < 0 {
		return nil, fmt.Errorf("%w: queue depth %d", ErrInvalidQueueDepth, queueDepth)
	}
	e := &Executor{
		tasks:  queue.New(),
		depth:  queueDepth,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.notEmpty = sync.NewCond(&e.mu)
	e.notFull = sync.NewCond(&e.mu)
	e.idle = sync.NewCond(&e.mu)

	e.mu.Lock()
	e.target = numWorkers
	e.spawnLocked(numWorkers)
	e.mu.Unlock()
	return e, nil
}

// spawnLocked starts n workers. Caller holds e.mu.
func (e *Executor) spawnLocked(n int) {
	for i := 0; i < n; i++ {
		id := e.nextID
		e.nextID++
		e.running++
		e.wg.Add(1)
		go e.run(id)
	}
}

// fullLocked reports whether one more task would exceed the queue bound.
func (e *Executor) fullLocked() bool {
	if e.depth == 0 {
		return e.tasks.Length() >= e.waiting
	}
	return e.tasks.Length() >= e.depth
}

// Add enqueues a task, blocking while the queue is full.
func (e *Executor) Add(task TaskFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.closed && (e.joining || e.fullLocked()) {
		e.notFull.Wait()
	}
	if e.closed {
		return ErrExecutorClosed
	}
	e.tasks.Add(task)
	e.notEmpty.Signal()
	return nil
}

// TryAdd enqueues a task only if a slot is free. It never blocks.
func (e *Executor) TryAdd(task TaskFunc) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.joining || e.fullLocked() {
		return false
	}
	e.tasks.Add(task)
	e.notEmpty.Signal()
	return true
}

// Resize changes the worker count. Extra workers exit after their current
// task; queued tasks stay queued for the remaining ones.
func (e *Executor) Resize(newCount int) error {
	if newCount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkerCount, newCount)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorClosed
	}
	prev := e.target
	e.target = newCount
	if missing := newCount - e.running; missing > 0 {
		e.spawnLocked(missing)
	}
	// shrinking: parked workers re-check target and leave
	e.notEmpty.Broadcast()
	// direct hand-off capacity changed
	e.notFull.Broadcast()
	e.logger.Debug("executor resized", zap.Int("from", prev), zap.Int("to", newCount))
	return nil
}

// JoinIdle blocks until the queue is empty and no task is running. New
// tasks are refused while it waits.
func (e *Executor) JoinIdle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joining = true
	for e.tasks.Length() > 0 || e.busy > 0 {
		e.idle.Wait()
	}
	e.joining = false
	e.notFull.Broadcast()
}

// JoinAll drains the queue, stops every worker and waits for them to exit.
// It is idempotent.
func (e *Executor) JoinAll() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.notEmpty.Broadcast()
	e.notFull.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()
}

// NumWorkers returns the requested worker count.
func (e *Executor) NumWorkers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// QueueLen returns the number of tasks waiting for a worker.
func (e *Executor) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Length()
}

// Busy returns the number of workers currently executing a task.
func (e *Executor) Busy() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// goroutineStackEstimate approximates the stack held by one idle worker.
const goroutineStackEstimate = 8 << 10

// SizeOf estimates memory held by the executor. Diagnostic only.
func (e *Executor) SizeOf() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var task TaskFunc
	slots := e.tasks.Length()
	if slots < 16 {
		slots = 16 // eapache/queue minimum ring size
	}
	return int(unsafe.Sizeof(*e)) +
		slots*int(unsafe.Sizeof(task)) +
		e.running*goroutineStackEstimate
}

// run is the worker loop: dequeue (blocking), execute, repeat until the
// executor shuts down or shrinks below this worker.
func (e *Executor) run(id int) {
	defer e.wg.Done()
	if e.pin {
		if err := PinCurrentThread(id); err != nil {
			e.logger.Warn("worker pinning failed", zap.Int("worker", id), zap.Error(err))
		} else {
			defer UnpinCurrentThread()
		}
	}

	e.mu.Lock()
	for {
		for e.tasks.Length() == 0 && !e.closed && e.running <= e.target {
			e.waiting++
			e.notFull.Broadcast() // a hand-off slot opened
			e.notEmpty.Wait()
			e.waiting--
		}
		if e.running > e.target || (e.closed && e.tasks.Length() == 0) {
			e.running--
			e.signalIdleLocked()
			e.mu.Unlock()
			return
		}
		task := e.tasks.Remove().(TaskFunc)
		e.busy++
		e.notFull.Broadcast()
		e.mu.Unlock()

		e.safeExecute(id, task)

		e.mu.Lock()
		e.busy--
		e.signalIdleLocked()
	}
}

func (e *Executor) signalIdleLocked() {
	if e.tasks.Length() == 0 && e.busy == 0 {
		e.idle.Broadcast()
	}
}

// safeExecute runs task and keeps a panic from killing the worker. Tasks
// are expected to record their own failures; a panic here is a bug.
func (e *Executor) safeExecute(id int, task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			buf = buf[:runtime.Stack(buf, false)]
			e.logger.Error("task panicked",
				zap.Int("worker", id),
				zap.Any("panic", r),
				zap.ByteString("stack", buf))
		}
	}()
	task()
}

var _ api.Executor = (*Executor)(nil)
