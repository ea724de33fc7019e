// Package api
// Author: momentics
//
// Executor contract for the bounded job queue that runs compression jobs.

package api

// Executor abstracts a bounded FIFO of tasks served by long-lived workers.
type Executor interface {
	// Add schedules task, blocking while the queue is full.
	Add(task func()) error

	// TryAdd schedules task only if a queue slot is free right now.
	TryAdd(task func()) bool

	// NumWorkers returns current number of active worker routines.
	NumWorkers() int

	// Resize adjusts the concurrency without dropping queued work.
	Resize(newCount int) error

	// JoinIdle blocks until the queue is drained and every worker is idle.
	JoinIdle()

	// JoinAll stops the workers after the queue has been drained.
	JoinAll()

	// SizeOf reports an estimate of the memory held by the executor.
	SizeOf() int
}
