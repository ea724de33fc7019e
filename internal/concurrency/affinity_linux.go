// File: internal/concurrency/affinity_linux.go
//go:build linux

//
// Linux worker pinning through sched_setaffinity.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// platformPinCurrentThread binds the current OS thread to cpuID.
func platformPinCurrentThread(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return nil
}

// platformUnpinCurrentThread allows the current thread on every CPU again.
func platformUnpinCurrentThread() error {
	var set unix.CPUSet
	set.Zero()
	for i := 0; i < NumCPUs(); i++ {
		set.Set(i)
	}
	return unix.SchedSetaffinity(0, &set)
}
