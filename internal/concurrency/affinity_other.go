// File: internal/concurrency/affinity_other.go
//go:build !linux

//
// Fallback for platforms without a thread affinity syscall wrapper.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

// platformPinCurrentThread reports that pinning is unavailable.
func platformPinCurrentThread(cpuID int) error {
	return ErrAffinityNotSupported
}

// platformUnpinCurrentThread is a no-op.
func platformUnpinCurrentThread() error {
	return nil
}
