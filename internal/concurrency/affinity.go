// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-platform CPU affinity for executor workers and CPU feature reporting.

package concurrency

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to CPU slot % NumCPUs(). The lock is kept on failure so that
// UnpinCurrentThread is always safe to call.
func PinCurrentThread(slot int) error {
	runtime.LockOSThread()
	return platformPinCurrentThread(slot % NumCPUs())
}

// UnpinCurrentThread clears the affinity set by PinCurrentThread.
func UnpinCurrentThread() {
	_ = platformUnpinCurrentThread()
	runtime.UnlockOSThread()
}

// CPUFeatures reports the SIMD features relevant to hashing and copying.
func CPUFeatures() map[string]bool {
	return map[string]bool{
		"x86.sse2":    cpu.X86.HasSSE2,
		"x86.sse41":   cpu.X86.HasSSE41,
		"x86.avx2":    cpu.X86.HasAVX2,
		"x86.bmi2":    cpu.X86.HasBMI2,
		"x86.avx512":  cpu.X86.HasAVX512F,
		"arm64.asimd": cpu.ARM64.HasASIMD,
		"arm64.crc32": cpu.ARM64.HasCRC32,
	}
}
