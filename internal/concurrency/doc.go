// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-zstd: the bounded job queue and worker
// pool that run compression jobs, plus optional CPU pinning of workers.
package concurrency
