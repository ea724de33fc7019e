// File: zstdmt/params.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine parameters, their defaults, YAML loading and the sizes derived
// from them (job size, overlap, sync mask).

package zstdmt

import (
	"fmt"
	"math/bits"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-zstd/api"
	"github.com/momentics/hioload-zstd/codec"
	"github.com/momentics/hioload-zstd/internal/ldm"
)

const (
	// JobSizeMin is the smallest job the engine cuts.
	JobSizeMin = 512 << 10

	jobLogMax32 = 29
	jobLogMax64 = 30

	// WindowLogMin and WindowLogMax bound Params.WindowLog.
	WindowLogMin = codec.WindowLogMin
	WindowLogMax = 30

	// OverlapLogMax means a full window of overlap.
	OverlapLogMax      = 9
	defaultOverlapLog  = 6
	chunkSize          = 4 * codec.MaxBlockSize
	levelMin, levelMax = -7, 22
)

// jobLogMax is 29 on 32-bit and 30 on 64-bit platforms.
var jobLogMax = func() int {
	if bits.UintSize == 32 {
		return jobLogMax32
	}
	return jobLogMax64
}()

// JobSizeMax is the largest job the engine cuts.
var JobSizeMax = 1 << jobLogMax

// Params configures an Engine. Zero values of JobSize, OverlapLog,
// LDMHashLog and LDMMinMatch select defaults.
type Params struct {
	Workers     int  `yaml:"workers"`
	JobSize     int  `yaml:"job_size"`
	OverlapLog  int  `yaml:"overlap_log"`
	WindowLog   int  `yaml:"window_log"`
	Level       int  `yaml:"level"`
	Checksum    bool `yaml:"checksum"`
	LDM         bool `yaml:"ldm"`
	Rsyncable   bool `yaml:"rsyncable"`
	LDMHashLog  int  `yaml:"ldm_hash_log"`
	LDMMinMatch int  `yaml:"ldm_min_match"`
}

// DefaultParams returns default configuration values.
func DefaultParams() Params {
	return Params{
		Workers:   4,  // four compression workers
		WindowLog: 21, // 2 MiB window, 8 MiB auto job size
		Level:     3,
		Checksum:  true,
	}
}

// ParseParams reads YAML over DefaultParams and validates the result.
func ParseParams(data []byte) (Params, error) {
	p := DefaultParams()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, api.Wrap(api.ErrCodeInvalidParameter, "params: yaml", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks every field range.
func (p Params) Validate() error {
	bad := func(field string, v any) error {
		return api.ErrInvalidParameter.WithContext("field", field).WithContext("value", v)
	}
	switch {
	case p.Workers < 1:
		return bad("workers", p.Workers)
	case p.JobSize < 0:
		return bad("job_size", p.JobSize)
	case p.OverlapLog < 0 || p.OverlapLog > OverlapLogMax:
		return bad("overlap_log", p.OverlapLog)
	case p.WindowLog < WindowLogMin || p.WindowLog > WindowLogMax:
		return bad("window_log", p.WindowLog)
	case p.Level < levelMin || p.Level > levelMax:
		return bad("level", p.Level)
	case p.LDMMinMatch != 0 && (p.LDMMinMatch < ldm.MinMatchMin || p.LDMMinMatch > ldm.MinMatchMax):
		return bad("ldm_min_match", p.LDMMinMatch)
	case p.LDMHashLog < 0 || p.LDMHashLog > 30:
		return bad("ldm_hash_log", p.LDMHashLog)
	}
	return nil
}

// TargetJobSize is the effective job size: JobSize clamped to
// [JobSizeMin, JobSizeMax], or derived from the window when JobSize is 0.
func (p Params) TargetJobSize() int {
	if p.JobSize == 0 {
		jobLog := max(20, p.WindowLog+2)
		if p.LDM {
			jobLog = max(21, p.WindowLog+3)
		}
		return 1 << min(jobLog, jobLogMax)
	}
	return min(max(p.JobSize, JobSizeMin), JobSizeMax)
}

// OverlapSize is the prefix each job carries from its predecessor. Overlap
// log 1 disables it, 9 uses a full window, 0 selects 6 (an eighth).
func (p Params) OverlapSize() int {
	ov := p.OverlapLog
	if ov == 0 {
		ov = defaultOverlapLog
	}
	rlog := OverlapLogMax - ov
	if rlog >= 8 {
		return 0
	}
	wlog := p.WindowLog
	if p.LDM {
		jobLog := bits.Len(uint(p.TargetJobSize())) - 1
		wlog = min(p.WindowLog, jobLog-2)
	}
	if wlog-rlog <= 0 {
		return 0
	}
	return 1 << (wlog - rlog)
}

// ldmParams maps the engine fields onto the index configuration.
func (p Params) ldmParams() ldm.Params {
	return ldm.Params{
		WindowLog: p.WindowLog,
		HashLog:   p.LDMHashLog,
		MinMatch:  p.LDMMinMatch,
	}
}

func (p Params) String() string {
	return fmt.Sprintf("workers=%d job=%d overlap=%d window=%d level=%d checksum=%t ldm=%t rsync=%t",
		p.Workers, p.TargetJobSize(), p.OverlapSize(), p.WindowLog, p.Level, p.Checksum, p.LDM, p.Rsyncable)
}
