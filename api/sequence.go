// Package api
// Author: momentics
//
// Match-sequence records exchanged between the long-distance matcher and
// the single-job compressor.

package api

// RawSeq is one long-distance match: LitLength literals followed by
// MatchLength bytes copied from Offset bytes back.
type RawSeq struct {
	Offset      uint32
	LitLength   uint32
	MatchLength uint32
}

// RawSeqSize is the in-memory size of one RawSeq record.
const RawSeqSize = 12
