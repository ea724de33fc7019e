// File: codec/block.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Literal-only block coder. A block is RLE when it holds one repeated byte,
// compressed when Huffman-coded literals with an empty sequences section
// beat the raw size, raw otherwise.

package codec

import (
	"errors"
	"math/bits"

	"github.com/klauspost/compress/huff0"
)

const (
	literalsCompressed = 2

	// below these sizes Huffman tables cost more than they save
	minHuffLiterals    = 32
	min4StreamLiterals = 1024
)

// blockStats counts emitted blocks by type.
type blockStats struct {
	Raw        int64
	RLE        int64
	Compressed int64
}

// literalsHeaderSize returns the size of a compressed literals section
// header and its size-format field.
func literalsHeaderSize(compLen, regenLen int, single bool) (size int, format uint32, ok bool) {
	cb, rb := bits.Len32(uint32(compLen)), bits.Len32(uint32(regenLen))
	switch {
	case cb <= 10 && rb <= 10:
		if single {
			return 3, 0, true
		}
		return 3, 1, true
	case single:
		return 0, 0, false
	case cb <= 14 && rb <= 14:
		return 4, 2, true
	case cb <= 18 && rb <= 18:
		return 5, 3, true
	}
	return 0, 0, false
}

func appendLiteralsHeader(dst []byte, size int, format uint32, compLen, regenLen int) []byte {
	var shift uint
	switch size {
	case 3:
		shift = 10
	case 4:
		shift = 14
	default:
		shift = 18
	}
	v := uint64(literalsCompressed) | uint64(format)<<2 | uint64(regenLen)<<4 | uint64(compLen)<<(4+shift)
	for i := 0; i < size; i++ {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

func isRLE(src []byte) bool {
	if len(src) == 0 {
		return false
	}
	c := src[0]
	for _, b := range src[1:] {
		if b != c {
			return false
		}
	}
	return true
}

// encodeBlock appends one block holding src, at most BlockSizeFor(window)
// bytes, and records its type in st.
func encodeBlock(dst, src []byte, last bool, scratch *huff0.Scratch, st *blockStats) ([]byte, error) {
	if isRLE(src) && len(src) > 1 {
		st.RLE++
		dst = appendBlockHeader(dst, last, BlockRLE, len(src))
		return append(dst, src[0]), nil
	}
	if len(src) >= minHuffLiterals {
		var (
			out    []byte
			err    error
			single = len(src) < min4StreamLiterals
		)
		scratch.Reuse = huff0.ReusePolicyNone
		if single {
			out, _, err = huff0.Compress1X(src, scratch)
		} else {
			out, _, err = huff0.Compress4X(src, scratch)
		}
		switch {
		case err == nil:
			hsize, format, ok := literalsHeaderSize(len(out), len(src), single)
			// block = literals header + streams + one byte of zero sequences
			if body := hsize + len(out) + 1; ok && body < len(src) {
				st.Compressed++
				dst = appendBlockHeader(dst, last, BlockCompressed, body)
				dst = appendLiteralsHeader(dst, hsize, format, len(out), len(src))
				dst = append(dst, out...)
				return append(dst, 0), nil
			}
		case errors.Is(err, huff0.ErrIncompressible), errors.Is(err, huff0.ErrUseRLE):
		default:
			return dst, err
		}
	}
	st.Raw++
	dst = appendBlockHeader(dst, last, BlockRaw, len(src))
	return append(dst, src...), nil
}
