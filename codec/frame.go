// File: codec/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Zstandard frame and block headers (RFC 8878, sections 3.1.1 and 3.1.1.2).

package codec

import (
	"encoding/binary"
	"fmt"
)

const (
	// Magic opens every Zstandard frame.
	Magic = 0xFD2FB528

	// MaxFrameHeaderSize is magic + descriptor + window + 8-byte content size.
	MaxFrameHeaderSize = 4 + 1 + 1 + 8

	// BlockHeaderSize is the fixed 24-bit block header.
	BlockHeaderSize = 3

	// MaxBlockSize caps every block regardless of window.
	MaxBlockSize = 128 << 10

	// ChecksumSize is the trailing content checksum.
	ChecksumSize = 4

	WindowLogMin = 10
	WindowLogMax = 31
)

// BlockType is the 2-bit block type of a block header.
type BlockType uint8

const (
	BlockRaw BlockType = iota
	BlockRLE
	BlockCompressed
	blockReserved
)

func (t BlockType) String() string {
	switch t {
	case BlockRaw:
		return "raw"
	case BlockRLE:
		return "rle"
	case BlockCompressed:
		return "compressed"
	default:
		return "reserved"
	}
}

// FrameHeader describes the header the first job of a frame writes.
type FrameHeader struct {
	WindowLog   int
	Checksum    bool
	ContentSize int64 // < 0 when unknown
}

// Validate checks the window range.
func (h FrameHeader) Validate() error {
	if h.WindowLog < WindowLogMin || h.WindowLog > WindowLogMax {
		return fmt.Errorf("window log %d outside [%d, %d]", h.WindowLog, WindowLogMin, WindowLogMax)
	}
	return nil
}

// AppendTo appends the encoded header to dst. Content size, when known,
// uses the smallest field that holds it.
func (h FrameHeader) AppendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, Magic)

	var fcsFlag byte
	switch {
	case h.ContentSize < 0:
		fcsFlag = 0
	case h.ContentSize >= 256 && h.ContentSize < 256+1<<16:
		fcsFlag = 1
	case h.ContentSize <= 0xFFFFFFFF:
		fcsFlag = 2
	default:
		fcsFlag = 3
	}
	fhd := fcsFlag << 6
	if h.Checksum {
		fhd |= 1 << 2
	}
	dst = append(dst, fhd, byte(h.WindowLog-WindowLogMin)<<3)

	switch fcsFlag {
	case 1:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(h.ContentSize-256))
	case 2:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(h.ContentSize))
	case 3:
		dst = binary.LittleEndian.AppendUint64(dst, uint64(h.ContentSize))
	}
	return dst
}

// BlockSizeFor returns the largest block a frame with windowLog may carry.
func BlockSizeFor(windowLog int) int {
	return min(MaxBlockSize, 1<<windowLog)
}

// appendBlockHeader writes the 24-bit little-endian block header.
func appendBlockHeader(dst []byte, last bool, t BlockType, size int) []byte {
	v := uint32(size)<<3 | uint32(t)<<1
	if last {
		v |= 1
	}
	return append(dst, byte(v), byte(v>>8), byte(v>>16))
}

// AppendLastEmptyBlock appends an empty raw block flagged last.
func AppendLastEmptyBlock(dst []byte) []byte {
	return appendBlockHeader(dst, true, BlockRaw, 0)
}

// ParseBlockHeader decodes a block header from the first three bytes of b.
func ParseBlockHeader(b []byte) (last bool, t BlockType, size int, err error) {
	if len(b) < BlockHeaderSize {
		return false, 0, 0, fmt.Errorf("block header: need %d bytes, have %d", BlockHeaderSize, len(b))
	}
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	t = BlockType(v>>1) & 3
	if t == blockReserved {
		return false, t, 0, fmt.Errorf("block header: reserved type")
	}
	return v&1 == 1, t, int(v >> 3), nil
}

// CompressBound is the worst-case output of compressing n bytes as one
// frame with windowLog: every block raw, plus header and checksum. It stays
// valid when the bytes arrive split over several compress calls of at
// least one block each.
func CompressBound(n, windowLog int) int {
	bs := BlockSizeFor(windowLog)
	return n + (2*(n/bs)+2)*BlockHeaderSize + MaxFrameHeaderSize + ChecksumSize
}
