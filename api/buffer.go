// Package api
// Author: momentics
//
// Caller-owned stream buffers used by the streaming compression API.
// Dst/Src are never retained by the engine past the call that received them.

package api

// InBuffer is the caller's input window. Pos is advanced by the engine.
type InBuffer struct {
	Src []byte
	Pos int
}

// Remaining returns the unconsumed part of Src.
func (b *InBuffer) Remaining() int { return len(b.Src) - b.Pos }

// OutBuffer is the caller's output window. Pos is advanced by the engine.
type OutBuffer struct {
	Dst []byte
	Pos int
}

// Avail returns the free space left in Dst.
func (b *OutBuffer) Avail() int { return len(b.Dst) - b.Pos }

// Bytes returns the produced part of Dst.
func (b *OutBuffer) Bytes() []byte { return b.Dst[:b.Pos] }

// EndDirective tells the engine what to do with staged input.
type EndDirective int

const (
	// Continue stages input and compresses whenever a job is full.
	Continue EndDirective = iota
	// Flush cuts a job from whatever is staged and flushes it.
	Flush
	// End finishes the frame.
	End
)

func (d EndDirective) String() string {
	switch d {
	case Continue:
		return "continue"
	case Flush:
		return "flush"
	case End:
		return "end"
	}
	return "unknown"
}

// ResetDirective selects what Reset clears.
type ResetDirective int

const (
	ResetSessionOnly ResetDirective = iota + 1
	ResetParameters
	ResetSessionAndParameters
)
