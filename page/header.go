// Package page decodes the per-page header of the kernel ring buffer as it
// is exposed through trace_pipe_raw.
//
// Layout of the first HeaderSize bytes of every page (host byte order):
//
//	offset 0  uint64 timestamp  opaque to the agent
//	offset 8  uint64 commit     bits 0-29 useful bytes, bit 30 missed count
//	                            stored at end of page, bit 31 missed events
package page

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const (
	// HeaderSize is the size of the page header in bytes.
	HeaderSize = 16

	timestampOffset = 0
	commitOffset    = 8

	// MissedEvents is set when the producer dropped events while filling the page.
	MissedEvents uint64 = 1 << 31
	// MissedStored is set when the missed count is stored at the end of the page.
	MissedStored uint64 = 1 << 30
	MissedFlags         = MissedEvents | MissedStored

	// CommitMask selects the useful byte count from the commit field.
	CommitMask uint64 = 1<<30 - 1
)

// ErrShortHeader is returned when a buffer is too small to hold a header.
var ErrShortHeader = errors.New("buffer shorter than page header")

// Header is the decoded page header.
type Header struct {
	Timestamp uint64
	Commit    uint64
}

// ParseHeader decodes the header at the start of b. It does not modify b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(b))
	}
	return Header{
		Timestamp: binary.NativeEndian.Uint64(b[timestampOffset:]),
		Commit:    binary.NativeEndian.Uint64(b[commitOffset:]),
	}, nil
}

// Useful returns the number of valid bytes the producer committed to the page.
func (h Header) Useful() uint64 {
	return h.Commit & CommitMask
}

// Missed reports whether events were dropped while this page was filled.
func (h Header) Missed() bool {
	return h.Commit&MissedEvents != 0
}

// MissedStored reports whether a missed event count trails the page data.
func (h Header) MissedStored() bool {
	return h.Commit&MissedStored != 0
}

// Put encodes h into the start of b, which must hold at least HeaderSize bytes.
func (h Header) Put(b []byte) {
	_ = b[HeaderSize-1]
	binary.NativeEndian.PutUint64(b[timestampOffset:], h.Timestamp)
	binary.NativeEndian.PutUint64(b[commitOffset:], h.Commit)
}

// Size returns the memory page size of the host. Pages read from
// trace_pipe_raw are always exactly this long.
func Size() int {
	return os.Getpagesize()
}
