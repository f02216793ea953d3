// Package marker writes raw timestamps into the trace stream so that trace
// clocks can be correlated with wall-clock time. To the agent, marker
// records are ordinary page payload.
package marker

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// Path is the tracefs file raw markers are written to.
const Path = "/sys/kernel/debug/tracing/trace_marker_raw"

// Size is the length of a marker record: a timeval of two 64-bit fields.
const Size = 16

// Encode returns the marker record for t: seconds then microseconds since the
// epoch, in host byte order.
func Encode(t time.Time) [Size]byte {
	var b [Size]byte
	binary.NativeEndian.PutUint64(b[0:], uint64(t.Unix()))
	binary.NativeEndian.PutUint64(b[8:], uint64(t.Nanosecond()/1000))
	return b
}

// Write writes the marker record for t to w in a single write.
func Write(w io.Writer, t time.Time) error {
	b := Encode(t)
	n, err := w.Write(b[:])
	if err != nil {
		return err
	}
	if n != Size {
		return fmt.Errorf("short marker write: %d of %d bytes", n, Size)
	}
	return nil
}

// WriteFile opens path write-only and writes the current time to it.
func WriteFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, time.Now())
}
