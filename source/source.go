// Package source opens the trace file the agent drains.
package source

import (
	"fmt"
	"os"
	"time"
)

// Source is an open trace file.
//
// trace_pipe_raw supports poll, so the runtime registers it with the network
// poller and a read deadline can unblock a pending Read. Regular files are
// never blocked on and ignore Interrupt.
type Source struct {
	f *os.File
}

// SourceOpenError is returned when the source cannot be opened.
type SourceOpenError struct {
	Path string
	Err  error
}

func (e *SourceOpenError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *SourceOpenError) Unwrap() error { return e.Err }

// Open opens path for reading.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceOpenError{Path: path, Err: err}
	}
	return &Source{f: f}, nil
}

func (s *Source) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

// Interrupt makes a blocked or future Read return os.ErrDeadlineExceeded. It
// reports whether the file supports this.
func (s *Source) Interrupt() bool {
	return s.f.SetReadDeadline(time.Unix(1, 0)) == nil
}

// Name returns the path the source was opened with.
func (s *Source) Name() string {
	return s.f.Name()
}

func (s *Source) Close() error {
	return s.f.Close()
}
