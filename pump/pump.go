// Package pump moves trace pages from a source to a sink one page at a time,
// accounting for the useful bytes reported in each page header.
//
// A page is either fully read, accounted, written and flushed, or, when a
// stop is requested while it is still being read, dropped entirely. Writes
// are never abandoned once a page has been read, so the sink never receives
// a truncated page.
package pump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/jnesss/trace-agent/page"
)

// Source is the readable end of the pump, usually a trace_pipe_raw file.
type Source interface {
	Read(p []byte) (int, error)
}

// Sink is the writable end of the pump.
type Sink interface {
	io.Writer
	// Sync forces written data to durable storage where that applies.
	Sync() error
}

var (
	// ErrInterrupted may be returned by a Source or Sink to signal that an
	// operation was interrupted and may be retried.
	ErrInterrupted = errors.New("operation interrupted")
	// ErrTruncatedPage is returned when the source ends partway through a page.
	ErrTruncatedPage = errors.New("source ended inside a page")

	errPageDropped = errors.New("page dropped on interrupt")
)

// ReadError is a fatal error reading from the source.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "reading stopped: " + e.Err.Error() }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError is a fatal error writing to the sink.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "writing stopped: " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// IsInterrupted reports whether err means the operation was interrupted
// rather than failed: EINTR, a read deadline forced by an interrupt hook, or
// ErrInterrupted.
func IsInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, ErrInterrupted)
}

// Option configures a Pump.
type Option interface {
	apply(*Pump)
}

type optionFunc func(*Pump)

func (f optionFunc) apply(p *Pump) { f(p) }

// WithPageSize overrides the host page size.
func WithPageSize(n int) Option {
	return optionFunc(func(p *Pump) { p.pageSize = n })
}

// WithInterrupt shares an interrupt with signal handling.
func WithInterrupt(i *Interrupt) Option {
	return optionFunc(func(p *Pump) { p.interrupt = i })
}

// WithCounters shares counters with progress reporting.
func WithCounters(c *Counters) Option {
	return optionFunc(func(p *Pump) { p.counters = c })
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return optionFunc(func(p *Pump) { p.log = l })
}

// Pump copies pages from a Source to a Sink.
type Pump struct {
	src       Source
	dst       Sink
	pageSize  int
	interrupt *Interrupt
	counters  *Counters
	log       logrus.FieldLogger
}

// New creates a pump from src to dst.
func New(src Source, dst Sink, opts ...Option) *Pump {
	p := &Pump{
		src:      src,
		dst:      dst,
		pageSize: page.Size(),
		log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o.apply(p)
	}
	if p.interrupt == nil {
		p.interrupt = &Interrupt{}
	}
	if p.counters == nil {
		p.counters = &Counters{}
	}
	return p
}

// Counters returns the counters updated by the pump.
func (p *Pump) Counters() *Counters {
	return p.counters
}

// Interrupt returns the stop request observed by the pump.
func (p *Pump) Interrupt() *Interrupt {
	return p.interrupt
}

// Run pumps pages until a stop is requested, the source is exhausted at a
// page boundary, or a fatal error occurs. Cancelling ctx is equivalent to
// requesting the interrupt. A nil return means a clean stop.
func (p *Pump) Run(ctx context.Context) error {
	if p.pageSize < page.HeaderSize {
		return fmt.Errorf("page size %d smaller than header", p.pageSize)
	}
	stop := context.AfterFunc(ctx, func() { p.interrupt.Request() })
	defer stop()

	buf := make([]byte, p.pageSize)
	for {
		n, err := p.readPage(ctx, buf)
		switch {
		case errors.Is(err, errPageDropped):
			p.log.Infof("interrupted, dropped %d bytes of unfinished page", n)
			return nil
		case errors.Is(err, io.EOF):
			p.log.Debug("source exhausted")
			return nil
		case err != nil:
			return err
		}

		hdr, err := page.ParseHeader(buf)
		if err != nil {
			return err
		}

		if err := p.writePage(buf[:n]); err != nil {
			return err
		}
		if err := p.dst.Sync(); err != nil {
			p.log.Warnf("failed to sync sink: %v", err)
		}
		p.counters.commit(hdr, n)

		if p.stopping(ctx) {
			p.log.Info("interrupted")
			return nil
		}
	}
}

// stopping reports whether a stop was requested, either through the
// interrupt or by cancelling ctx.
func (p *Pump) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		p.interrupt.Request()
	}
	return p.interrupt.Requested()
}

// readPage fills buf from the source. Interrupted reads are retried until a
// stop is requested, at which point the partial page is abandoned.
func (p *Pump) readPage(ctx context.Context, buf []byte) (int, error) {
	var n int
	for n < len(buf) {
		m, err := p.src.Read(buf[n:])
		n += m
		if err == nil {
			continue
		}
		switch {
		case IsInterrupted(err):
			if !p.stopping(ctx) || n == len(buf) {
				continue
			}
			return n, errPageDropped
		case errors.Is(err, io.EOF):
			if n == 0 {
				return 0, io.EOF
			}
			if n == len(buf) {
				return n, nil
			}
			return n, fmt.Errorf("%w: read %d of %d bytes", ErrTruncatedPage, n, len(buf))
		default:
			return n, &ReadError{Err: err}
		}
	}
	return n, nil
}

// writePage writes all of buf to the sink. Interrupted writes are always
// retried, even after a stop request.
func (p *Pump) writePage(buf []byte) error {
	var n int
	for n < len(buf) {
		m, err := p.dst.Write(buf[n:])
		n += m
		if err != nil {
			if IsInterrupted(err) {
				continue
			}
			return &WriteError{Err: err}
		}
		if m == 0 {
			return &WriteError{Err: io.ErrShortWrite}
		}
	}
	return nil
}
