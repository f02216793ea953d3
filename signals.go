package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/jnesss/trace-agent/pump"
	"github.com/jnesss/trace-agent/report"
	"github.com/jnesss/trace-agent/rules"
)

var (
	terminateSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	// urgentSignal is raised for out-of-band data on the destination socket.
	// The runtime also sends it to itself for preemption.
	urgentSignal os.Signal = syscall.SIGURG
	pollSignal   os.Signal = syscall.SIGIO
)

// signalHandler turns asynchronous signals into interrupt requests and
// diagnostics. All signals are handled on one goroutine.
type signalHandler struct {
	log       logrus.FieldLogger
	interrupt *pump.Interrupt
	counters  *pump.Counters
	detector  *rules.Detector
	// pendingError returns the destination socket's pending error; nil for
	// file destinations.
	pendingError func() error
}

// start installs the handlers. The returned function uninstalls them and
// waits for any handler in progress. Terminate requests have their own
// channel so a burst of runtime SIGURGs cannot crowd them out.
func (h *signalHandler) start() func() {
	term := make(chan os.Signal, len(terminateSignals))
	signal.Notify(term, terminateSignals...)
	diag := make(chan os.Signal, 8)
	signal.Notify(diag, urgentSignal, pollSignal)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for term != nil || diag != nil {
			select {
			case sig, ok := <-term:
				if !ok {
					term = nil
					continue
				}
				h.handle(sig)
			case sig, ok := <-diag:
				if !ok {
					diag = nil
					continue
				}
				h.handle(sig)
			}
		}
	}()

	return func() {
		signal.Stop(term)
		signal.Stop(diag)
		close(term)
		close(diag)
		<-done
	}
}

func (h *signalHandler) handle(sig os.Signal) {
	switch sig {
	case urgentSignal:
		h.urgent()
	case pollSignal:
		h.poll()
	default:
		if h.interrupt.Request() {
			h.log.Infof("interrupted by %v", sig)
		}
	}
}

func (h *signalHandler) urgent() {
	if h.pendingError == nil {
		return
	}
	if err := h.pendingError(); err != nil {
		h.log.Errorf("socket emergency: %v", err)
	}
}

func (h *signalHandler) poll() {
	r := report.FromSnapshot(h.counters.Snapshot())
	h.log.Error(r.String())
	if h.detector == nil {
		return
	}
	for _, m := range h.detector.CheckEvent(context.Background(), r.Event()) {
		h.log.Warn(m.String())
	}
}
