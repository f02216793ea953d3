package main

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnesss/trace-agent/pump"
	"github.com/jnesss/trace-agent/rules"
)

func newTestHandler() (*signalHandler, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	return &signalHandler{
		log:       logger,
		interrupt: &pump.Interrupt{},
		counters:  &pump.Counters{},
	}, hook
}

func TestTerminateSetsInterrupt(t *testing.T) {
	h, hook := newTestHandler()
	h.handle(syscall.SIGTERM)
	assert.True(t, h.interrupt.Requested())
	require.Len(t, hook.AllEntries(), 1)

	// A repeated request is not logged again.
	h.handle(syscall.SIGINT)
	assert.Len(t, hook.AllEntries(), 1)
}

func TestPollWithoutProgress(t *testing.T) {
	h, hook := newTestHandler()
	h.handle(syscall.SIGIO)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "progress: 0/0 bytes = NaN, missed false")
	assert.False(t, h.interrupt.Requested())
}

func TestPollChecksRules(t *testing.T) {
	dir := t.TempDir()
	rule := `title: Nothing forwarded yet
id: 0d6f9a52-6c1e-4d7e-9a51-6f3b1f2b7c10
level: high
logsource:
  product: trace-agent
detection:
  selection:
    progress: '0'
  condition: selection
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "idle.yml"), []byte(rule), 0o644))

	h, hook := newTestHandler()
	d, err := rules.NewDetector(dir, h.log)
	require.NoError(t, err)
	defer d.Close()
	h.detector = d

	h.handle(syscall.SIGIO)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, "Nothing forwarded yet")
}

func TestUrgent(t *testing.T) {
	h, hook := newTestHandler()

	// File destinations have no socket to query.
	h.handle(syscall.SIGURG)
	assert.Empty(t, hook.AllEntries())

	// Preemption signals arrive with no pending error.
	h.pendingError = func() error { return nil }
	h.handle(syscall.SIGURG)
	assert.Empty(t, hook.AllEntries())

	h.pendingError = func() error { return syscall.ECONNRESET }
	h.handle(syscall.SIGURG)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "socket emergency")
	assert.False(t, h.interrupt.Requested())
	assert.Equal(t, pump.Snapshot{}, h.counters.Snapshot())
}

func TestSignalDelivery(t *testing.T) {
	h, hook := newTestHandler()
	h.pendingError = func() error { return nil }
	stop := h.start()
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGIO))
	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.ErrorLevel && strings.HasPrefix(e.Message, "progress:") {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	require.Eventually(t, h.interrupt.Requested, 5*time.Second, 10*time.Millisecond)
}

func TestTerminateNotLostBehindUrgentBurst(t *testing.T) {
	h, _ := newTestHandler()
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h.pendingError = func() error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}
	stop := h.start()
	defer stop()

	// Hold the dispatcher in the urgent handler while the diagnostic
	// channel overflows.
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGURG))
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("urgent handler not called")
	}
	for i := 0; i < 64; i++ {
		require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGURG))
	}
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, h.interrupt.Requested())

	close(release)
	require.Eventually(t, h.interrupt.Requested, 5*time.Second, 10*time.Millisecond)
}
