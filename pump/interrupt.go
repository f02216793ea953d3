package pump

import (
	"sync"
	"sync/atomic"
)

// Interrupt is the stop request shared between signal handling and the pump.
// It starts cleared and, once requested, stays set.
type Interrupt struct {
	requested atomic.Bool

	mu    sync.Mutex
	hooks []func()
}

// Request sets the interrupt and runs the registered hooks. Only the first
// call has any effect; it reports whether this call set the flag.
func (i *Interrupt) Request() bool {
	if !i.requested.CompareAndSwap(false, true) {
		return false
	}
	i.mu.Lock()
	hooks := i.hooks
	i.hooks = nil
	i.mu.Unlock()
	for _, h := range hooks {
		h()
	}
	return true
}

// Requested reports whether a stop has been requested.
func (i *Interrupt) Requested() bool {
	return i.requested.Load()
}

// OnRequest registers f to run when the interrupt is requested, typically to
// unblock a pending read. If the interrupt is already set f runs immediately.
func (i *Interrupt) OnRequest(f func()) {
	i.mu.Lock()
	if !i.requested.Load() {
		i.hooks = append(i.hooks, f)
		i.mu.Unlock()
		return
	}
	i.mu.Unlock()
	f()
}
