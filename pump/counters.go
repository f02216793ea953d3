package pump

import (
	"math"
	"sync"

	"github.com/jnesss/trace-agent/page"
)

// Counters tracks how much data the pump has moved. It is written by the
// pump once per page and may be read at any time from other goroutines.
type Counters struct {
	mu       sync.Mutex
	progress uint64
	useful   uint64
	missed   bool
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	// Progress is the number of bytes read from the source for completed pages.
	Progress uint64
	// Useful is the sum of the committed byte counts of completed pages.
	Useful uint64
	// Missed is set once any page reported dropped events.
	Missed bool
}

// Ratio returns Useful/Progress. It is NaN while no page has completed.
func (s Snapshot) Ratio() float64 {
	if s.Progress == 0 {
		return math.NaN()
	}
	return float64(s.Useful) / float64(s.Progress)
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Progress: c.progress,
		Useful:   c.useful,
		Missed:   c.missed,
	}
}

// commit accounts one forwarded page of n bytes with header h. All fields
// change under one lock so a snapshot never sees half a page.
func (c *Counters) commit(h page.Header, n int) {
	c.mu.Lock()
	c.progress += uint64(n)
	c.useful += h.Useful()
	c.missed = c.missed || h.Missed()
	c.mu.Unlock()
}
