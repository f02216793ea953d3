// Package report formats progress reports of the page pump.
package report

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/jnesss/trace-agent/pump"
)

// Report is a point-in-time view of the pump counters.
type Report struct {
	Useful   uint64
	Progress uint64
	// Ratio is Useful/Progress, NaN before the first page completes.
	Ratio  float64
	Missed bool
}

// FromSnapshot builds a report from one consistent snapshot.
func FromSnapshot(s pump.Snapshot) Report {
	return Report{
		Useful:   s.Useful,
		Progress: s.Progress,
		Ratio:    s.Ratio(),
		Missed:   s.Missed,
	}
}

func (r Report) String() string {
	return fmt.Sprintf("progress: %d/%d bytes = %f, missed %t (%s of %s)",
		r.Useful, r.Progress, r.Ratio, r.Missed,
		humanize.IBytes(r.Useful), humanize.IBytes(r.Progress))
}

// Event returns the report as a flat event for rule evaluation. All values
// are strings so rules can match them literally.
func (r Report) Event() map[string]interface{} {
	return map[string]interface{}{
		"useful":   strconv.FormatUint(r.Useful, 10),
		"progress": strconv.FormatUint(r.Progress, 10),
		"ratio":    strconv.FormatFloat(r.Ratio, 'f', 4, 64),
		"missed":   strconv.FormatBool(r.Missed),
	}
}
