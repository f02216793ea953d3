package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jnesss/trace-agent/pump"
)

func TestReportZeroProgress(t *testing.T) {
	r := FromSnapshot(pump.Snapshot{})
	assert.True(t, math.IsNaN(r.Ratio))
	assert.Equal(t, "progress: 0/0 bytes = NaN, missed false (0 B of 0 B)", r.String())
	assert.Equal(t, "NaN", r.Event()["ratio"])
}

func TestReport(t *testing.T) {
	r := FromSnapshot(pump.Snapshot{Progress: 8192, Useful: 2048, Missed: true})
	assert.Equal(t, "progress: 2048/8192 bytes = 0.250000, missed true (2.0 KiB of 8.0 KiB)", r.String())
	assert.Equal(t, map[string]interface{}{
		"useful":   "2048",
		"progress": "8192",
		"ratio":    "0.2500",
		"missed":   "true",
	}, r.Event())
}
