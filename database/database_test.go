package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnesss/trace-agent/pump"
)

func TestSessionJournal(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	id, err := db.StartSession("/sys/kernel/debug/tracing/per_cpu/cpu0/trace_pipe_raw", "collector:9000")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sessions, err := db.Sessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Finished)

	snap := pump.Snapshot{Progress: 8192, Useful: 300, Missed: true}
	require.NoError(t, db.FinishSession(id, snap, 0xfeedfacecafebeef, 0))

	sessions, err = db.Sessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "collector:9000", s.Destination)
	assert.True(t, s.Finished)
	assert.Equal(t, uint64(8192), s.Progress)
	assert.Equal(t, uint64(300), s.Useful)
	assert.True(t, s.Missed)
	assert.Equal(t, uint64(0xfeedfacecafebeef), s.Digest)
	assert.Zero(t, s.ExitStatus)
}

func TestFinishUnknownSession(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, db.FinishSession("missing", pump.Snapshot{}, 0, 1))
}
