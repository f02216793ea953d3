// Package database keeps a journal of agent sessions in SQLite: one row per
// run with its endpoints, final counters and stream digest.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jnesss/trace-agent/pump"
)

// DB handles database operations
type DB struct {
	Db *sql.DB
}

// SessionRecord represents one agent run in the database
type SessionRecord struct {
	ID          string
	Source      string
	Destination string
	StartTime   time.Time
	EndTime     time.Time
	Progress    uint64
	Useful      uint64
	Missed      bool
	Digest      uint64
	ExitStatus  int
	Finished    bool
}

// NewDB opens (creating if needed) the journal at dbPath.
func NewDB(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %v", err)
	}

	return &DB{Db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id           TEXT PRIMARY KEY,
		source       TEXT NOT NULL,
		destination  TEXT NOT NULL,
		start_time   DATETIME NOT NULL,
		end_time     DATETIME,
		progress     INTEGER NOT NULL DEFAULT 0,
		useful       INTEGER NOT NULL DEFAULT 0,
		missed       BOOLEAN NOT NULL DEFAULT 0,
		digest       TEXT,
		exit_status  INTEGER
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_start_time ON sessions(start_time);"); err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// StartSession records the start of a run and returns its ID.
func (db *DB) StartSession(source, destination string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	query := `INSERT INTO sessions (id, source, destination, start_time) VALUES (?, ?, ?, ?)`
	if _, err := db.Db.Exec(query, id.String(), source, destination, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	return id.String(), nil
}

// FinishSession records the final counters of a run.
func (db *DB) FinishSession(id string, snap pump.Snapshot, digest uint64, exitStatus int) error {
	query := `
		UPDATE sessions SET
			end_time = ?,
			progress = ?,
			useful = ?,
			missed = ?,
			digest = ?,
			exit_status = ?
		WHERE id = ?`

	result, err := db.Db.Exec(query,
		time.Now().UTC(),
		int64(snap.Progress),
		int64(snap.Useful),
		snap.Missed,
		fmt.Sprintf("%016x", digest),
		exitStatus,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown session %s", id)
	}
	return nil
}

// Sessions returns up to limit sessions, most recent first.
func (db *DB) Sessions(limit int) ([]SessionRecord, error) {
	query := `
		SELECT id, source, destination, start_time, end_time,
			progress, useful, missed, digest, exit_status
		FROM sessions
		ORDER BY start_time DESC
		LIMIT ?`

	rows, err := db.Db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var endTime sql.NullTime
		var digest sql.NullString
		var exitStatus sql.NullInt64
		var progress, useful int64
		if err := rows.Scan(&r.ID, &r.Source, &r.Destination, &r.StartTime, &endTime,
			&progress, &useful, &r.Missed, &digest, &exitStatus); err != nil {
			return nil, err
		}
		r.Progress = uint64(progress)
		r.Useful = uint64(useful)
		if endTime.Valid {
			r.EndTime = endTime.Time
			r.Finished = true
		}
		if digest.Valid {
			fmt.Sscanf(digest.String, "%x", &r.Digest)
		}
		if exitStatus.Valid {
			r.ExitStatus = int(exitStatus.Int64)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.Db.Close()
}
