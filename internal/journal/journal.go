// Package journal persists an append-only record of runs and per-record
// replay outcomes to SQLite. It exists for post-hoc troubleshooting only:
// the engine never reads it, and reconciliation state always comes from the
// target system's audit log.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nagag08/rbpromotionsync/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Journal is an open run journal bound to one run ID.
type Journal struct {
	db    *sql.DB
	runID string
}

// Open creates or opens the journal database at path and inserts a run row
// for runID. mode is "sweep" or "event".
//
// The database is configured the same way for every writer: WAL mode,
// NORMAL synchronous, 5-second busy timeout, foreign keys on, and a single
// connection since SQLite allows one writer at a time.
func Open(path, runID, mode string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: connect: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}

	if _, err := db.Exec(
		`INSERT INTO runs (id, mode, started_at) VALUES (?, ?, ?)`,
		runID, mode, time.Now().UnixMilli(),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: insert run: %w", err)
	}

	return &Journal{db: db, runID: runID}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("journal: execute %q: %w", pragma, err)
		}
	}
	return nil
}

// RecordReplay appends one replay outcome. Implements engine.Journal.
func (j *Journal) RecordReplay(ctx context.Context, id engine.BundleIdentity, rec engine.PromotionRecord, status, detail string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO replays
		   (run_id, bundle_name, bundle_version, project_key, environment,
		    status, detail, created_millis, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, id.Name, id.Version, id.ProjectKey, rec.Environment,
		status, detail, rec.CreatedMillis, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal: record replay: %w", err)
	}
	return nil
}

// Close stamps the run's finish time and closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	_, err := j.db.Exec(
		`UPDATE runs SET finished_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), j.runID,
	)
	if closeErr := j.db.Close(); err == nil {
		err = closeErr
	}
	return err
}
