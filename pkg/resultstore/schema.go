package resultstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const schemaVersion = 1

// Meta is the experiment identity row written once at schema creation.
type Meta struct {
	ExperimentID string
	NumJobs      int
	Pexecs       int
	CreatedAt    time.Time
}

// EnsureSchema creates the store schema if it does not exist yet.
//
// The operation is idempotent: a process killed between creating the results
// directory and creating the store heals on the next invocation. The
// experiment id is generated on first creation and preserved afterwards.
func (s *Store) EnsureSchema(ctx context.Context, numJobs, pexecs int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS store_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL,
			experiment_id TEXT NOT NULL,
			num_jobs INTEGER NOT NULL,
			pexecs INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS job (
			job_id INTEGER PRIMARY KEY,
			key TEXT NOT NULL,
			status INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO store_meta (id, schema_version, experiment_id, num_jobs, pexecs, created_at)
		 VALUES (1, ?, ?, ?, ?, ?)`,
		schemaVersion, uuid.New().String(), numJobs, pexecs, now); err != nil {
		return fmt.Errorf("init store meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Meta reads the experiment identity row.
func (s *Store) Meta(ctx context.Context) (*Meta, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var m Meta
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT experiment_id, num_jobs, pexecs, created_at FROM store_meta WHERE id = 1`,
	).Scan(&m.ExperimentID, &m.NumJobs, &m.Pexecs, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store has no meta row; schema was never initialized")
		}
		return nil, fmt.Errorf("read store meta: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse store created_at: %w", err)
	}
	m.CreatedAt = t
	return &m, nil
}
