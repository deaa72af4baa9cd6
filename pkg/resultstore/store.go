// Package resultstore persists job identities and statuses in a SQLite
// database inside the results directory.
//
// The store is the authoritative record for downstream result analysis. For
// scheduling it is strictly a sink: the manifest header decides what runs
// next, and the store's rows may lag the header by at most one job after a
// crash (the next idempotent row update repairs the lag).
package resultstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DBFileName is the name of the store file inside a results directory.
const DBFileName = "coldrun.db"

// Config configures how the store is opened.
type Config struct {
	// Path is the local filesystem path to the store database.
	Path string
}

// Store wraps the database connection for one experiment's results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (and creates if needed) the SQLite store at cfg.Path.
//
// Parent directories are created if missing. WAL and a busy timeout are
// applied for predictable single-writer CLI behavior.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("result store path is required")
	}
	if path != ":memory:" {
		if err := ensureStoreDir(path); err != nil {
			return nil, err
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = "file:" + filepath.Clean(path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping result store: %w", err)
	}
	if err := configureLocalSQLite(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// OpenDir opens the store at its conventional location inside resultsDir.
func OpenDir(ctx context.Context, resultsDir string) (*Store, error) {
	return Open(ctx, Config{Path: filepath.Join(resultsDir, DBFileName)})
}

// Path returns the filesystem path of the store database.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	if dsn == ":memory:" {
		return nil
	}

	// Keep a single connection and use WAL to reduce lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
