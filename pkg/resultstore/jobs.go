package resultstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coldrunhq/coldrun/pkg/schedule"
)

// SeedJobs inserts one row per job, leaving existing rows untouched.
//
// Seeding runs on every invocation, so a crash between schema creation and
// the first status write cannot leave the table half-populated for good.
func (s *Store) SeedJobs(ctx context.Context, jobs []schedule.Job) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO job (job_id, key, status) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare job insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, job := range jobs {
		if _, err := stmt.ExecContext(ctx, job.ID, job.Key, int(job.Status)); err != nil {
			return fmt.Errorf("seed job %d: %w", job.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}

// UpdateStatus sets the status of one job row. Overwriting a row with the
// same status is harmless, which is what makes post-crash re-flushes safe.
func (s *Store) UpdateStatus(ctx context.Context, jobID int, status schedule.Status) error {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE job SET status = ? WHERE job_id = ?`, int(status), jobID)
	if err != nil {
		return fmt.Errorf("update job %d status: %w", jobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %d has no row in the store", jobID)
	}
	return nil
}

// Job reads one job row.
func (s *Store) Job(ctx context.Context, jobID int) (*schedule.Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var job schedule.Job
	var status int
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, key, status FROM job WHERE job_id = ?`, jobID,
	).Scan(&job.ID, &job.Key, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("job %d not found", jobID)
		}
		return nil, fmt.Errorf("read job %d: %w", jobID, err)
	}
	job.Status = schedule.Status(status)
	return &job, nil
}

// StatusCounts returns the number of jobs in each status.
func (s *Store) StatusCounts(ctx context.Context) (map[schedule.Status]int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM job GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count job statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[schedule.Status]int)
	for rows.Next() {
		var status, n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[schedule.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// Jobs returns all job rows ordered by id.
func (s *Store) Jobs(ctx context.Context) ([]schedule.Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, key, status FROM job ORDER BY job_id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schedule.Job
	for rows.Next() {
		var job schedule.Job
		var status int
		if err := rows.Scan(&job.ID, &job.Key, &status); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		job.Status = schedule.Status(status)
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}
