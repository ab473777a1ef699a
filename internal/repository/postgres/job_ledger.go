package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// JobLedger implements domain.JobLedger on the job_runs table. A daily job
// claims its (name, date) slot with an insert that is a no-op on conflict, so
// exactly one caller per day wins regardless of overlapping scheduler ticks.
type JobLedger struct {
	db *sql.DB
}

// NewJobLedger creates a new PostgreSQL job ledger.
func NewJobLedger(db *sql.DB) *JobLedger {
	return &JobLedger{db: db}
}

// TryAcquire claims the (job, runDate) slot. runDate is a calendar date in
// the scheduler's reference time zone, formatted 2006-01-02.
func (l *JobLedger) TryAcquire(ctx context.Context, job, runDate string) (bool, error) {
	query := `
		INSERT INTO job_runs (job_name, run_date, completed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (job_name, run_date) DO NOTHING
	`
	res, err := l.db.ExecContext(ctx, query, job, runDate)
	if err != nil {
		return false, fmt.Errorf("failed to acquire job slot: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read job slot result: %w", err)
	}
	return rows == 1, nil
}
