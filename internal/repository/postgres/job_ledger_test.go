package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acquireQuery = `
		INSERT INTO job_runs (job_name, run_date, completed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (job_name, run_date) DO NOTHING
	`

func TestJobLedger_TryAcquire(t *testing.T) {
	t.Run("first_claim_wins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(acquireQuery)).
			WithArgs("retention", "2026-03-01").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ledger := NewJobLedger(db)
		ok, err := ledger.TryAcquire(context.Background(), "retention", "2026-03-01")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second_claim_loses", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(acquireQuery)).
			WithArgs("digest", "2026-03-01").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ledger := NewJobLedger(db)
		ok, err := ledger.TryAcquire(context.Background(), "digest", "2026-03-01")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("database_error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(acquireQuery)).
			WillReturnError(errors.New("database error"))

		ledger := NewJobLedger(db)
		_, err = ledger.TryAcquire(context.Background(), "digest", "2026-03-01")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to acquire job slot")
	})
}
