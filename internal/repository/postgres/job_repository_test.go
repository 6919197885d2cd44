package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/repository"
	"github.com/taskforge/taskforge/internal/state"
)

func TestMarkCompletedClearsWorkerAssignment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJobRepository(db)
	result := json.RawMessage(`{"ok":true}`)

	// A completed row carries no worker: the assignment exists only while
	// the job is PROCESSING.
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, result = $2, error = NULL, worker_id = NULL")).
		WithArgs(state.StatusCompleted, []byte(result), "job-1", state.StatusProcessing, "worker-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.MarkCompleted(context.Background(), "job-1", "worker-1", result)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompletedRejectsReclaimedJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJobRepository(db)

	// Orphan recovery already took the row back, so the CAS matches nothing.
	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, result = $2, error = NULL, worker_id = NULL")).
		WithArgs(state.StatusCompleted, []byte(`null`), "job-1", state.StatusProcessing, "worker-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkCompleted(context.Background(), "job-1", "worker-1", json.RawMessage(`null`))
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedClearsWorkerAssignment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET status = $1, error = $2, result = NULL, worker_id = NULL")).
		WithArgs(state.StatusFailed, "boom", "job-1", state.StatusProcessing, "worker-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.MarkFailed(context.Background(), "job-1", "worker-1", "boom")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
