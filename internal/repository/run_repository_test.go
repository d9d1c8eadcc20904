package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cee-allot-api/internal/models"
)

func newRunRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func runRows(id string, status models.RunStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "program", "phase", "status", "params",
		"candidates", "allotted", "retained", "blocked", "unallotted", "withdrawn",
		"evictions", "upgrades", "conversions",
		"created_by", "created_at", "started_at", "finished_at", "error_message",
	}).AddRow(id, "PGM", 2, status, `{}`, 0, 0, 0, 0, 0, 0, 0, 0, 0, "user-1", time.Now(), nil, nil, nil)
}

func TestRunRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO allotment_runs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.AllotmentRun{Program: "PGM", Phase: 2, CreatedBy: "user-1"}
	require.NoError(t, repo.Create(context.Background(), run))
	require.NotEmpty(t, run.ID)
	require.Equal(t, models.RunStatusPending, run.Status)

	mock.ExpectQuery(regexp.QuoteMeta("FROM allotment_runs WHERE id = $1")).
		WithArgs(run.ID).
		WillReturnRows(runRows(run.ID, models.RunStatusPending))

	fetched, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, run.ID, fetched.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryActiveForProgram(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("status IN ('PENDING', 'RUNNING')")).
		WithArgs("PGM").
		WillReturnRows(runRows("run-1", models.RunStatusRunning))

	active, err := repo.ActiveForProgram(context.Background(), "PGM")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, "run-1", active.ID)

	mock.ExpectQuery(regexp.QuoteMeta("status IN ('PENDING', 'RUNNING')")).
		WithArgs("DNM").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	none, err := repo.ActiveForProgram(context.Background(), "DNM")
	require.NoError(t, err)
	require.Nil(t, none)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryUpdateStats(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	status := models.RunStatusCompleted
	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE allotment_runs SET status = $1, candidates = $2, allotted = $3, retained = $4, blocked = $5, unallotted = $6, withdrawn = $7, evictions = $8, upgrades = $9, conversions = $10, finished_at = $11 WHERE id = $12")).
		WithArgs(status, 100, 80, 5, 2, 10, 3, 0, 4, 1, now, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "run-1", UpdateRunParams{
		Status: &status,
		Stats: &models.AllotmentRun{
			Candidates: 100, Allotted: 80, Retained: 5, Blocked: 2,
			Unallotted: 10, Withdrawn: 3, Upgrades: 4, Conversions: 1,
		},
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	// No expectations set: an empty update must not touch the database.
	require.NoError(t, repo.Update(context.Background(), "run-1", UpdateRunParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryList(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM allotment_runs WHERE program = $1")).
		WithArgs("PGM").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs("PGM", 50, 0).
		WillReturnRows(runRows("run-1", models.RunStatusCompleted))

	runs, total, err := repo.List(context.Background(), models.RunFilter{Program: "PGM"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, runs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRunRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM allotment_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "run-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
