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

func newRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "run_id", "roll_no", "rank", "status", "allot_code",
		"college", "course", "category", "op_no", "reason", "created_at",
	}).AddRow("rec-1", "run-1", int64(101), 1, "ALLOTTED", "DGVLKKMSMSM", "KKM", "VL", "SM", 1, "", time.Now())
}

func TestRecordRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO allotment_records")).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	records := []models.AllotmentRecord{
		{RunID: "run-1", RollNo: 101, Rank: 1, Status: "ALLOTTED", AllotCode: "DGVLKKMSMSM"},
		{RunID: "run-1", RollNo: 102, Rank: 2, Status: "UNALLOTTED", Reason: "no matching seat"},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), tx, records))
	require.NotEmpty(t, records[0].ID)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryList(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM allotment_records WHERE run_id = $1 AND status = $2")).
		WithArgs("run-1", "ALLOTTED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY rank ASC, roll_no ASC LIMIT $3 OFFSET $4")).
		WithArgs("run-1", "ALLOTTED", 50, 0).
		WillReturnRows(recordRows())

	records, total, err := repo.List(context.Background(), models.RecordFilter{RunID: "run-1", Status: "ALLOTTED"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, records, 1)
	require.Equal(t, int64(101), records[0].RollNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM allotment_records WHERE run_id = $1 ORDER BY rank ASC, roll_no ASC")).
		WithArgs("run-1").
		WillReturnRows(recordRows())

	records, err := repo.ListAll(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryDeleteByRun(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM allotment_records WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.DeleteByRun(context.Background(), tx, "run-1"))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
