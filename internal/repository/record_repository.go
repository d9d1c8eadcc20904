package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cee-allot-api/internal/models"
)

const recordColumns = `id, run_id, roll_no, rank, status, allot_code, college, course, category, op_no, reason, created_at`

// insertBatchSize keeps one multi-row VALUES clause under the postgres
// parameter limit.
const insertBatchSize = 500

// RecordRepository persists per-candidate run outcomes.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// InsertBatch writes the record set inside the given transaction so a
// run's outcome is committed atomically with its run row update.
func (r *RecordRepository) InsertBatch(ctx context.Context, tx *sqlx.Tx, records []models.AllotmentRecord) error {
	const query = `INSERT INTO allotment_records (` + recordColumns + `)
VALUES (:id, :run_id, :roll_no, :rank, :status, :allot_code, :college, :course, :category, :op_no, :reason, :created_at)`
	now := time.Now().UTC()
	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		for i := range batch {
			if batch[i].ID == "" {
				batch[i].ID = uuid.NewString()
			}
			if batch[i].CreatedAt.IsZero() {
				batch[i].CreatedAt = now
			}
		}
		if _, err := tx.NamedExecContext(ctx, query, batch); err != nil {
			return fmt.Errorf("insert allotment records: %w", err)
		}
	}
	return nil
}

// List returns the records of a run matching the filter, in merit
// order, with the total match count for pagination.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.AllotmentRecord, int, error) {
	where := []string{"run_id = $1"}
	args := []interface{}{filter.RunID}
	argPos := 2

	add := func(column, value string) {
		where = append(where, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}
	if filter.College != "" {
		add("college", filter.College)
	}
	if filter.Course != "" {
		add("course", filter.Course)
	}
	if filter.Category != "" {
		add("category", filter.Category)
	}
	if filter.RollNo != nil {
		where = append(where, fmt.Sprintf("roll_no = $%d", argPos))
		args = append(args, *filter.RollNo)
		argPos++
	}

	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM allotment_records"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count allotment records: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM allotment_records%s ORDER BY rank ASC, roll_no ASC LIMIT $%d OFFSET $%d",
		recordColumns, clause, argPos, argPos+1)
	args = append(args, pageSize, (page-1)*pageSize)

	var records []models.AllotmentRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list allotment records: %w", err)
	}
	return records, total, nil
}

// ListAll streams every record of a run in merit order, for exports.
func (r *RecordRepository) ListAll(ctx context.Context, runID string) ([]models.AllotmentRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM allotment_records WHERE run_id = $1 ORDER BY rank ASC, roll_no ASC`
	var records []models.AllotmentRecord
	if err := r.db.SelectContext(ctx, &records, query, runID); err != nil {
		return nil, fmt.Errorf("list all allotment records: %w", err)
	}
	return records, nil
}

// DeleteByRun removes all records of a run.
func (r *RecordRepository) DeleteByRun(ctx context.Context, tx *sqlx.Tx, runID string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM allotment_records WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("delete allotment records: %w", err)
	}
	return nil
}
