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

const runColumns = `id, program, phase, status, params, candidates, allotted, retained, blocked, unallotted, withdrawn, evictions, upgrades, conversions, created_by, created_at, started_at, finished_at, error_message`

// RunRepository persists allotment run metadata.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs the repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run row with generated defaults.
func (r *RunRepository) Create(ctx context.Context, run *models.AllotmentRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO allotment_runs (` + runColumns + `)
VALUES (:id, :program, :phase, :status, :params, :candidates, :allotted, :retained, :blocked, :unallotted, :withdrawn, :evictions, :upgrades, :conversions, :created_by, :created_at, :started_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create allotment run: %w", err)
	}
	return nil
}

// GetByID returns a run row by its identifier.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.AllotmentRun, error) {
	const query = `SELECT ` + runColumns + ` FROM allotment_runs WHERE id = $1`
	var run models.AllotmentRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, fmt.Errorf("get allotment run: %w", err)
	}
	return &run, nil
}

// ActiveForProgram returns the newest non-terminal run for a program,
// or nil when none is in flight.
func (r *RunRepository) ActiveForProgram(ctx context.Context, program string) (*models.AllotmentRun, error) {
	const query = `SELECT ` + runColumns + ` FROM allotment_runs
WHERE program = $1 AND status IN ('PENDING', 'RUNNING') ORDER BY created_at DESC LIMIT 1`
	var runs []models.AllotmentRun
	if err := r.db.SelectContext(ctx, &runs, query, program); err != nil {
		return nil, fmt.Errorf("get active run: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// UpdateRunParams defines the mutable fields of a run row.
type UpdateRunParams struct {
	Status       *models.RunStatus
	Stats        *models.AllotmentRun
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage *string
}

// Update persists the provided changes for a run row.
func (r *RunRepository) Update(ctx context.Context, id string, params UpdateRunParams) error {
	set := make([]string, 0, 12)
	args := make([]interface{}, 0, 13)
	argPos := 1

	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Stats != nil {
		s := params.Stats
		add("candidates", s.Candidates)
		add("allotted", s.Allotted)
		add("retained", s.Retained)
		add("blocked", s.Blocked)
		add("unallotted", s.Unallotted)
		add("withdrawn", s.Withdrawn)
		add("evictions", s.Evictions)
		add("upgrades", s.Upgrades)
		add("conversions", s.Conversions)
	}
	if params.StartedAt != nil {
		add("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE allotment_runs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update allotment run: %w", err)
	}
	return nil
}

// List returns runs matching the filter, newest first, with the total
// match count for pagination.
func (r *RunRepository) List(ctx context.Context, filter models.RunFilter) ([]models.AllotmentRun, int, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)
	argPos := 1

	if filter.Program != "" {
		where = append(where, fmt.Sprintf("program = $%d", argPos))
		args = append(args, filter.Program)
		argPos++
	}
	if filter.Phase != nil {
		where = append(where, fmt.Sprintf("phase = $%d", argPos))
		args = append(args, *filter.Phase)
		argPos++
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM allotment_runs"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count allotment runs: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM allotment_runs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		runColumns, clause, argPos, argPos+1)
	args = append(args, pageSize, (page-1)*pageSize)

	var runs []models.AllotmentRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list allotment runs: %w", err)
	}
	return runs, total, nil
}

// Delete removes a run row. Records cascade at the schema level.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM allotment_runs WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete allotment run: %w", err)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}
