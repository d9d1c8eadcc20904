package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cee-allot-api/internal/models"
)

// DatasetRepository reads the uploaded source tables a run consumes:
// the merit list, the registered options, the seat matrix and the
// previous-phase standing.
type DatasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository constructs the repository.
func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Candidates returns the merit list for a program in rank order.
func (r *DatasetRepository) Candidates(ctx context.Context, program string) ([]models.CandidateRow, error) {
	const query = `SELECT program, roll_no, rank, category, nri_status, minority, special3, hq_rank, mq_rank, iq_rank, eligible_option, confirm_flag, delete_flag
FROM candidates WHERE program = $1 ORDER BY rank ASC, roll_no ASC`
	var rows []models.CandidateRow
	if err := r.db.SelectContext(ctx, &rows, query, program); err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	return rows, nil
}

// Options returns the registered preferences for a program.
func (r *DatasetRepository) Options(ctx context.Context, program string) ([]models.OptionRow, error) {
	const query = `SELECT program, roll_no, op_no, option_code, valid_option, delete_flag
FROM options WHERE program = $1 ORDER BY roll_no ASC, op_no ASC`
	var rows []models.OptionRow
	if err := r.db.SelectContext(ctx, &rows, query, program); err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	return rows, nil
}

// Seats returns the published seat matrix for a program.
func (r *DatasetRepository) Seats(ctx context.Context, program string) ([]models.SeatCapacityRow, error) {
	const query = `SELECT program, grp, typ, college, course, category, seats
FROM seat_matrix WHERE program = $1`
	var rows []models.SeatCapacityRow
	if err := r.db.SelectContext(ctx, &rows, query, program); err != nil {
		return nil, fmt.Errorf("load seat matrix: %w", err)
	}
	return rows, nil
}

// Previous returns the prior-phase standing for a program.
func (r *DatasetRepository) Previous(ctx context.Context, program string) ([]models.PreviousAllotmentRow, error) {
	const query = `SELECT program, roll_no, current_admission, join_status, last_op_no
FROM previous_allotments WHERE program = $1`
	var rows []models.PreviousAllotmentRow
	if err := r.db.SelectContext(ctx, &rows, query, program); err != nil {
		return nil, fmt.Errorf("load previous allotments: %w", err)
	}
	return rows, nil
}
