package dto

import (
	"time"

	"github.com/noah-isme/cee-allot-api/internal/models"
)

// StartRunRequest captures POST /allotment/runs payload. The optional
// knobs override the program preset for this run only.
type StartRunRequest struct {
	Program    string `json:"program" validate:"required,oneof=DNM LLM PGM BLE"`
	Phase      int    `json:"phase" validate:"required,min=1,max=9"`
	Eviction   *bool  `json:"eviction,omitempty"`
	Upgrade    *bool  `json:"upgrade,omitempty"`
	Conversion *bool  `json:"conversion,omitempty"`
}

// RunResponse exposes one allotment run with its outcome counters.
type RunResponse struct {
	ID         string           `json:"id"`
	Program    string           `json:"program"`
	Phase      int              `json:"phase"`
	Status     models.RunStatus `json:"status"`
	Stats      RunStats         `json:"stats"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Error      *string          `json:"error,omitempty"`
}

// RunStats is the counter block of a run response.
type RunStats struct {
	Candidates  int `json:"candidates"`
	Allotted    int `json:"allotted"`
	Retained    int `json:"retained"`
	Blocked     int `json:"blocked"`
	Unallotted  int `json:"unallotted"`
	Withdrawn   int `json:"withdrawn"`
	Evictions   int `json:"evictions"`
	Upgrades    int `json:"upgrades"`
	Conversions int `json:"conversions"`
}

// RunListQuery captures GET /allotment/runs query parameters.
type RunListQuery struct {
	Program  string `form:"program" validate:"omitempty,oneof=DNM LLM PGM BLE"`
	Phase    *int   `form:"phase" validate:"omitempty,min=1,max=9"`
	Status   string `form:"status" validate:"omitempty,oneof=PENDING RUNNING COMPLETED FAILED"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=500"`
}

// RecordListQuery captures GET /allotment/runs/:id/records query
// parameters.
type RecordListQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=ALLOTTED RETAINED BLOCKED UNALLOTTED WITHDRAWN"`
	College  string `form:"college"`
	Course   string `form:"course"`
	Category string `form:"category"`
	RollNo   *int64 `form:"roll_no"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=500"`
}

// RecordResponse exposes one candidate outcome.
type RecordResponse struct {
	RollNo    int64  `json:"roll_no"`
	Rank      int    `json:"rank"`
	Status    string `json:"status"`
	AllotCode string `json:"allot_code,omitempty"`
	College   string `json:"college,omitempty"`
	Course    string `json:"course,omitempty"`
	Category  string `json:"category,omitempty"`
	OpNo      int    `json:"op_no,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// NewRunResponse maps a persisted run to its API shape.
func NewRunResponse(run models.AllotmentRun) RunResponse {
	var errMsg *string
	if run.ErrorMessage != nil && *run.ErrorMessage != "" {
		errMsg = run.ErrorMessage
	}
	return RunResponse{
		ID:      run.ID,
		Program: run.Program,
		Phase:   run.Phase,
		Status:  run.Status,
		Stats: RunStats{
			Candidates:  run.Candidates,
			Allotted:    run.Allotted,
			Retained:    run.Retained,
			Blocked:     run.Blocked,
			Unallotted:  run.Unallotted,
			Withdrawn:   run.Withdrawn,
			Evictions:   run.Evictions,
			Upgrades:    run.Upgrades,
			Conversions: run.Conversions,
		},
		CreatedAt:  run.CreatedAt,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Error:      errMsg,
	}
}

// NewRecordResponse maps a persisted record to its API shape.
func NewRecordResponse(rec models.AllotmentRecord) RecordResponse {
	return RecordResponse{
		RollNo:    rec.RollNo,
		Rank:      rec.Rank,
		Status:    rec.Status,
		AllotCode: rec.AllotCode,
		College:   rec.College,
		Course:    rec.Course,
		Category:  rec.Category,
		OpNo:      rec.OpNo,
		Reason:    rec.Reason,
	}
}
