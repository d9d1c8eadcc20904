package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus captures the allotment run lifecycle states.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// AllotmentRun is one persisted execution of the allotment engine for a
// program and phase.
type AllotmentRun struct {
	ID           string     `db:"id" json:"id"`
	Program      string     `db:"program" json:"program"`
	Phase        int        `db:"phase" json:"phase"`
	Status       RunStatus  `db:"status" json:"status"`
	Params       RunParams  `db:"params" json:"params"`
	Candidates   int        `db:"candidates" json:"candidates"`
	Allotted     int        `db:"allotted" json:"allotted"`
	Retained     int        `db:"retained" json:"retained"`
	Blocked      int        `db:"blocked" json:"blocked"`
	Unallotted   int        `db:"unallotted" json:"unallotted"`
	Withdrawn    int        `db:"withdrawn" json:"withdrawn"`
	Evictions    int        `db:"evictions" json:"evictions"`
	Upgrades     int        `db:"upgrades" json:"upgrades"`
	Conversions  int        `db:"conversions" json:"conversions"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
}

// RunParams stores the engine policy knobs a run was executed with,
// persisted as JSONB. Nil pointers mean "use the program preset".
type RunParams struct {
	Eviction   *bool `json:"eviction,omitempty"`
	Upgrade    *bool `json:"upgrade,omitempty"`
	Conversion *bool `json:"conversion,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p RunParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal run params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *RunParams) Scan(value interface{}) error {
	if value == nil {
		*p = RunParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for RunParams", value)
	}
	if len(data) == 0 {
		*p = RunParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal run params: %w", err)
	}
	return nil
}

// RunFilter captures filtering criteria for listing runs.
type RunFilter struct {
	Program  string
	Phase    *int
	Status   *RunStatus
	Page     int
	PageSize int
}
