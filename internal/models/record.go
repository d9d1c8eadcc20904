package models

import "time"

// AllotmentRecord is one candidate's outcome in a completed run.
type AllotmentRecord struct {
	ID        string    `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	RollNo    int64     `db:"roll_no" json:"roll_no"`
	Rank      int       `db:"rank" json:"rank"`
	Status    string    `db:"status" json:"status"`
	AllotCode string    `db:"allot_code" json:"allot_code,omitempty"`
	College   string    `db:"college" json:"college,omitempty"`
	Course    string    `db:"course" json:"course,omitempty"`
	Category  string    `db:"category" json:"category,omitempty"`
	OpNo      int       `db:"op_no" json:"op_no,omitempty"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RecordFilter captures filtering criteria for listing run records.
type RecordFilter struct {
	RunID    string
	Status   string
	College  string
	Course   string
	Category string
	RollNo   *int64
	Page     int
	PageSize int
}
