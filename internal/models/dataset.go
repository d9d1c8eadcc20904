package models

// CandidateRow is one row of the merit list a run consumes.
type CandidateRow struct {
	Program        string `db:"program" json:"program"`
	RollNo         int64  `db:"roll_no" json:"roll_no"`
	Rank           int    `db:"rank" json:"rank"`
	Category       string `db:"category" json:"category"`
	NRIStatus      string `db:"nri_status" json:"nri_status"`
	Minority       string `db:"minority" json:"minority"`
	Special3       string `db:"special3" json:"special3"`
	HQRank         int    `db:"hq_rank" json:"hq_rank"`
	MQRank         int    `db:"mq_rank" json:"mq_rank"`
	IQRank         int    `db:"iq_rank" json:"iq_rank"`
	EligibleOption string `db:"eligible_option" json:"eligible_option"`
	ConfirmFlag    string `db:"confirm_flag" json:"confirm_flag"`
	DeleteFlag     string `db:"delete_flag" json:"delete_flag"`
}

// OptionRow is one candidate preference as registered online.
type OptionRow struct {
	Program     string `db:"program" json:"program"`
	RollNo      int64  `db:"roll_no" json:"roll_no"`
	OpNo        int    `db:"op_no" json:"op_no"`
	OptionCode  string `db:"option_code" json:"option_code"`
	ValidOption string `db:"valid_option" json:"valid_option"`
	DeleteFlag  string `db:"delete_flag" json:"delete_flag"`
}

// SeatCapacityRow is the published seat matrix for one seat category at
// one course/college.
type SeatCapacityRow struct {
	Program  string `db:"program" json:"program"`
	Group    string `db:"grp" json:"group"`
	Type     string `db:"typ" json:"type"`
	College  string `db:"college" json:"college"`
	Course   string `db:"course" json:"course"`
	Category string `db:"category" json:"category"`
	Seats    int    `db:"seats" json:"seats"`
}

// PreviousAllotmentRow carries a candidate's standing from the prior
// phase: the admission they hold and whether they joined it.
type PreviousAllotmentRow struct {
	Program          string `db:"program" json:"program"`
	RollNo           int64  `db:"roll_no" json:"roll_no"`
	CurrentAdmission string `db:"current_admission" json:"current_admission"`
	JoinStatus       string `db:"join_status" json:"join_status"`
	LastOpNo         int    `db:"last_op_no" json:"last_op_no"`
}
