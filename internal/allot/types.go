package allot

// Category is a seat category code as it appears in the seat matrix
// (community, quota, special or open-merit).
type Category string

// Known category codes. Community categories beyond the ones listed
// here are legal; they are classified by exclusion in ClassOf.
const (
	CategoryOpen Category = "SM"

	CategoryHQ Category = "HQ"
	CategoryMQ Category = "MQ"
	CategoryIQ Category = "IQ"

	CategoryNRI         Category = "NR"
	CategoryNRISponsor  Category = "NC"
	CategoryNRIMinority Category = "NM"
	CategoryMinorityAC  Category = "AC"
	CategoryMinorityMM  Category = "MM"
	CategoryDisability  Category = "PD"
	CategorySCDisabled  Category = "CD"

	// CategoryNone is the normalized sentinel for candidates without a
	// community category.
	CategoryNone Category = "NA"
)

// Class partitions seat categories into the four rule families.
type Class int

const (
	ClassSpecial Class = iota
	ClassCommunity
	ClassQuota
	ClassOpen
)

var quotaCategories = map[Category]bool{
	CategoryHQ: true,
	CategoryMQ: true,
	CategoryIQ: true,
}

var specialCategories = map[Category]bool{
	CategoryNRI:         true,
	CategoryNRISponsor:  true,
	CategoryNRIMinority: true,
	CategoryMinorityAC:  true,
	CategoryMinorityMM:  true,
	CategoryDisability:  true,
	CategorySCDisabled:  true,
}

// ClassOf maps every seat category onto exactly one rule family.
func ClassOf(c Category) Class {
	switch {
	case c == CategoryOpen:
		return ClassOpen
	case quotaCategories[c]:
		return ClassQuota
	case specialCategories[c]:
		return ClassSpecial
	default:
		return ClassCommunity
	}
}

// BaseKey identifies a seat independent of category: one
// group/type/college/course tuple.
type BaseKey struct {
	Group   string
	Type    string
	College string
	Course  string
}

// SeatKey is the unit of capacity: a BaseKey plus a seat category.
type SeatKey struct {
	Group    string
	Type     string
	College  string
	Course   string
	Category Category
}

// Base strips the category from a SeatKey.
func (k SeatKey) Base() BaseKey {
	return BaseKey{Group: k.Group, Type: k.Type, College: k.College, Course: k.Course}
}

// IsZero reports whether the key carries no seat at all.
func (k SeatKey) IsZero() bool {
	return k == SeatKey{}
}

// Candidate is one applicant in a phase snapshot. Candidates are
// immutable during matching; the engine tracks held seats separately.
type Candidate struct {
	RollNo     int64
	Rank       int
	Category   Category
	QuotaRanks map[Category]int
	NRI        string
	Minority   string
	Special3   string
	// EligibleOption is the option-registration flag from the merit
	// list. "N" bars the candidate from exercising options; any other
	// value (including absent) leaves them in the pool.
	EligibleOption string
	Withdrawn      bool
	Confirmed      bool
}

// QuotaRank returns the candidate's rank under the named quota, zero
// when the candidate is not ranked for it.
func (c Candidate) QuotaRank(q Category) int {
	return c.QuotaRanks[q]
}

// Option is one entry of a candidate's preference list. Entries handed
// to the engine are already filtered to valid, non-deleted rows.
type Option struct {
	RollNo int64
	OpNo   int
	Code   string
}

// SeatRow is one row of the seat matrix. Rows sharing a key are summed
// when the ledger is built.
type SeatRow struct {
	Group    string
	Type     string
	College  string
	Course   string
	Category Category
	Seats    int
}

// PreviousAllotment is one row of the prior phase's result used to
// derive protection and blocking.
type PreviousAllotment struct {
	RollNo           int64
	CurrentAdmission string
	JoinStatus       string
	LastOpNo         int
}

// NoOpNo is the "no current preference" sentinel: any real OPNO is
// strictly better. A retained incumbent whose previous phase recorded
// no option number carries it in the result set.
const NoOpNo = 9999

// RecordStatus classifies a result record.
type RecordStatus string

const (
	StatusAllotted   RecordStatus = "ALLOTTED"
	StatusRetained   RecordStatus = "RETAINED"
	StatusBlocked    RecordStatus = "BLOCKED"
	StatusUnallotted RecordStatus = "UNALLOTTED"
	StatusWithdrawn  RecordStatus = "WITHDRAWN"
)

// Record is the canonical per-candidate outcome of a phase run.
type Record struct {
	RollNo        int64
	Rank          int
	Key           SeatKey
	OpNo          int
	AllotCode     string
	Status        RecordStatus
	BlockedReason string
}

// Stats summarises one engine run.
type Stats struct {
	Candidates  int
	Allotted    int
	Retained    int
	Blocked     int
	Unallotted  int
	Withdrawn   int
	Evictions   int
	Upgrades    int
	Conversions int
}

// Input is the immutable snapshot a phase run consumes.
type Input struct {
	Candidates []Candidate
	Options    []Option
	Seats      []SeatRow
	Previous   []PreviousAllotment
}

// Output is the result snapshot a phase run produces.
type Output struct {
	Records []Record
	Stats   Stats
}
