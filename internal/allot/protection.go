package allot

import (
	"fmt"
	"sort"
)

// ProtectedSeat is the seat an incumbent carries into the current
// phase together with the OPNO that won it.
type ProtectedSeat struct {
	Key  SeatKey
	OpNo int
}

// Protection is the outcome of resolving a previous-phase snapshot:
// candidates hard-blocked for not joining, and incumbents whose seats
// are reserved up front.
type Protection struct {
	Blocked   map[int64]string
	Protected map[int64]ProtectedSeat
}

// ResolveProtection walks previous-phase allotment rows. Non-joined
// candidates ("N" join status) are blocked outright. Joined candidates
// with a current-admission code become protected and their seats are
// reserved in the ledger before any new proposal is evaluated, so
// capacity accounting treats incumbents as already seated.
func ResolveProtection(prev []PreviousAllotment, phase int, ledger *Ledger) Protection {
	p := Protection{
		Blocked:   make(map[int64]string),
		Protected: make(map[int64]ProtectedSeat),
	}
	if phase <= 1 {
		return p
	}
	for _, row := range prev {
		if row.RollNo <= 0 {
			continue
		}
		if row.JoinStatus == "N" {
			p.Blocked[row.RollNo] = fmt.Sprintf("non-joined in phase %d", phase-1)
			continue
		}
		key, ok := DecodeAllotCode(row.CurrentAdmission)
		if !ok {
			continue
		}
		opNo := row.LastOpNo
		if opNo <= 0 {
			opNo = NoOpNo
		}
		p.Protected[row.RollNo] = ProtectedSeat{Key: key, OpNo: opNo}
		ledger.Reserve(key)
	}
	return p
}

// EligiblePool filters and orders the candidate queue for a phase:
// withdrawn, non-positive-rank and option-barred candidates drop out,
// blocked candidates are excluded entirely, and from phase 2 on only
// confirmed candidates remain (protection overrides the confirmation
// requirement). Order is ascending rank with roll number tie-break.
func EligiblePool(cands []Candidate, phase int, p Protection) []Candidate {
	pool := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Withdrawn || c.Rank <= 0 || c.EligibleOption == "N" {
			continue
		}
		if _, blocked := p.Blocked[c.RollNo]; blocked {
			continue
		}
		if phase > 1 && !c.Confirmed {
			if _, protected := p.Protected[c.RollNo]; !protected {
				continue
			}
		}
		pool = append(pool, c)
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Rank != pool[j].Rank {
			return pool[i].Rank < pool[j].Rank
		}
		return pool[i].RollNo < pool[j].RollNo
	})
	return pool
}
