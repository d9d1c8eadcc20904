package allot

import "sort"

// AllotCode renders the seat key as the canonical 11-character code.
func (k SeatKey) AllotCode() string {
	sel := Selector{Group: k.Group, Type: k.Type, Course: k.Course, College: k.College}
	return EncodeAllotCode(sel, k.Category)
}

// Run executes one phase of the allotment process over an immutable
// input snapshot and returns the result snapshot. Per-record input
// problems are skipped and reflected in the records; only invariant
// violations surface as errors.
func Run(in Input, cfg EngineConfig) (*Output, error) {
	cfg = cfg.withDefaults()

	ledger := NewLedger(in.Seats)
	prot := ResolveProtection(in.Previous, cfg.Phase, ledger)
	pool := EligiblePool(in.Candidates, cfg.Phase, prot)
	prefs := BuildPreferenceLists(in.Options)

	eng := newEngine(cfg, ledger, prot, pool, prefs)
	if err := eng.run(); err != nil {
		return nil, err
	}

	return assemble(in.Candidates, cfg.Phase, eng), nil
}

// assemble turns engine state into the canonical record set: one
// record per input candidate, assigned or carrying an explicit reason.
func assemble(cands []Candidate, phase int, eng *engine) *Output {
	out := &Output{Stats: eng.stats}
	out.Stats.Candidates = len(cands)

	inPool := make(map[int64]bool, len(eng.pool))
	for _, c := range eng.pool {
		inPool[c.RollNo] = true
	}

	seen := make(map[int64]bool, len(cands))
	for _, c := range cands {
		if seen[c.RollNo] {
			continue
		}
		seen[c.RollNo] = true

		rec := Record{RollNo: c.RollNo, Rank: c.Rank}
		switch {
		case c.Withdrawn:
			rec.Status = StatusWithdrawn
			rec.BlockedReason = "candidate withdrawn"
			out.Stats.Withdrawn++
		case eng.prot.Blocked[c.RollNo] != "":
			rec.Status = StatusBlocked
			rec.BlockedReason = eng.prot.Blocked[c.RollNo]
			out.Stats.Blocked++
		default:
			if a, ok := eng.assigned[c.RollNo]; ok {
				rec.Key = a.Key
				rec.OpNo = a.OpNo
				rec.AllotCode = a.Key.AllotCode()
				if a.Retained {
					rec.Status = StatusRetained
				} else {
					rec.Status = StatusAllotted
					out.Stats.Allotted++
				}
				break
			}
			rec.Status = StatusUnallotted
			switch {
			case c.Rank <= 0:
				rec.BlockedReason = "non-positive merit rank"
			case c.EligibleOption == "N":
				rec.BlockedReason = "not eligible for options"
			case !inPool[c.RollNo]:
				rec.BlockedReason = "not confirmed for this phase"
			default:
				rec.BlockedReason = "no matching seat"
			}
			out.Stats.Unallotted++
		}
		out.Records = append(out.Records, rec)
	}

	sort.Slice(out.Records, func(i, j int) bool {
		a, b := out.Records[i], out.Records[j]
		ra, rb := effectiveRank(a.Rank), effectiveRank(b.Rank)
		if ra != rb {
			return ra < rb
		}
		return a.RollNo < b.RollNo
	})
	return out
}

// effectiveRank pushes rank-less candidates behind every ranked one.
func effectiveRank(rank int) int {
	if rank <= 0 {
		return 1 << 30
	}
	return rank
}
