package allot

// specialRule gates a special-purpose seat category on the option's
// suffix flag and candidate attributes. Flag "" means the rule ignores
// the flag; Secondary nil means no secondary condition.
type specialRule struct {
	Seat      Category
	Flag      string
	Attribute func(Candidate) string
	Value     string
	Secondary func(Candidate) bool
}

// specialRules is the exhaustive table for every special category.
// Each special seat category has exactly one entry; an unlisted special
// category cannot be reached because ClassOf classifies only listed
// codes as ClassSpecial.
var specialRules = []specialRule{
	{Seat: CategoryNRI, Flag: "R", Attribute: Candidate.nri, Value: "NR"},
	{Seat: CategoryNRISponsor, Flag: "R", Attribute: Candidate.nri, Value: "NRNC"},
	{Seat: CategoryNRIMinority, Flag: "R", Attribute: Candidate.nri, Value: "NM"},
	{Seat: CategoryMinorityAC, Flag: "Y", Attribute: Candidate.minority, Value: "AC"},
	{Seat: CategoryMinorityMM, Flag: "Y", Attribute: Candidate.minority, Value: "MM"},
	{Seat: CategoryDisability, Attribute: Candidate.special3, Value: "PD"},
	{Seat: CategorySCDisabled, Attribute: Candidate.special3, Value: "PD",
		Secondary: func(c Candidate) bool { return c.Category == "SC" }},
}

func (c Candidate) nri() string      { return c.NRI }
func (c Candidate) minority() string { return c.Minority }
func (c Candidate) special3() string { return c.Special3 }

func (r specialRule) eligible(c Candidate, flag string) bool {
	if r.Flag != "" && flag != r.Flag {
		return false
	}
	if r.Attribute(c) != r.Value {
		return false
	}
	if r.Secondary != nil && !r.Secondary(c) {
		return false
	}
	return true
}

var specialRuleIndex = func() map[Category]specialRule {
	idx := make(map[Category]specialRule, len(specialRules))
	for _, r := range specialRules {
		idx[r.Seat] = r
	}
	return idx
}()

// Eligible reports whether the candidate may occupy a seat of the
// given category reached through an option carrying the given flag.
//
// Every seat category matches exactly one rule family:
//   - open merit: always eligible
//   - quota: candidate holds a positive rank for that quota
//   - special: per-category flag/attribute rule from specialRules
//   - community: seat category equals the candidate's own category,
//     and NA/blank candidates never occupy community seats
func Eligible(seat Category, c Candidate, flag string) bool {
	switch ClassOf(seat) {
	case ClassOpen:
		return true
	case ClassQuota:
		return c.QuotaRank(seat) > 0
	case ClassSpecial:
		return specialRuleIndex[seat].eligible(c, flag)
	default:
		if c.Category == CategoryNone || c.Category == "" {
			return false
		}
		return seat == c.Category
	}
}
