package allot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligibleOpenMerit(t *testing.T) {
	assert.True(t, Eligible(CategoryOpen, Candidate{Category: CategoryNone}, ""))
	assert.True(t, Eligible(CategoryOpen, Candidate{Category: "SC"}, ""))
}

func TestEligibleQuotaRequiresPositiveRank(t *testing.T) {
	ranked := Candidate{QuotaRanks: map[Category]int{CategoryHQ: 12}}
	assert.True(t, Eligible(CategoryHQ, ranked, ""))
	assert.False(t, Eligible(CategoryMQ, ranked, ""))
	assert.False(t, Eligible(CategoryHQ, Candidate{}, ""))
	assert.False(t, Eligible(CategoryIQ, Candidate{QuotaRanks: map[Category]int{CategoryIQ: -3}}, ""))
}

func TestEligibleCommunity(t *testing.T) {
	sc := Candidate{Category: "SC"}
	assert.True(t, Eligible("SC", sc, ""))
	assert.False(t, Eligible("EZ", sc, ""))
	assert.False(t, Eligible("SC", Candidate{Category: CategoryNone}, ""))
	assert.False(t, Eligible("SC", Candidate{}, ""))
}

func TestEligibleSpecialRules(t *testing.T) {
	cases := []struct {
		name string
		seat Category
		cand Candidate
		flag string
		want bool
	}{
		{"nri with flag", CategoryNRI, Candidate{NRI: "NR"}, "R", true},
		{"nri without flag", CategoryNRI, Candidate{NRI: "NR"}, "", false},
		{"nri wrong attribute", CategoryNRI, Candidate{NRI: "NM"}, "R", false},
		{"nri sponsor", CategoryNRISponsor, Candidate{NRI: "NRNC"}, "R", true},
		{"nri minority", CategoryNRIMinority, Candidate{NRI: "NM"}, "R", true},
		{"minority ac", CategoryMinorityAC, Candidate{Minority: "AC"}, "Y", true},
		{"minority ac wrong flag", CategoryMinorityAC, Candidate{Minority: "AC"}, "R", false},
		{"minority mm", CategoryMinorityMM, Candidate{Minority: "MM"}, "Y", true},
		{"disability ignores flag", CategoryDisability, Candidate{Special3: "PD"}, "", true},
		{"disability not pd", CategoryDisability, Candidate{Special3: ""}, "", false},
		{"combined sc+pd", CategorySCDisabled, Candidate{Category: "SC", Special3: "PD"}, "", true},
		{"combined missing community", CategorySCDisabled, Candidate{Category: "EZ", Special3: "PD"}, "", false},
		{"combined missing disability", CategorySCDisabled, Candidate{Category: "SC"}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eligible(tc.seat, tc.cand, tc.flag))
		})
	}
}

func TestClassOfCoversEveryCategory(t *testing.T) {
	assert.Equal(t, ClassOpen, ClassOf(CategoryOpen))
	for q := range quotaCategories {
		assert.Equal(t, ClassQuota, ClassOf(q))
	}
	for s := range specialCategories {
		assert.Equal(t, ClassSpecial, ClassOf(s))
	}
	// Anything else is a community category, including codes never
	// seen before.
	assert.Equal(t, ClassCommunity, ClassOf("XY"))
	assert.Equal(t, ClassCommunity, ClassOf("SC"))
}

func TestEverySpecialCategoryHasExactlyOneRule(t *testing.T) {
	seen := make(map[Category]int)
	for _, r := range specialRules {
		seen[r.Seat]++
	}
	for cat := range specialCategories {
		assert.Equal(t, 1, seen[cat], "category %s", cat)
	}
}
