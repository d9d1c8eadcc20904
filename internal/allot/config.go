package allot

// EngineConfig selects the matching behaviour for one run. The legacy
// programs disagreed on exactly these knobs, so they are explicit
// policy instead of hard-coded behaviour.
type EngineConfig struct {
	// Phase is the 1-based counselling phase.
	Phase int
	// Eviction switches Pass 1 from first-fit to the stable-matching
	// variant. The choice applies to every category in the run.
	Eviction bool
	// Upgrade enables the strictly-preferred re-walk for already
	// assigned candidates.
	Upgrade bool
	// Conversion enables the vacancy conversion pass over Chains.
	Conversion bool
	// Priority is the category-class order tried within one option.
	Priority []Class
	// Chains maps a category to its ordered fallback categories for
	// vacancy conversion.
	Chains map[Category][]Category
	// NonConvertible categories are never converted regardless of
	// chain configuration.
	NonConvertible map[Category]bool
}

// DefaultPriority tries special-purpose seats first, then the
// candidate's own community, then quotas, then open merit.
func DefaultPriority() []Class {
	return []Class{ClassSpecial, ClassCommunity, ClassQuota, ClassOpen}
}

// DefaultChains is the standard vacancy spill order: reserved
// categories fall back to a sibling reserved category where one
// exists, then to open merit.
func DefaultChains() map[Category][]Category {
	return map[Category][]Category{
		"SC":                {"ST", CategoryOpen},
		"ST":                {"SC", CategoryOpen},
		"EZ":                {CategoryOpen},
		"MU":                {CategoryOpen},
		"EW":                {CategoryOpen},
		CategoryHQ:          {CategoryOpen},
		CategoryMQ:          {CategoryOpen},
		CategoryIQ:          {CategoryOpen},
		CategoryNRI:         {CategoryNRISponsor, CategoryOpen},
		CategoryNRISponsor:  {CategoryNRI, CategoryOpen},
		CategoryNRIMinority: {CategoryOpen},
		CategoryMinorityAC:  {CategoryMinorityMM, CategoryOpen},
		CategoryMinorityMM:  {CategoryMinorityAC, CategoryOpen},
		CategoryDisability:  {CategoryOpen},
	}
}

// DefaultNonConvertible lists categories excluded from conversion: the
// combined-eligibility CD seats stay reserved, and open merit has
// nothing to spill into.
func DefaultNonConvertible() map[Category]bool {
	return map[Category]bool{
		CategorySCDisabled: true,
		CategoryOpen:       true,
	}
}

// Program identifies a counselling stream with its own engine preset.
type Program string

const (
	ProgramDNM Program = "DNM"
	ProgramLLM Program = "LLM"
	ProgramPGM Program = "PGM"
	ProgramBLE Program = "BLE"
)

// Preset returns the engine configuration a program runs with by
// default for the given phase. Every knob remains overridable per run.
func Preset(program Program, phase int) EngineConfig {
	cfg := EngineConfig{
		Phase:          phase,
		Priority:       DefaultPriority(),
		Chains:         DefaultChains(),
		NonConvertible: DefaultNonConvertible(),
	}
	switch program {
	case ProgramDNM:
		// Strict quota rounds, first-fit, protection from phase 2.
		cfg.Priority = []Class{ClassQuota, ClassOpen}
	case ProgramLLM:
		// Greedy first-fit with protected fallback.
		cfg.Priority = []Class{ClassSpecial, ClassCommunity, ClassOpen}
	case ProgramPGM:
		cfg.Priority = []Class{ClassSpecial, ClassCommunity, ClassQuota, ClassOpen}
		cfg.Upgrade = phase >= 3
		cfg.Conversion = phase >= 3
	case ProgramBLE:
		cfg.Eviction = true
		cfg.Priority = []Class{ClassOpen, ClassCommunity, ClassSpecial, ClassQuota}
	}
	return cfg
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Phase <= 0 {
		c.Phase = 1
	}
	if len(c.Priority) == 0 {
		c.Priority = DefaultPriority()
	}
	if c.Chains == nil {
		c.Chains = DefaultChains()
	}
	if c.NonConvertible == nil {
		c.NonConvertible = DefaultNonConvertible()
	}
	return c
}
