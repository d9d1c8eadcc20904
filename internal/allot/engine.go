package allot

import (
	"container/heap"
	"fmt"
	"sort"
)

// assignment is the engine's mutable "currently held seat" pointer for
// one candidate.
type assignment struct {
	Key      SeatKey
	OpNo     int
	Retained bool
}

type engine struct {
	cfg      EngineConfig
	ledger   *Ledger
	prot     Protection
	pool     []Candidate
	byRoll   map[int64]Candidate
	prefs    map[int64][]Option
	assigned map[int64]assignment
	stats    Stats
}

// BuildPreferenceLists indexes options per candidate ordered by OPNO.
// Entries with non-positive OPNO or undecodable codes are dropped
// before matching.
func BuildPreferenceLists(options []Option) map[int64][]Option {
	prefs := make(map[int64][]Option)
	for _, op := range options {
		if op.RollNo <= 0 || op.OpNo <= 0 {
			continue
		}
		if _, ok := DecodeOption(op.Code); !ok {
			continue
		}
		prefs[op.RollNo] = append(prefs[op.RollNo], op)
	}
	for roll := range prefs {
		list := prefs[roll]
		sort.Slice(list, func(i, j int) bool { return list[i].OpNo < list[j].OpNo })
	}
	return prefs
}

func newEngine(cfg EngineConfig, ledger *Ledger, prot Protection, pool []Candidate, prefs map[int64][]Option) *engine {
	byRoll := make(map[int64]Candidate, len(pool))
	for _, c := range pool {
		byRoll[c.RollNo] = c
	}
	return &engine{
		cfg:      cfg,
		ledger:   ledger,
		prot:     prot,
		pool:     pool,
		byRoll:   byRoll,
		prefs:    prefs,
		assigned: make(map[int64]assignment),
	}
}

func (e *engine) run() error {
	if e.cfg.Eviction {
		if err := e.passStable(); err != nil {
			return err
		}
	} else {
		e.passDirect()
	}
	e.retainProtected()
	if e.cfg.Upgrade {
		e.passUpgrade()
	}
	if e.cfg.Conversion {
		if err := e.passConversion(); err != nil {
			return err
		}
	}
	return nil
}

// opNoLimit returns the exclusive upper OPNO bound for a candidate's
// walk: incumbents only consider strictly preferred options.
func (e *engine) opNoLimit(roll int64) int {
	if seat, ok := e.prot.Protected[roll]; ok {
		return seat.OpNo
	}
	return NoOpNo + 1
}

// orderedCategories lists the seat categories at a base key in the
// configured class-priority order.
func (e *engine) orderedCategories(base BaseKey) []Category {
	cats := e.ledger.CategoriesAt(base)
	if len(cats) <= 1 {
		return cats
	}
	classRank := func(cat Category) int {
		cl := ClassOf(cat)
		for i, p := range e.cfg.Priority {
			if p == cl {
				return i
			}
		}
		return len(e.cfg.Priority)
	}
	out := append([]Category(nil), cats...)
	sort.SliceStable(out, func(i, j int) bool { return classRank(out[i]) < classRank(out[j]) })
	return out
}

// seat records a successful reservation, superseding any protected
// seat by releasing it back to the ledger.
func (e *engine) seat(roll int64, a assignment) {
	if prev, ok := e.prot.Protected[roll]; ok {
		e.ledger.Release(prev.Key)
		delete(e.prot.Protected, roll)
	}
	e.assigned[roll] = a
}

// passDirect is the first-fit proposal walk: every candidate in rank
// order tries their options in OPNO order and takes the first seat
// with free capacity they are eligible for.
func (e *engine) passDirect() {
	for _, c := range e.pool {
		limit := e.opNoLimit(c.RollNo)
		for _, op := range e.prefs[c.RollNo] {
			if op.OpNo >= limit {
				break
			}
			sel, ok := DecodeOption(op.Code)
			if !ok {
				continue
			}
			base := sel.BaseKey()
			if !e.ledger.HasBase(base) {
				continue
			}
			placed := false
			for _, cat := range e.orderedCategories(base) {
				if !Eligible(cat, c, sel.Flag) {
					continue
				}
				key := sel.SeatKeyFor(cat)
				if e.ledger.Reserve(key) {
					e.seat(c.RollNo, assignment{Key: key, OpNo: op.OpNo})
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
	}
}

// proposal is one pre-computed (seat, OPNO) pair for the stable
// matching variant.
type proposal struct {
	Key  SeatKey
	OpNo int
}

// candidateHeap orders free candidates by rank then roll so proposal
// processing stays deterministic.
type candidateHeap struct {
	rolls  []int64
	byRoll map[int64]Candidate
}

func (h *candidateHeap) Len() int { return len(h.rolls) }
func (h *candidateHeap) Less(i, j int) bool {
	a, b := h.byRoll[h.rolls[i]], h.byRoll[h.rolls[j]]
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.RollNo < b.RollNo
}
func (h *candidateHeap) Swap(i, j int)      { h.rolls[i], h.rolls[j] = h.rolls[j], h.rolls[i] }
func (h *candidateHeap) Push(x interface{}) { h.rolls = append(h.rolls, x.(int64)) }
func (h *candidateHeap) Pop() interface{} {
	last := len(h.rolls) - 1
	roll := h.rolls[last]
	h.rolls = h.rolls[:last]
	return roll
}

// passStable runs the capacitated stable-matching variant: a full seat
// accepts a better-ranked proposer by evicting its worst occupant, who
// returns to the free queue with their remaining proposals. Protected
// incumbents are already reserved in the ledger and never evicted.
func (e *engine) passStable() error {
	proposals := make(map[int64][]proposal, len(e.pool))
	capacity := make(map[SeatKey]int)
	for _, c := range e.pool {
		limit := e.opNoLimit(c.RollNo)
		seen := make(map[SeatKey]bool)
		var list []proposal
		for _, op := range e.prefs[c.RollNo] {
			if op.OpNo >= limit {
				break
			}
			sel, ok := DecodeOption(op.Code)
			if !ok {
				continue
			}
			base := sel.BaseKey()
			for _, cat := range e.orderedCategories(base) {
				key := sel.SeatKeyFor(cat)
				if seen[key] {
					continue
				}
				if e.ledger.Remaining(key) <= 0 {
					continue
				}
				if !Eligible(cat, c, sel.Flag) {
					continue
				}
				seen[key] = true
				capacity[key] = e.ledger.Remaining(key)
				list = append(list, proposal{Key: key, OpNo: op.OpNo})
			}
		}
		if len(list) > 0 {
			proposals[c.RollNo] = list
		}
	}

	occupants := make(map[SeatKey][]int64)
	next := make(map[int64]int)
	free := &candidateHeap{byRoll: e.byRoll}
	for _, c := range e.pool {
		if _, ok := proposals[c.RollNo]; ok {
			heap.Push(free, c.RollNo)
		}
	}

	chosen := make(map[int64]proposal)
	for free.Len() > 0 {
		roll := heap.Pop(free).(int64)
		list := proposals[roll]
		for next[roll] < len(list) {
			prop := list[next[roll]]
			next[roll]++

			current := occupants[prop.Key]
			if len(current) < capacity[prop.Key] {
				occupants[prop.Key] = append(current, roll)
				chosen[roll] = prop
				break
			}

			worst := current[0]
			worstIdx := 0
			for i, held := range current {
				if e.worseThan(held, worst) {
					worst, worstIdx = held, i
				}
			}
			if e.byRoll[roll].Rank < e.byRoll[worst].Rank {
				current[worstIdx] = roll
				chosen[roll] = prop
				delete(chosen, worst)
				e.stats.Evictions++
				if next[worst] < len(proposals[worst]) {
					heap.Push(free, worst)
				}
				break
			}
			// Seat prefers its current occupants; try the next proposal.
		}
	}

	for roll, prop := range chosen {
		if !e.ledger.Reserve(prop.Key) {
			return &InvariantError{Op: "stable-commit", Detail: fmt.Sprintf("seat %v over-assigned", prop.Key)}
		}
		e.seat(roll, assignment{Key: prop.Key, OpNo: prop.OpNo})
	}
	return nil
}

func (e *engine) worseThan(a, b int64) bool {
	ca, cb := e.byRoll[a], e.byRoll[b]
	if ca.Rank != cb.Rank {
		return ca.Rank > cb.Rank
	}
	return ca.RollNo > cb.RollNo
}

// retainProtected seats incumbents who found nothing strictly better:
// they keep the seat reserved for them at protection time.
func (e *engine) retainProtected() {
	for roll, seat := range e.prot.Protected {
		if _, ok := e.assigned[roll]; ok {
			continue
		}
		if _, ok := e.byRoll[roll]; !ok {
			// Incumbent absent from this phase's pool keeps the seat
			// but produces no new record.
			continue
		}
		e.assigned[roll] = assignment{Key: seat.Key, OpNo: seat.OpNo, Retained: true}
		e.stats.Retained++
	}
}

// unallottedDemand collects the base seats that still have live
// preferences from candidates without any seat.
func (e *engine) unallottedDemand() map[BaseKey]bool {
	demand := make(map[BaseKey]bool)
	for _, c := range e.pool {
		if _, ok := e.assigned[c.RollNo]; ok {
			continue
		}
		for _, op := range e.prefs[c.RollNo] {
			if sel, ok := DecodeOption(op.Code); ok {
				demand[sel.BaseKey()] = true
			}
		}
	}
	return demand
}

// passUpgrade re-walks strictly preferred options for assigned
// candidates. A base seat still wanted by an unallotted candidate is
// off limits so upgrades never starve candidates yet to be served.
func (e *engine) passUpgrade() {
	demand := e.unallottedDemand()
	for _, c := range e.pool {
		cur, ok := e.assigned[c.RollNo]
		if !ok {
			continue
		}
		for _, op := range e.prefs[c.RollNo] {
			if op.OpNo >= cur.OpNo {
				break
			}
			sel, ok := DecodeOption(op.Code)
			if !ok {
				continue
			}
			base := sel.BaseKey()
			if demand[base] {
				continue
			}
			upgraded := false
			for _, cat := range e.orderedCategories(base) {
				if !Eligible(cat, c, sel.Flag) {
					continue
				}
				key := sel.SeatKeyFor(cat)
				if key == cur.Key {
					continue
				}
				if e.ledger.Reserve(key) {
					e.ledger.Release(cur.Key)
					e.assigned[c.RollNo] = assignment{Key: key, OpNo: op.OpNo}
					if cur.Retained {
						e.stats.Retained--
					}
					e.stats.Upgrades++
					upgraded = true
					break
				}
			}
			if upgraded {
				break
			}
		}
	}
}

// optionOn returns the best OPNO an unallotted candidate holds on the
// given base seat, with the option's flag.
func (e *engine) optionOn(roll int64, base BaseKey) (int, string, bool) {
	for _, op := range e.prefs[roll] {
		sel, ok := DecodeOption(op.Code)
		if !ok {
			continue
		}
		if sel.BaseKey() == base {
			return op.OpNo, sel.Flag, true
		}
	}
	return 0, "", false
}

// passConversion spills leftover vacancy through the configured
// fallback chains. A seat is converted only when its own category has
// no matching unallotted demand left, and only while fallback takers
// exist; converting a non-convertible category aborts the run.
func (e *engine) passConversion() error {
	keys := make([]SeatKey, 0)
	for _, base := range e.sortedBases() {
		for _, cat := range e.ledger.CategoriesAt(base) {
			key := SeatKey{Group: base.Group, Type: base.Type, College: base.College, Course: base.Course, Category: cat}
			if e.ledger.Remaining(key) > 0 {
				keys = append(keys, key)
			}
		}
	}

	for _, src := range keys {
		if e.cfg.NonConvertible[src.Category] {
			continue
		}
		chain := e.cfg.Chains[src.Category]
		if len(chain) == 0 {
			continue
		}
		if e.hasMatchingDemand(src) {
			continue
		}
		for _, fallback := range chain {
			for e.ledger.Remaining(src) > 0 {
				roll, opNo, ok := e.bestFallbackTaker(src.Base(), fallback)
				if !ok {
					break
				}
				if e.cfg.NonConvertible[src.Category] {
					return &InvariantError{Op: "convert", Detail: fmt.Sprintf("category %s is non-convertible", src.Category)}
				}
				dst := SeatKey{Group: src.Group, Type: src.Type, College: src.College, Course: src.Course, Category: fallback}
				if err := e.ledger.Convert(src, dst); err != nil {
					return err
				}
				if !e.ledger.Reserve(dst) {
					return &InvariantError{Op: "convert", Detail: fmt.Sprintf("converted seat %v vanished", dst)}
				}
				e.seat(roll, assignment{Key: dst, OpNo: opNo})
				e.stats.Conversions++
			}
			if e.ledger.Remaining(src) == 0 {
				break
			}
		}
	}
	return nil
}

// hasMatchingDemand reports whether any unallotted candidate still
// wants the source seat under its own category.
func (e *engine) hasMatchingDemand(src SeatKey) bool {
	for _, c := range e.pool {
		if _, ok := e.assigned[c.RollNo]; ok {
			continue
		}
		if _, flag, ok := e.optionOn(c.RollNo, src.Base()); ok {
			if Eligible(src.Category, c, flag) {
				return true
			}
		}
	}
	return false
}

// bestFallbackTaker finds the best-ranked unallotted candidate with a
// live option on the base seat who is eligible under the fallback
// category.
func (e *engine) bestFallbackTaker(base BaseKey, fallback Category) (int64, int, bool) {
	for _, c := range e.pool {
		if _, ok := e.assigned[c.RollNo]; ok {
			continue
		}
		opNo, flag, ok := e.optionOn(c.RollNo, base)
		if !ok {
			continue
		}
		if Eligible(fallback, c, flag) {
			return c.RollNo, opNo, true
		}
	}
	return 0, 0, false
}

func (e *engine) sortedBases() []BaseKey {
	seen := make(map[BaseKey]bool)
	var bases []BaseKey
	for key := range e.ledger.remaining {
		base := key.Base()
		if !seen[base] {
			seen[base] = true
			bases = append(bases, base)
		}
	}
	sort.Slice(bases, func(i, j int) bool {
		a, b := bases[i], bases[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.College != b.College {
			return a.College < b.College
		}
		return a.Course < b.Course
	})
	return bases
}
