package allot

import (
	"fmt"
	"sort"
)

// Ledger is the mutable capacity table for one phase run. Counts are
// keyed by SeatKey and never drop below zero: Reserve is a no-op on an
// exhausted key.
type Ledger struct {
	remaining map[SeatKey]int
	capacity  map[SeatKey]int
	baseCats  map[BaseKey][]Category
}

// NewLedger aggregates seat matrix rows, summing rows that share a key.
// Rows with non-positive counts still register the key so conversion
// and demand checks can see it.
func NewLedger(rows []SeatRow) *Ledger {
	l := &Ledger{
		remaining: make(map[SeatKey]int),
		capacity:  make(map[SeatKey]int),
		baseCats:  make(map[BaseKey][]Category),
	}
	for _, row := range rows {
		key := SeatKey{
			Group:    row.Group,
			Type:     row.Type,
			College:  row.College,
			Course:   row.Course,
			Category: row.Category,
		}
		if _, seen := l.remaining[key]; !seen {
			base := key.Base()
			l.baseCats[base] = append(l.baseCats[base], key.Category)
		}
		seats := row.Seats
		if seats < 0 {
			seats = 0
		}
		l.remaining[key] += seats
		l.capacity[key] += seats
	}
	for base := range l.baseCats {
		cats := l.baseCats[base]
		sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	}
	return l
}

// Remaining returns the free count for a key, zero for unknown keys.
func (l *Ledger) Remaining(key SeatKey) int {
	return l.remaining[key]
}

// Capacity returns the loaded capacity for a key.
func (l *Ledger) Capacity(key SeatKey) int {
	return l.capacity[key]
}

// Has reports whether the seat matrix carries the key at all.
func (l *Ledger) Has(key SeatKey) bool {
	_, ok := l.remaining[key]
	return ok
}

// HasBase reports whether any category exists for the base key.
func (l *Ledger) HasBase(base BaseKey) bool {
	return len(l.baseCats[base]) > 0
}

// CategoriesAt lists the seat categories present at a base key, in a
// stable order.
func (l *Ledger) CategoriesAt(base BaseKey) []Category {
	return l.baseCats[base]
}

// Reserve consumes one seat if any remain, reporting success. The
// count never goes negative.
func (l *Ledger) Reserve(key SeatKey) bool {
	if l.remaining[key] <= 0 {
		return false
	}
	l.remaining[key]--
	return true
}

// Release returns one seat to the key. Used on upgrade and eviction.
func (l *Ledger) Release(key SeatKey) {
	l.remaining[key]++
}

// Convert moves one unit of vacancy from src to dst. Both keys must
// share a base; converting from an empty source is an invariant
// violation, not bad input.
func (l *Ledger) Convert(src, dst SeatKey) error {
	if src.Base() != dst.Base() {
		return &InvariantError{Op: "convert", Detail: fmt.Sprintf("keys %v and %v differ in base seat", src, dst)}
	}
	if l.remaining[src] <= 0 {
		return &InvariantError{Op: "convert", Detail: fmt.Sprintf("source %v has no vacancy", src)}
	}
	l.remaining[src]--
	l.remaining[dst]++
	return nil
}

// InvariantError marks a logic defect detected mid-run. It aborts the
// run; per-record input problems never raise it.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("allotment invariant violated in %s: %s", e.Op, e.Detail)
}
