package allot

import "strings"

// Option codes are fixed-width: group(1) + type(1) + course(2) +
// college(3) with an optional trailing flag character. Allot codes are
// the same prefix followed by the seat category twice.
const (
	minOptionWidth = 7
	flagIndex      = 7
)

// Selector is a decoded option code.
type Selector struct {
	Group   string
	Type    string
	Course  string
	College string
	Flag    string
}

// DecodeOption slices a raw option code into its fixed-width fields.
// Codes shorter than the minimum width are invalid, never a panic.
func DecodeOption(code string) (Selector, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < minOptionWidth {
		return Selector{}, false
	}
	sel := Selector{
		Group:   code[0:1],
		Type:    code[1:2],
		Course:  code[2:4],
		College: code[4:7],
	}
	if len(code) > flagIndex {
		sel.Flag = code[flagIndex : flagIndex+1]
	}
	return sel, true
}

// SeatKeyFor combines a decoded selector with a seat category.
func (s Selector) SeatKeyFor(category Category) SeatKey {
	return SeatKey{
		Group:    s.Group,
		Type:     s.Type,
		College:  s.College,
		Course:   s.Course,
		Category: category,
	}
}

// BaseKey returns the capacity base key addressed by the selector.
func (s Selector) BaseKey() BaseKey {
	return BaseKey{Group: s.Group, Type: s.Type, College: s.College, Course: s.Course}
}

// EncodeAllotCode builds the 11-character allot code for a seat: the
// selector prefix with the two-character category repeated.
func EncodeAllotCode(sel Selector, category Category) string {
	cat := strings.ToUpper(strings.TrimSpace(string(category)))
	if len(cat) > 2 {
		cat = cat[:2]
	}
	return sel.Group + sel.Type + sel.Course + sel.College + cat + cat
}

// DecodeAllotCode reverses EncodeAllotCode far enough to recover the
// seat key held by a previously allotted candidate.
func DecodeAllotCode(code string) (SeatKey, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 9 {
		return SeatKey{}, false
	}
	return SeatKey{
		Group:    code[0:1],
		Type:     code[1:2],
		Course:   code[2:4],
		College:  code[4:7],
		Category: Category(code[7:9]),
	}, true
}
