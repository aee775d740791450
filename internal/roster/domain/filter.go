package domain

import (
	"sort"
	"strings"

	"github.com/teleatencion/platform/internal/shared/dates"
)

// DateRangeMode selects how the date-range filter computes its bounds
type DateRangeMode string

const (
	DateRangeNone      DateRangeMode = ""
	DateRangeToday     DateRangeMode = "today"
	DateRangeYesterday DateRangeMode = "yesterday"
	DateRangeLast7     DateRangeMode = "last7"
	DateRangeCustom    DateRangeMode = "custom"
)

// SortMode orders the filtered roster
type SortMode string

const (
	SortMostRecent SortMode = "most_recent"
	SortOldest     SortMode = "oldest"
)

// FilterState is the ephemeral per-session roster filter. An absent value
// means no restriction, never "match empty".
type FilterState struct {
	Search    string        `json:"search,omitempty"`
	Condition *Condition    `json:"condition,omitempty"`
	Bag       *BagCategory  `json:"bag,omitempty"`
	Facility  string        `json:"facility,omitempty"`
	DateMode  DateRangeMode `json:"date_mode,omitempty"`
	From      dates.Date    `json:"from,omitempty"`
	To        dates.Date    `json:"to,omitempty"`
	Sort      SortMode      `json:"sort,omitempty"`
}

// ApplyFilter produces the visible roster subset. Predicates run in a fixed
// order: text search, condition, bag, facility, date range, then sort. The
// date-range predicate compares the normalized service date, never raw
// timestamps. The input slice is not modified.
func ApplyFilter(roster []PatientAssignment, f FilterState) []PatientAssignment {
	out := make([]PatientAssignment, 0, len(roster))

	search := strings.ToLower(strings.TrimSpace(f.Search))
	from, to, bounded := f.dateBounds()

	for _, a := range roster {
		if search != "" && !matchesSearch(&a, search) {
			continue
		}
		if f.Condition != nil && a.Condition != *f.Condition {
			continue
		}
		if f.Bag != nil && a.Bag != *f.Bag {
			continue
		}
		if f.Facility != "" && a.Facility != f.Facility {
			continue
		}
		if bounded {
			d := a.ServiceDate()
			if d.IsZero() || d.Before(from) || d.After(to) {
				continue
			}
		}
		out = append(out, a)
	}

	sortRoster(out, f.Sort)
	return out
}

func matchesSearch(a *PatientAssignment, search string) bool {
	return strings.Contains(strings.ToLower(a.PatientName), search) ||
		strings.Contains(strings.ToLower(a.PatientDocument.String()), search)
}

// dateBounds resolves the filter mode to inclusive facility-date bounds
func (f FilterState) dateBounds() (from, to dates.Date, ok bool) {
	switch f.DateMode {
	case DateRangeToday:
		today := dates.Today()
		return today, today, true
	case DateRangeYesterday:
		y := dates.Yesterday()
		return y, y, true
	case DateRangeLast7:
		today := dates.Today()
		return today.AddDays(-6), today, true
	case DateRangeCustom:
		if f.From.IsZero() && f.To.IsZero() {
			return dates.Date{}, dates.Date{}, false
		}
		from, to = f.From, f.To
		if from.IsZero() {
			from = dates.NewDate(1, 1, 1)
		}
		if to.IsZero() {
			to = dates.NewDate(9999, 12, 31)
		}
		return from, to, true
	default:
		return dates.Date{}, dates.Date{}, false
	}
}

// sortRoster orders by normalized service date; assignments without a usable
// date always sort last regardless of direction. The sort is stable so equal
// dates keep their roster order.
func sortRoster(roster []PatientAssignment, mode SortMode) {
	if mode == "" {
		mode = SortMostRecent
	}

	sort.SliceStable(roster, func(i, j int) bool {
		di, dj := roster[i].ServiceDate(), roster[j].ServiceDate()
		switch {
		case di.IsZero() && dj.IsZero():
			return false
		case di.IsZero():
			return false
		case dj.IsZero():
			return true
		}
		if mode == SortOldest {
			return di.Before(dj)
		}
		return di.After(dj)
	})
}
