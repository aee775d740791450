// Package dates owns every timestamp-to-calendar-date conversion in the
// platform. Upstream services emit timestamps in two conventions (UTC with a
// "Z" suffix or no offset at all, and facility-local with an explicit offset);
// no other package parses them directly.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// FacilityOffsetHours is the fixed offset of the facility. The facility does
// not observe daylight saving, so the offset never changes.
const FacilityOffsetHours = -5

// FacilityZone is the fixed-offset location used for all calendar-date math.
var FacilityZone = time.FixedZone("UTC-5", FacilityOffsetHours*60*60)

// nowFunc is swapped in tests
var nowFunc = time.Now

// Date is a facility-local calendar date with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date from its components
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero checks if the date is unset
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight of the date in the facility zone
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, FacilityZone)
}

// AddDays returns the date shifted by n calendar days
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is earlier than other
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is later than other
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// FromTime extracts the facility-local calendar date from an instant.
// For a UTC instant this is equivalent to subtracting the facility offset
// before reading the date components; for an instant already carrying the
// facility offset it reads the components as-is.
func FromTime(t time.Time) Date {
	local := t.In(FacilityZone)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// timestamp layouts accepted from upstream, checked in order
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

const dateOnlyLayout = "2006-01-02"

// ToFacilityDate converts an upstream timestamp string into a facility-local
// calendar date.
//
//   - A date-only value has no time component to shift and passes through
//     unchanged.
//   - A value with an explicit offset is an unambiguous instant; the facility
//     date is read from it directly.
//   - A value with no offset is assumed UTC and shifted by the facility offset
//     before the date is extracted.
func ToFacilityDate(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{}, fmt.Errorf("empty timestamp")
	}

	if len(s) == len(dateOnlyLayout) {
		t, err := time.Parse(dateOnlyLayout, s)
		if err != nil {
			return Date{}, fmt.Errorf("invalid date %q: %w", raw, err)
		}
		return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
	}

	for _, layout := range layouts {
		// ParseInLocation assumes UTC for layouts without an offset; layouts
		// with an explicit offset keep it.
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return FromTime(t), nil
		}
	}

	return Date{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// Today returns the current facility-local date, computed through the same
// conversion as every other date so "today" comparisons never drift.
func Today() Date {
	return FromTime(nowFunc())
}

// Yesterday returns the facility-local date one day before Today
func Yesterday() Date {
	return Today().AddDays(-1)
}
