package dates

import (
	"testing"
	"time"
)

// TestToFacilityDate tests timestamp normalization across upstream conventions
func TestToFacilityDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"UTC just after midnight shifts back a day", "2026-02-13T00:20:00Z", "2026-02-12"},
		{"UTC late evening stays on facility previous day", "2026-02-13T04:59:59Z", "2026-02-12"},
		{"UTC past the offset boundary", "2026-02-13T05:00:00Z", "2026-02-13"},
		{"UTC midday", "2026-02-13T17:00:00Z", "2026-02-13"},
		{"Date-only passes through unchanged", "2026-02-13", "2026-02-13"},
		{"Explicit facility offset reads components directly", "2026-02-13T23:30:00-05:00", "2026-02-13"},
		{"Explicit facility offset near midnight", "2026-02-13T00:10:00-05:00", "2026-02-13"},
		{"No offset assumed UTC", "2026-02-13T03:00:00", "2026-02-12"},
		{"Fractional seconds", "2026-02-13T00:20:00.123Z", "2026-02-12"},
		{"Month boundary", "2026-03-01T02:00:00Z", "2026-02-28"},
		{"Year boundary", "2026-01-01T04:00:00Z", "2025-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToFacilityDate(tt.raw)
			if err != nil {
				t.Fatalf("ToFacilityDate(%q): %v", tt.raw, err)
			}
			if got.String() != tt.want {
				t.Errorf("ToFacilityDate(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

// TestToFacilityDateInvalid tests rejection of malformed inputs
func TestToFacilityDateInvalid(t *testing.T) {
	for _, raw := range []string{"", "not-a-date", "13/02/2026", "2026-2-13"} {
		if _, err := ToFacilityDate(raw); err == nil {
			t.Errorf("ToFacilityDate(%q): expected error", raw)
		}
	}
}

// TestToday tests that "today" uses the same conversion as other dates
func TestToday(t *testing.T) {
	// 00:20 UTC on Feb 13 is still Feb 12 at the facility
	nowFunc = func() time.Time {
		return time.Date(2026, time.February, 13, 0, 20, 0, 0, time.UTC)
	}
	defer func() { nowFunc = time.Now }()

	if got := Today().String(); got != "2026-02-12" {
		t.Errorf("Today() = %s, want 2026-02-12", got)
	}
	if got := Yesterday().String(); got != "2026-02-11" {
		t.Errorf("Yesterday() = %s, want 2026-02-11", got)
	}
}

// TestDateArithmetic tests AddDays and ordering
func TestDateArithmetic(t *testing.T) {
	d := NewDate(2026, time.February, 12)

	if got := d.AddDays(30).String(); got != "2026-03-14" {
		t.Errorf("AddDays(30) = %s, want 2026-03-14", got)
	}
	if got := d.AddDays(-12).String(); got != "2026-01-31" {
		t.Errorf("AddDays(-12) = %s, want 2026-01-31", got)
	}

	if !d.Before(d.AddDays(1)) {
		t.Error("expected Before to hold for next day")
	}
	if !d.After(d.AddDays(-1)) {
		t.Error("expected After to hold for previous day")
	}

	var zero Date
	if !zero.IsZero() {
		t.Error("zero value should report IsZero")
	}
	if d.IsZero() {
		t.Error("populated date should not report IsZero")
	}
}
