package database

import "testing"

func TestQueryOperation(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT 1", "SELECT"},
		{"select id, condition from roster.patient_assignments", "SELECT"},
		{"  INSERT INTO audit.activity_log VALUES ($1)", "INSERT"},
		{"update roster.patient_assignments set note = $1", "UPDATE"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		if got := queryOperation(tt.sql); got != tt.want {
			t.Errorf("queryOperation(%q) = %q, want %q", tt.sql, got, tt.want)
		}
	}
}
