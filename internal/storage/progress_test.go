package storage

import (
	"testing"

	"github.com/claude/spotter/internal/session"
)

// TestFieldColumn verifies that every adjustable field maps to its column.
func TestFieldColumn(t *testing.T) {
	tests := []struct {
		field session.Field
		want  string
	}{
		{session.FieldWeight, "target_weight"},
		{session.FieldReps, "target_reps"},
		{session.FieldRestTime, "rest_time_after"},
	}
	for _, tt := range tests {
		got, err := fieldColumn(tt.field)
		if err != nil {
			t.Fatalf("fieldColumn(%q) unexpected error: %v", tt.field, err)
		}
		if got != tt.want {
			t.Errorf("fieldColumn(%q) = %q, want %q", tt.field, got, tt.want)
		}
	}
}

// TestFieldColumnUnknown verifies that unknown fields never reach the SQL
// text, since the column name is interpolated into the statement.
func TestFieldColumnUnknown(t *testing.T) {
	if _, err := fieldColumn("target_weight; DROP TABLE entry_sets"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
