//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTargetDB_Seeded(t *testing.T) {
	targetDB := GetTargetDB(t)
	ctx := context.Background()

	tests := []struct {
		table    string
		expected int
	}{
		{"companies", 2},
		{"users", 2},
		{"tasks", 4},
		{"comments", 1},
	}

	for _, tt := range tests {
		var count int
		if err := targetDB.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tt.table).Scan(&count); err != nil {
			t.Errorf("failed to count %s: %v", tt.table, err)
			continue
		}
		if count != tt.expected {
			t.Errorf("%s: expected %d rows, got %d", tt.table, tt.expected, count)
		}
	}
}
