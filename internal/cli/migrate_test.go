package cli

import (
	"testing"

	"github.com/set-night/interviewcoach/internal/repository"
)

func TestMigrationSummary(t *testing.T) {
	tests := []struct {
		status repository.MigrationStatus
		want   string
	}{
		{repository.MigrationStatus{From: 0, To: 1}, "schema created at version 1"},
		{repository.MigrationStatus{From: 1, To: 1}, "schema is up to date at version 1"},
		{repository.MigrationStatus{From: 1, To: 3}, "schema migrated from version 1 to 3"},
	}
	for _, tt := range tests {
		if got := migrationSummary(tt.status); got != tt.want {
			t.Errorf("migrationSummary(%+v) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
