package analytics

import (
	"testing"
	"time"

	"github.com/finbeat/finbeat/internal/domain"
)

func TestExecutionKey(t *testing.T) {
	day := time.Date(2024, 1, 15, 13, 45, 0, 0, time.UTC)
	got := executionKey(42, day)
	want := "o:42:exec:20240115"
	if got != want {
		t.Errorf("executionKey = %q, want %q", got, want)
	}
}

func TestAlertKey(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got := alertKey(7, domain.AlertBudget100, day)
	want := "o:7:alert:budget_100:20240301"
	if got != want {
		t.Errorf("alertKey = %q, want %q", got, want)
	}
}

func TestDayBucket_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 02:00 on Jan 16 in UTC+5 is still Jan 15 in UTC.
	local := time.Date(2024, 1, 16, 2, 0, 0, 0, loc)
	if got := dayBucket(local); got != "20240115" {
		t.Errorf("dayBucket = %q, want 20240115", got)
	}
}
