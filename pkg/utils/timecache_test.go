package utils

import (
	"testing"
	"time"
)

func TestIsFreshBoundary(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 60 * time.Minute

	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"exactly at boundary is stale", 60 * time.Minute, false},
		{"one minute under is fresh", 59 * time.Minute, true},
		{"older is stale", 90 * time.Minute, false},
		{"brand new", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(now.Add(-tt.age), maxAge, now); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if IsFresh(time.Time{}, maxAge, now) {
		t.Error("Zero time should never be fresh")
	}
}

func TestAgeMinutes(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	if got := AgeMinutes(now.Add(-89*time.Second), now); got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
	if got := AgeMinutes(now.Add(time.Hour), now); got != 0 {
		t.Errorf("Expected future time to be 0, got %d", got)
	}
}

func TestFreshestTime(t *testing.T) {
	a := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)
	if got := FreshestTime([]time.Time{a, b, {}}); !got.Equal(b) {
		t.Errorf("Expected %v, got %v", b, got)
	}
	if !FreshestTime(nil).IsZero() {
		t.Error("Expected zero time for empty input")
	}
}

func TestTimeUntilExpireAndFormatAge(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	if got := TimeUntilExpire(now.Add(-50*time.Minute), time.Hour, now); got != 10*time.Minute {
		t.Errorf("Expected 10m, got %v", got)
	}
	if got := TimeUntilExpire(now.Add(-2*time.Hour), time.Hour, now); got != 0 {
		t.Errorf("Expected 0, got %v", got)
	}
	if got := FormatAge(125); got != "2 hours ago" {
		t.Errorf("Unexpected age string %q", got)
	}
}
