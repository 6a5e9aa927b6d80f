package utils

import (
	"fmt"
	"math"
	"time"
)

// AgeMinutes returns how many whole minutes ago t was, rounded. Future times are 0.
func AgeMinutes(t, now time.Time) int {
	if t.IsZero() || !now.After(t) {
		return 0
	}
	return int(math.Round(now.Sub(t).Minutes()))
}

// IsFresh reports whether t is strictly younger than maxAge
func IsFresh(t time.Time, maxAge time.Duration, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	return now.Sub(t) < maxAge
}

// FreshestTime returns the latest non-zero time, zero when there is none
func FreshestTime(times []time.Time) time.Time {
	var latest time.Time
	for _, t := range times {
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}

// TimeUntilExpire returns the remaining lifetime of data written at t
func TimeUntilExpire(t time.Time, maxAge time.Duration, now time.Time) time.Duration {
	remaining := t.Add(maxAge).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatAge renders a cache age for logs and responses
func FormatAge(minutes int) string {
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%d minutes ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%d hours ago", minutes/60)
	default:
		return fmt.Sprintf("%d days ago", minutes/(24*60))
	}
}
