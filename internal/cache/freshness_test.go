package cache

import (
	"testing"
	"time"
)

func TestClassifyBoundaries(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	softTTL := time.Hour

	tests := []struct {
		name    string
		age     time.Duration
		present bool
		force   bool
		want    Freshness
	}{
		{"absent entry", 0, false, false, Missing},
		{"forced refresh ignores entry", time.Minute, true, true, Missing},
		{"age zero", 0, true, false, Fresh},
		{"age below soft ttl", 59 * time.Minute, true, false, Fresh},
		{"age exactly soft ttl", time.Hour, true, false, Fresh},
		{"age just past soft ttl", time.Hour + time.Second, true, false, Stale},
		{"very old entry", 400 * time.Hour, true, false, Stale},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now := func() time.Time { return base }
			classifier := NewClassifier(softTTL, now)
			entry := Entry{SavedAt: base.Add(-tc.age)}
			if got := classifier.Classify(entry, tc.present, tc.force); got != tc.want {
				t.Fatalf("classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifierDefaultsToWallClock(t *testing.T) {
	classifier := NewClassifier(time.Hour, nil)
	entry := Entry{SavedAt: time.Now().Add(-time.Minute)}
	if got := classifier.Classify(entry, true, false); got != Fresh {
		t.Fatalf("classify = %q, want %q", got, Fresh)
	}
}
