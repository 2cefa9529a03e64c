package sweep

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueThreshold_ExactMatches(t *testing.T) {
	today := date(2026, 8, 1)
	cases := []struct {
		endDate time.Time
		want    int
		due     bool
	}{
		{date(2026, 8, 5), 4, true},
		{date(2026, 8, 8), 7, true},
		{date(2026, 8, 16), 15, true},
		{date(2026, 8, 31), 30, true},
		{date(2026, 8, 6), 0, false},  // 5 days out, between thresholds
		{date(2026, 8, 1), 0, false},  // ends today
		{date(2026, 9, 15), 0, false}, // beyond widest threshold
		{date(2026, 7, 25), 0, false}, // already past
	}
	for _, c := range cases {
		got, due := DueThreshold(c.endDate, today, DefaultThresholds)
		if due != c.due || got != c.want {
			t.Errorf("end %s: expected (%d,%v), got (%d,%v)",
				c.endDate.Format("2006-01-02"), c.want, c.due, got, due)
		}
	}
}

func TestDueThreshold_IgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2026, 8, 1, 23, 59, 0, 0, time.UTC)
	endDate := time.Date(2026, 8, 8, 0, 30, 0, 0, time.UTC)

	got, due := DueThreshold(endDate, today, DefaultThresholds)
	if !due || got != 7 {
		t.Fatalf("expected threshold 7, got (%d,%v)", got, due)
	}
}

func TestDueThreshold_CrossesMonthBoundary(t *testing.T) {
	today := date(2026, 1, 20)
	endDate := date(2026, 2, 19) // 30 days out, across the month boundary

	got, due := DueThreshold(endDate, today, DefaultThresholds)
	if !due || got != 30 {
		t.Fatalf("expected threshold 30, got (%d,%v)", got, due)
	}
}

func TestMaxThreshold(t *testing.T) {
	if got := maxThreshold(DefaultThresholds); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	if got := maxThreshold(nil); got != 0 {
		t.Fatalf("expected 0 for empty thresholds, got %d", got)
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2026, 8, 1, 17, 45, 3, 0, time.FixedZone("CET", 3600))
	got := dateOnly(in)
	want := date(2026, 8, 1)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
