package schedule

import (
	"testing"
	"time"
)

func TestSplit_DropsShortRemainder(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	end := time.Date(2026, 3, 2, 10, 30, 0, 0, loc)

	slots, err := Split(start, end, 60*time.Minute)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	// 90 minutes / 60 = 1 full slot; the 30-minute tail is dropped.
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(start) || !slots[0].End.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected slot %v", slots[0])
	}
}

func TestSplit_ExactFit(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	end := start.Add(3 * time.Hour)

	slots, err := Split(start, end, 60*time.Minute)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.Equal(slots[i-1].End) {
			t.Fatalf("slots not contiguous at index %d", i)
		}
	}
	if !slots[2].End.Equal(end) {
		t.Fatalf("last slot must end at window end, got %s", slots[2].End)
	}
}

func TestSplit_InvalidDuration(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for _, d := range []time.Duration{0, -15 * time.Minute} {
		if _, err := Split(start, start.Add(time.Hour), d); err != ErrInvalidDuration {
			t.Fatalf("duration %v: expected ErrInvalidDuration, got %v", d, err)
		}
	}
}

func TestSplit_EmptyAndInvertedWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	slots, err := Split(start, start, 30*time.Minute)
	if err != nil || len(slots) != 0 {
		t.Fatalf("empty window: expected no slots, got %d (err %v)", len(slots), err)
	}

	slots, err = Split(start, start.Add(-time.Hour), 30*time.Minute)
	if err != nil || len(slots) != 0 {
		t.Fatalf("inverted window: expected no slots, got %d (err %v)", len(slots), err)
	}
}

func TestSplit_WindowShorterThanDuration(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	slots, err := Split(start, start.Add(45*time.Minute), time.Hour)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected 0 slots, got %d", len(slots))
	}
}

func TestSplit_SlotCountIsFloor(t *testing.T) {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	cases := []struct {
		window   time.Duration
		duration time.Duration
		want     int
	}{
		{8 * time.Hour, 30 * time.Minute, 16},
		{7*time.Hour + 50*time.Minute, 30 * time.Minute, 15},
		{2 * time.Hour, 45 * time.Minute, 2},
		{29 * time.Minute, 30 * time.Minute, 0},
	}
	for _, c := range cases {
		slots, err := Split(start, start.Add(c.window), c.duration)
		if err != nil {
			t.Fatalf("Split failed: %v", err)
		}
		if len(slots) != c.want {
			t.Fatalf("window %v / %v: expected %d slots, got %d", c.window, c.duration, c.want, len(slots))
		}
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	h := func(hours int) time.Time { return base.Add(time.Duration(hours) * time.Hour) }

	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"identical", h(0), h(1), h(0), h(1), true},
		{"partial overlap", h(0), h(2), h(1), h(3), true},
		{"containment", h(0), h(4), h(1), h(2), true},
		{"back to back", h(0), h(1), h(1), h(2), false},
		{"disjoint", h(0), h(1), h(2), h(3), false},
	}
	for _, c := range cases {
		if got := Overlaps(c.aStart, c.aEnd, c.bStart, c.bEnd); got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestOverlapsAny(t *testing.T) {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	busy := []Slot{
		{Start: base.Add(9 * time.Hour), End: base.Add(10 * time.Hour)},
		{Start: base.Add(14 * time.Hour), End: base.Add(15 * time.Hour)},
	}
	if OverlapsAny(base.Add(10*time.Hour), base.Add(11*time.Hour), busy) {
		t.Fatal("slot starting where a busy interval ends must not overlap")
	}
	if !OverlapsAny(base.Add(9*time.Hour+30*time.Minute), base.Add(10*time.Hour+30*time.Minute), busy) {
		t.Fatal("expected overlap with 09:00-10:00")
	}
}
