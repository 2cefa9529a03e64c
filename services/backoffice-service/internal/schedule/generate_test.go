package schedule

import (
	"testing"
	"time"
)

func TestGenerate_MondayWindow(t *testing.T) {
	windows := []Window{
		{Weekday: 1, StartMinute: 540, EndMinute: 720}, // Monday 09:00-12:00
	}
	// 2026-03-02 is a Monday.
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	slots, err := Generate(windows, 60*time.Minute, from, 1)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(from.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot at 09:00, got %s", slots[0].Start)
	}
	if !slots[2].End.Equal(from.Add(12 * time.Hour)) {
		t.Fatalf("expected last slot to end at 12:00, got %s", slots[2].End)
	}
}

func TestGenerate_NoWindowOnOtherWeekdays(t *testing.T) {
	windows := []Window{
		{Weekday: 1, StartMinute: 540, EndMinute: 720},
	}
	// 2026-03-03 is a Tuesday; a one-day horizon covers no Monday.
	from := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	slots, err := Generate(windows, 60*time.Minute, from, 1)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected 0 slots, got %d", len(slots))
	}
}

func TestGenerate_HorizonCoversRepeats(t *testing.T) {
	windows := []Window{
		{Weekday: 1, StartMinute: 540, EndMinute: 720},
	}
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// 14 days starting on a Monday contain two Mondays.
	slots, err := Generate(windows, 60*time.Minute, from, 14)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots over two Mondays, got %d", len(slots))
	}
	if !slots[3].Start.Equal(from.AddDate(0, 0, 7).Add(9 * time.Hour)) {
		t.Fatalf("expected fourth slot on the next Monday, got %s", slots[3].Start)
	}
}

func TestGenerate_SkipsDegenerateWindows(t *testing.T) {
	windows := []Window{
		{Weekday: 1, StartMinute: 720, EndMinute: 720},
		{Weekday: 1, StartMinute: 800, EndMinute: 700},
	}
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	slots, err := Generate(windows, 30*time.Minute, from, 7)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected 0 slots from degenerate windows, got %d", len(slots))
	}
}

func TestGenerate_InvalidDuration(t *testing.T) {
	windows := []Window{{Weekday: 1, StartMinute: 540, EndMinute: 720}}
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if _, err := Generate(windows, 0, from, 7); err != ErrInvalidDuration {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestGenerate_DeterministicAcrossRuns(t *testing.T) {
	windows := []Window{
		{Weekday: 2, StartMinute: 600, EndMinute: 1020},
		{Weekday: 4, StartMinute: 480, EndMinute: 960},
	}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := Generate(windows, 30*time.Minute, from, 30)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := Generate(windows, 30*time.Minute, from, 30)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("runs disagree: %d vs %d slots", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("slot %d differs between runs", i)
		}
	}
}
