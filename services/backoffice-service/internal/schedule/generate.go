package schedule

import "time"

// Window is a recurring weekly availability window, minutes from
// midnight. Weekday follows time.Weekday (0 = Sunday).
type Window struct {
	Weekday     int
	StartMinute int
	EndMinute   int
}

// Generate materializes concrete slots for every date in
// [from, from+horizonDays) whose weekday has a window. Windows with
// StartMinute >= EndMinute produce nothing. Slots are returned in
// chronological order per window.
func Generate(windows []Window, slotDuration time.Duration, from time.Time, horizonDays int) ([]Slot, error) {
	if slotDuration <= 0 {
		return nil, ErrInvalidDuration
	}

	byWeekday := make(map[int][]Window)
	for _, w := range windows {
		if w.StartMinute >= w.EndMinute {
			continue
		}
		byWeekday[w.Weekday] = append(byWeekday[w.Weekday], w)
	}

	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())

	var slots []Slot
	for i := 0; i < horizonDays; i++ {
		date := day.AddDate(0, 0, i)
		for _, w := range byWeekday[int(date.Weekday())] {
			windowStart := date.Add(time.Duration(w.StartMinute) * time.Minute)
			windowEnd := date.Add(time.Duration(w.EndMinute) * time.Minute)
			daySlots, err := Split(windowStart, windowEnd, slotDuration)
			if err != nil {
				return nil, err
			}
			slots = append(slots, daySlots...)
		}
	}
	return slots, nil
}
