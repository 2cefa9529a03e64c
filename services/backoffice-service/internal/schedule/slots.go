package schedule

import (
	"errors"
	"time"
)

var ErrInvalidDuration = errors.New("slot duration must be positive")

type Slot struct {
	Start time.Time
	End   time.Time
}

// Split tiles [windowStart, windowEnd) into consecutive slots of length
// duration. A trailing remainder shorter than duration is dropped. An
// empty or inverted window yields no slots.
//
// All times are expected to be in the same location (timezone).
func Split(windowStart, windowEnd time.Time, duration time.Duration) ([]Slot, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if !windowEnd.After(windowStart) {
		return nil, nil
	}

	var slots []Slot
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(duration) {
		slots = append(slots, Slot{Start: t, End: t.Add(duration)})
	}
	return slots, nil
}

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) share any instant. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// OverlapsAny reports whether [start,end) overlaps any of the busy slots.
func OverlapsAny(start, end time.Time, busy []Slot) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
