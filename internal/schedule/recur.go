// ABOUTME: Recurring-schedule expansion: day-of-week × time-slot cartesian
// ABOUTME: product over a date range, hard-capped to bound one bulk request.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultBulkCap bounds the number of instances one recurrence request may
// produce. Requests that would exceed the cap are rejected outright rather
// than truncated, so callers never silently lose instances.
const DefaultBulkCap = 500

// Slot is a time of day in the org's local timezone.
type Slot struct {
	Hour   int
	Minute int
}

// Recurrence describes a bulk generation request: every listed weekday within
// [From, To] (inclusive, date-only), at each listed slot.
type Recurrence struct {
	From     time.Time
	To       time.Time
	Weekdays []time.Weekday
	Slots    []Slot
	Location *time.Location
}

// ErrTooManyInstances is returned when the expansion would exceed the cap.
var ErrTooManyInstances = errors.New("recurrence expands to too many instances")

// Expand returns the start instants produced by r, sorted ascending, or
// ErrTooManyInstances if the expansion would exceed cap (cap <= 0 means
// DefaultBulkCap). Duplicate weekdays and slots are collapsed.
func Expand(r Recurrence, cap int) ([]time.Time, error) {
	if cap <= 0 {
		cap = DefaultBulkCap
	}
	if r.To.Before(r.From) {
		return nil, fmt.Errorf("recurrence: to %s precedes from %s",
			r.To.Format(time.DateOnly), r.From.Format(time.DateOnly))
	}
	if len(r.Weekdays) == 0 || len(r.Slots) == 0 {
		return nil, errors.New("recurrence: at least one weekday and one slot required")
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, s := range r.Slots {
		if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
			return nil, fmt.Errorf("recurrence: invalid slot %02d:%02d", s.Hour, s.Minute)
		}
	}

	wanted := map[time.Weekday]bool{}
	for _, d := range r.Weekdays {
		wanted[d] = true
	}
	slots := dedupeSlots(r.Slots)

	from := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, loc)
	to := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, loc)

	var out []time.Time
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !wanted[day.Weekday()] {
			continue
		}
		for _, s := range slots {
			if len(out) >= cap {
				return nil, fmt.Errorf("%w: cap %d", ErrTooManyInstances, cap)
			}
			out = append(out, time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, loc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func dedupeSlots(in []Slot) []Slot {
	seen := map[Slot]bool{}
	out := make([]Slot, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Minute < out[j].Minute
	})
	return out
}
