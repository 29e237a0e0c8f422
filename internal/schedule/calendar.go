// ABOUTME: Calendar aggregation: groups schedule rows by local date and
// ABOUTME: computes per-day seat utilization for the back-office calendar view.
package schedule

import (
	"sort"
	"time"
)

// Entry is the slice of a schedule row the calendar needs.
type Entry struct {
	StartsAt time.Time
	Capacity int
	Booked   int
}

// Day is one aggregated calendar day.
type Day struct {
	Date           string // YYYY-MM-DD in the aggregation timezone
	ScheduleCount  int
	TotalCapacity  int
	TotalBooked    int
	UtilizationPct float64 // 0–100, rounded to one decimal; 0 when capacity is 0
}

// Aggregate groups entries by their local date in loc and computes per-day
// utilization. Days with no schedules are omitted. Output is sorted by date.
func Aggregate(entries []Entry, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	byDate := map[string]*Day{}
	for _, e := range entries {
		date := e.StartsAt.In(loc).Format(time.DateOnly)
		d, ok := byDate[date]
		if !ok {
			d = &Day{Date: date}
			byDate[date] = d
		}
		d.ScheduleCount++
		d.TotalCapacity += e.Capacity
		d.TotalBooked += e.Booked
	}

	out := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		if d.TotalCapacity > 0 {
			pct := float64(d.TotalBooked) / float64(d.TotalCapacity) * 100
			// Round to one decimal so the API output is stable.
			d.UtilizationPct = float64(int(pct*10+0.5)) / 10
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
