// ABOUTME: Tests for calendar aggregation: date grouping, utilization math,
// ABOUTME: zero-capacity handling, and output ordering.
package schedule

import (
	"testing"
	"time"
)

func TestAggregate_GroupsByDate(t *testing.T) {
	t.Parallel()
	entries := []Entry{
		{StartsAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), Capacity: 10, Booked: 5},
		{StartsAt: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), Capacity: 10, Booked: 10},
		{StartsAt: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), Capacity: 20, Booked: 4},
	}
	days := Aggregate(entries, time.UTC)
	if len(days) != 2 {
		t.Fatalf("got %d days, want 2", len(days))
	}

	d0 := days[0]
	if d0.Date != "2026-03-02" || d0.ScheduleCount != 2 {
		t.Errorf("day 0 = %+v, want date 2026-03-02 with 2 schedules", d0)
	}
	if d0.TotalCapacity != 20 || d0.TotalBooked != 15 {
		t.Errorf("day 0 totals = %d/%d, want 15/20", d0.TotalBooked, d0.TotalCapacity)
	}
	if d0.UtilizationPct != 75.0 {
		t.Errorf("day 0 utilization = %v, want 75.0", d0.UtilizationPct)
	}

	d1 := days[1]
	if d1.Date != "2026-03-03" || d1.UtilizationPct != 20.0 {
		t.Errorf("day 1 = %+v, want 2026-03-03 at 20%%", d1)
	}
}

func TestAggregate_ZeroCapacity(t *testing.T) {
	t.Parallel()
	days := Aggregate([]Entry{
		{StartsAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), Capacity: 0, Booked: 0},
	}, time.UTC)
	if len(days) != 1 {
		t.Fatalf("got %d days, want 1", len(days))
	}
	if days[0].UtilizationPct != 0 {
		t.Errorf("zero-capacity utilization = %v, want 0", days[0].UtilizationPct)
	}
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()
	if days := Aggregate(nil, time.UTC); len(days) != 0 {
		t.Errorf("got %d days for empty input, want 0", len(days))
	}
}

// A schedule late in the evening UTC lands on the next local date east of UTC.
func TestAggregate_TimezoneGrouping(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	days := Aggregate([]Entry{
		{StartsAt: time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC), Capacity: 10, Booked: 1},
	}, loc)
	if len(days) != 1 || days[0].Date != "2026-03-03" {
		t.Errorf("days = %+v, want single day 2026-03-03 (JST)", days)
	}
}

func TestAggregate_RoundsToOneDecimal(t *testing.T) {
	t.Parallel()
	// 1/3 booked → 33.333…% → 33.3.
	days := Aggregate([]Entry{
		{StartsAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), Capacity: 3, Booked: 1},
	}, time.UTC)
	if days[0].UtilizationPct != 33.3 {
		t.Errorf("utilization = %v, want 33.3", days[0].UtilizationPct)
	}
}
