// ABOUTME: Tests for recurring-schedule expansion: cartesian product, cap
// ABOUTME: enforcement, input validation, and ordering.
package schedule

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpand_WeekdayBySlotProduct(t *testing.T) {
	t.Parallel()
	// Mon 2026-03-02 .. Sun 2026-03-08: one Monday, one Wednesday.
	r := Recurrence{
		From:     date(2026, time.March, 2),
		To:       date(2026, time.March, 8),
		Weekdays: []time.Weekday{time.Monday, time.Wednesday},
		Slots:    []Slot{{Hour: 9, Minute: 0}, {Hour: 14, Minute: 30}},
	}
	got, err := Expand(r, 0)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d instances, want 4 (2 days × 2 slots)", len(got))
	}
	want := []time.Time{
		time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 2, 14, 30, 0, 0, time.UTC),
		time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 4, 14, 30, 0, 0, time.UTC),
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("instance %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpand_CapExceeded(t *testing.T) {
	t.Parallel()
	// Every day, 2 slots, ~1 year → far over a cap of 500.
	r := Recurrence{
		From: date(2026, time.January, 1),
		To:   date(2026, time.December, 31),
		Weekdays: []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
		Slots: []Slot{{Hour: 9}, {Hour: 14}},
	}
	_, err := Expand(r, 500)
	if !errors.Is(err, ErrTooManyInstances) {
		t.Fatalf("err = %v, want ErrTooManyInstances", err)
	}
}

func TestExpand_AtCapExactly(t *testing.T) {
	t.Parallel()
	// 10 Mondays × 1 slot with cap 10 must succeed.
	r := Recurrence{
		From:     date(2026, time.March, 2),
		To:       date(2026, time.May, 4),
		Weekdays: []time.Weekday{time.Monday},
		Slots:    []Slot{{Hour: 9}},
	}
	got, err := Expand(r, 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("got %d instances, want 10", len(got))
	}
}

func TestExpand_InvalidInputs(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		r    Recurrence
	}{
		{"to before from", Recurrence{
			From: date(2026, time.March, 8), To: date(2026, time.March, 2),
			Weekdays: []time.Weekday{time.Monday}, Slots: []Slot{{Hour: 9}},
		}},
		{"no weekdays", Recurrence{
			From: date(2026, time.March, 2), To: date(2026, time.March, 8),
			Slots: []Slot{{Hour: 9}},
		}},
		{"no slots", Recurrence{
			From: date(2026, time.March, 2), To: date(2026, time.March, 8),
			Weekdays: []time.Weekday{time.Monday},
		}},
		{"bad slot", Recurrence{
			From: date(2026, time.March, 2), To: date(2026, time.March, 8),
			Weekdays: []time.Weekday{time.Monday}, Slots: []Slot{{Hour: 24}},
		}},
	}
	for _, tc := range cases {
		if _, err := Expand(tc.r, 0); err == nil {
			t.Errorf("%s: want error, got nil", tc.name)
		}
	}
}

func TestExpand_DuplicateSlotsCollapsed(t *testing.T) {
	t.Parallel()
	r := Recurrence{
		From:     date(2026, time.March, 2),
		To:       date(2026, time.March, 2),
		Weekdays: []time.Weekday{time.Monday},
		Slots:    []Slot{{Hour: 9}, {Hour: 9}, {Hour: 9}},
	}
	got, err := Expand(r, 0)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d instances, want 1 (duplicates collapsed)", len(got))
	}
}

func TestExpand_TimezoneApplied(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	r := Recurrence{
		From:     date(2026, time.March, 2),
		To:       date(2026, time.March, 2),
		Weekdays: []time.Weekday{time.Monday},
		Slots:    []Slot{{Hour: 9}},
		Location: loc,
	}
	got, err := Expand(r, 0)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got[0].Location() != loc {
		t.Errorf("instance location = %v, want %v", got[0].Location(), loc)
	}
	if h := got[0].Hour(); h != 9 {
		t.Errorf("local hour = %d, want 9", h)
	}
}
