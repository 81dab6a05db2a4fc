package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/clinic-booking/internal/validation"
)

const (
	SlotStep        = 30 * time.Minute
	DefaultDuration = 30 * time.Minute
)

// Interval is a half-open [Start, End) range occupied by a booking.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// Time is the HH:MM label shown to patients.
func (s Slot) Time() string {
	return ClockOf(s.Start).HHMM()
}

// BusySource returns the intervals already taken on a date by
// appointments that still hold their time (pending or approved).
type BusySource interface {
	BusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]Interval, error)
}

// GenerateSlots walks the day's window in fixed steps and marks every
// candidate that would collide with a busy interval.
func GenerateSlots(day Day, duration time.Duration, busy []Interval) []Slot {
	if day.DayOff {
		return []Slot{}
	}
	if duration <= 0 {
		duration = DefaultDuration
	}

	windowStart := day.WindowStart()
	windowEnd := day.WindowEnd()

	slots := []Slot{}
	for t := windowStart; !t.After(windowEnd); t = t.Add(SlotStep) {
		end := t.Add(duration)
		if end.After(windowEnd) {
			continue
		}
		available := true
		for _, b := range busy {
			if b.Overlaps(t, end) {
				available = false
				break
			}
		}
		slots = append(slots, Slot{Start: t, End: end, Available: available})
	}
	return slots
}

type SlotGenerator struct {
	calendar *Calendar
	busy     BusySource
	now      func() time.Time
}

func NewSlotGenerator(calendar *Calendar, busy BusySource) *SlotGenerator {
	return &SlotGenerator{calendar: calendar, busy: busy, now: time.Now}
}

// AvailableSlots lists candidate slots for the date. Dates before today
// are rejected; today itself is allowed.
func (g *SlotGenerator) AvailableSlots(ctx context.Context, date time.Time, durationMinutes int) (Day, []Slot, error) {
	loc := g.calendar.Location()
	date = DateOf(date, loc)
	if date.Before(DateOf(g.now(), loc)) {
		return Day{}, nil, validation.Field("date", "cannot select a date in the past")
	}

	day, err := g.calendar.Resolve(ctx, date)
	if err != nil {
		return Day{}, nil, err
	}
	if day.DayOff {
		return day, []Slot{}, nil
	}

	busy, err := g.busy.BusyIntervals(ctx, date, date.AddDate(0, 0, 1))
	if err != nil {
		return Day{}, nil, fmt.Errorf("load busy intervals: %w", err)
	}

	return day, GenerateSlots(day, time.Duration(durationMinutes)*time.Minute, busy), nil
}
