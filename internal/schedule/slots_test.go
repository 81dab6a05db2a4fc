package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/validation"
)

func at(date time.Time, clock string) time.Time {
	return mustClock(clock).On(date)
}

func labels(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time())
	}
	return out
}

func unavailable(slots []Slot) []string {
	var out []string
	for _, s := range slots {
		if !s.Available {
			out = append(out, s.Time())
		}
	}
	return out
}

func TestGenerateSlotsFullDay(t *testing.T) {
	d := Day{Date: monday, Start: mustClock("09:00"), End: mustClock("17:00")}

	slots := GenerateSlots(d, 30*time.Minute, nil)

	require.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0].Time())
	assert.Equal(t, "16:30", slots[len(slots)-1].Time())
	assert.Empty(t, unavailable(slots))
}

func TestGenerateSlotsLongConsultationMustFitWindow(t *testing.T) {
	d := Day{Date: monday, Start: mustClock("09:00"), End: mustClock("11:00")}

	slots := GenerateSlots(d, 60*time.Minute, nil)

	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, labels(slots))
}

func TestGenerateSlotsMarksOverlaps(t *testing.T) {
	d := Day{Date: monday, Start: mustClock("09:00"), End: mustClock("12:00")}
	busy := []Interval{{Start: at(monday, "10:00"), End: at(monday, "11:00")}}

	slots := GenerateSlots(d, 30*time.Minute, busy)

	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, labels(slots))
	assert.Equal(t, []string{"10:00", "10:30"}, unavailable(slots))
}

func TestGenerateSlotsLongCandidateOverlapsLaterBooking(t *testing.T) {
	d := Day{Date: monday, Start: mustClock("09:00"), End: mustClock("12:00")}
	busy := []Interval{{Start: at(monday, "10:30"), End: at(monday, "11:00")}}

	slots := GenerateSlots(d, 60*time.Minute, busy)

	// 09:30-10:30 touches the booking only at its edge.
	assert.Equal(t, []string{"10:00", "10:30"}, unavailable(slots))
}

func TestGenerateSlotsKeepsWallClockWindowOnDSTDays(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Lisbon")
	require.NoError(t, err)

	cases := map[string]time.Time{
		"spring forward": time.Date(2026, 3, 29, 0, 0, 0, 0, loc),
		"fall back":      time.Date(2026, 10, 25, 0, 0, 0, 0, loc),
	}
	for name, date := range cases {
		t.Run(name, func(t *testing.T) {
			d := ResolveDay(date, nil, nil)
			busy := []Interval{{Start: at(date, "10:00"), End: at(date, "10:30")}}

			slots := GenerateSlots(d, 30*time.Minute, busy)

			require.Len(t, slots, 16)
			assert.Equal(t, "09:00", slots[0].Time())
			assert.Equal(t, "16:30", slots[len(slots)-1].Time())
			assert.False(t, slots[len(slots)-1].End.After(d.WindowEnd()))
			assert.Equal(t, []string{"10:00"}, unavailable(slots))
		})
	}
}

func TestGenerateSlotsDayOffIsEmpty(t *testing.T) {
	slots := GenerateSlots(Day{Date: monday, DayOff: true}, 30*time.Minute, nil)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestGenerateSlotsNonPositiveDurationDefaults(t *testing.T) {
	d := Day{Date: monday, Start: mustClock("09:00"), End: mustClock("10:00")}
	assert.Equal(t, []string{"09:00", "09:30"}, labels(GenerateSlots(d, 0, nil)))
}

func TestGenerateSlotsInvertedWindowIsEmpty(t *testing.T) {
	d := Day{Date: monday, Start: mustClock("18:00"), End: mustClock("17:00")}
	assert.Empty(t, GenerateSlots(d, 30*time.Minute, nil))
}

func newGenerator(repo *memRules, busy *staticBusy, now time.Time) *SlotGenerator {
	g := NewSlotGenerator(NewCalendar(repo, time.UTC), busy)
	g.now = func() time.Time { return now }
	return g
}

func TestAvailableSlotsUsesBusySource(t *testing.T) {
	busy := &staticBusy{intervals: []Interval{{Start: at(monday, "09:00"), End: at(monday, "09:30")}}}
	g := newGenerator(&memRules{rules: []Rule{weekly(1, "09:00", "10:30")}}, busy, day(2026, 8, 1))

	d, slots, err := g.AvailableSlots(context.Background(), monday, 30)
	require.NoError(t, err)

	assert.False(t, d.DayOff)
	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, labels(slots))
	assert.Equal(t, []string{"09:00"}, unavailable(slots))
	assert.Equal(t, 1, busy.calls)
}

func TestAvailableSlotsDayOffSkipsBusyLookup(t *testing.T) {
	busy := &staticBusy{}
	g := newGenerator(&memRules{rules: []Rule{dateOff(monday)}}, busy, day(2026, 8, 1))

	d, slots, err := g.AvailableSlots(context.Background(), monday, 30)
	require.NoError(t, err)
	assert.True(t, d.DayOff)
	assert.Empty(t, slots)
	assert.Zero(t, busy.calls)
}

func TestAvailableSlotsRejectsPastDate(t *testing.T) {
	g := newGenerator(&memRules{}, &staticBusy{}, day(2026, 8, 4).Add(10*time.Hour))

	_, _, err := g.AvailableSlots(context.Background(), monday, 30)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "date")
}

func TestAvailableSlotsAllowsToday(t *testing.T) {
	g := newGenerator(&memRules{}, &staticBusy{}, monday.Add(15*time.Hour))

	_, slots, err := g.AvailableSlots(context.Background(), monday, 30)
	require.NoError(t, err)
	assert.Len(t, slots, 16)
}
