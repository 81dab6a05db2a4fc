package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

type memRules struct {
	rules []Rule
}

func (m *memRules) ListRules(ctx context.Context) ([]Rule, error) {
	return append([]Rule(nil), m.rules...), nil
}

func (m *memRules) ListRulesForDate(ctx context.Context, date time.Time) ([]Rule, error) {
	var out []Rule
	for _, r := range m.rules {
		if r.Date != nil && r.Date.Format(DateLayout) == date.Format(DateLayout) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRules) ListRulesForWeekday(ctx context.Context, weekday int) ([]Rule, error) {
	var out []Rule
	for _, r := range m.rules {
		if r.Date == nil && r.DayOfWeek != nil && *r.DayOfWeek == weekday {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRules) ListDayOffDates(ctx context.Context) ([]time.Time, error) {
	var out []time.Time
	for _, r := range m.rules {
		if r.IsDayOff && r.Date != nil {
			out = append(out, *r.Date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (m *memRules) ListDayOffWeekdays(ctx context.Context) ([]int, error) {
	var out []int
	for _, r := range m.rules {
		if r.IsDayOff && r.Date == nil && r.DayOfWeek != nil {
			out = append(out, *r.DayOfWeek)
		}
	}
	return out, nil
}

func (m *memRules) CreateRule(ctx context.Context, r Rule) (*Rule, error) {
	r.ID = uuid.New()
	r.EndDate = nil
	m.rules = append(m.rules, r)
	return &r, nil
}

func (m *memRules) DayOffExists(ctx context.Context, date time.Time) (bool, error) {
	for _, r := range m.rules {
		if r.IsDayOff && r.Date != nil && r.Date.Format(DateLayout) == date.Format(DateLayout) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRules) DeleteRule(ctx context.Context, id uuid.UUID) error {
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return ErrRuleNotFound
}

type staticBusy struct {
	intervals []Interval
	calls     int
}

func (s *staticBusy) BusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]Interval, error) {
	s.calls++
	return s.intervals, nil
}

func weekly(day int, start, end string) Rule {
	d := day
	r := Rule{DayOfWeek: &d}
	if start != "" {
		c := mustClock(start)
		r.StartTime = &c
	}
	if end != "" {
		c := mustClock(end)
		r.EndTime = &c
	}
	return r
}

func weeklyOff(day int) Rule {
	d := day
	return Rule{DayOfWeek: &d, IsDayOff: true}
}

func onDate(date time.Time, start, end string) Rule {
	r := weekly(0, start, end)
	r.DayOfWeek = nil
	r.Date = &date
	return r
}

func dateOff(date time.Time) Rule {
	return Rule{Date: &date, IsDayOff: true}
}

func mustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
