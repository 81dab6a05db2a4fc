package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Day is the resolved working window for one date.
type Day struct {
	Date   time.Time
	DayOff bool
	Start  ClockTime
	End    ClockTime
}

// WindowStart and WindowEnd return the absolute bounds of the day's window.
func (d Day) WindowStart() time.Time { return d.Start.On(d.Date) }
func (d Day) WindowEnd() time.Time   { return d.End.On(d.Date) }

// Calendar answers working-hours questions from the stored rules.
type Calendar struct {
	rules RuleRepository
	loc   *time.Location
}

func NewCalendar(rules RuleRepository, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{rules: rules, loc: loc}
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Resolve loads the rules touching date and applies precedence.
func (c *Calendar) Resolve(ctx context.Context, date time.Time) (Day, error) {
	date = DateOf(date, c.loc)

	dateRules, err := c.rules.ListRulesForDate(ctx, date)
	if err != nil {
		return Day{}, fmt.Errorf("load date rules: %w", err)
	}

	var weekly []Rule
	if len(dateRules) == 0 {
		weekly, err = c.rules.ListRulesForWeekday(ctx, int(date.Weekday()))
		if err != nil {
			return Day{}, fmt.Errorf("load weekly rules: %w", err)
		}
	}

	return ResolveDay(date, dateRules, weekly), nil
}

func (c *Calendar) IsDayOff(ctx context.Context, date time.Time) (bool, error) {
	day, err := c.Resolve(ctx, date)
	if err != nil {
		return false, err
	}
	return day.DayOff, nil
}

// WorkingWindow returns the day's bounds. Callers should check IsDayOff first;
// for a day off the defaults are returned.
func (c *Calendar) WorkingWindow(ctx context.Context, date time.Time) (ClockTime, ClockTime, error) {
	day, err := c.Resolve(ctx, date)
	if err != nil {
		return 0, 0, err
	}
	return day.Start, day.End, nil
}

// UnavailableDates lists explicit day-off dates plus every date within
// months of from that falls on a weekly day off, sorted and unique.
func (c *Calendar) UnavailableDates(ctx context.Context, from time.Time, months int) ([]string, error) {
	explicit, err := c.rules.ListDayOffDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load day-off dates: %w", err)
	}
	weekdays, err := c.rules.ListDayOffWeekdays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weekly days off: %w", err)
	}

	start := DateOf(from, c.loc)
	return unavailableDates(explicit, weekdays, start, start.AddDate(0, months, 0)), nil
}

func unavailableDates(explicit []time.Time, weekdays []int, from, until time.Time) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(d time.Time) {
		key := d.Format(DateLayout)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}

	for _, d := range explicit {
		add(d)
	}

	if len(weekdays) > 0 {
		off := make(map[time.Weekday]bool, len(weekdays))
		for _, w := range weekdays {
			off[time.Weekday(w)] = true
		}
		for d := from; !d.After(until); d = d.AddDate(0, 0, 1) {
			if off[d.Weekday()] {
				add(d)
			}
		}
	}

	sort.Strings(out)
	return out
}

// ResolveDay applies rule precedence for a single date. Date-scoped rules
// override weekly ones; within a scope any day-off rule wins.
func ResolveDay(date time.Time, dateRules, weeklyRules []Rule) Day {
	day := Day{Date: date, Start: DefaultDayStart, End: DefaultDayEnd}

	rules := dateRules
	if len(rules) == 0 {
		rules = weeklyRules
	}

	for _, r := range rules {
		if r.IsDayOff {
			day.DayOff = true
			return day
		}
	}

	for _, r := range rules {
		if r.StartTime == nil && r.EndTime == nil {
			continue
		}
		if r.StartTime != nil {
			day.Start = *r.StartTime
		}
		if r.EndTime != nil {
			day.End = *r.EndTime
		}
		break
	}

	return day
}
