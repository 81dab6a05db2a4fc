package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/validation"
)

var (
	ErrRuleNotFound = errors.New("working hours rule not found")
)

// Rule is one working-hours entry. Exactly one of DayOfWeek and Date is set.
// EndDate is only read on creation, where it expands a day-off range.
type Rule struct {
	ID        uuid.UUID
	DayOfWeek *int
	Date      *time.Time
	EndDate   *time.Time
	StartTime *ClockTime
	EndTime   *ClockTime
	IsDayOff  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Rule) IsDateScoped() bool {
	return r.Date != nil
}

// Normalize clears fields the rule kind does not use.
func (r Rule) Normalize() Rule {
	if r.IsDayOff {
		r.StartTime = nil
		r.EndTime = nil
	}
	if r.IsDateScoped() {
		r.DayOfWeek = nil
	} else {
		r.EndDate = nil
	}
	return r
}

// Validate checks a rule before it is stored.
func (r Rule) Validate() error {
	v := validation.New()

	switch {
	case r.DayOfWeek == nil && r.Date == nil:
		v.Add("day_of_week", "either day_of_week or date is required")
	case r.DayOfWeek != nil && r.Date != nil:
		v.Add("day_of_week", "day_of_week and date are mutually exclusive")
	case r.DayOfWeek != nil && (*r.DayOfWeek < 0 || *r.DayOfWeek > 6):
		v.Add("day_of_week", "day_of_week must be between 0 (Sunday) and 6 (Saturday)")
	}

	if !r.IsDayOff && r.StartTime != nil && r.EndTime != nil && *r.EndTime <= *r.StartTime {
		v.Add("end_time", "end_time must be after start_time")
	}

	if r.EndDate != nil {
		switch {
		case r.Date == nil:
			v.Add("end_date", "end_date requires date")
		case !r.IsDayOff:
			v.Add("end_date", "end_date is only supported for day-off ranges")
		case r.EndDate.Before(*r.Date):
			v.Add("end_date", "end_date must not be before date")
		}
	}

	return v.Err()
}

// DatesAfter lists every date in (date, end_date], in order.
func (r Rule) DatesAfter() []time.Time {
	if r.Date == nil || r.EndDate == nil {
		return nil
	}
	var out []time.Time
	for d := r.Date.AddDate(0, 0, 1); !d.After(*r.EndDate); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
