package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RuleRepository contains all DB interactions for working-hours rules.
type RuleRepository interface {
	ListRules(ctx context.Context) ([]Rule, error)
	ListRulesForDate(ctx context.Context, date time.Time) ([]Rule, error)
	ListRulesForWeekday(ctx context.Context, weekday int) ([]Rule, error)

	// For the unavailable-dates projection
	ListDayOffDates(ctx context.Context) ([]time.Time, error)
	ListDayOffWeekdays(ctx context.Context) ([]int, error)

	CreateRule(ctx context.Context, r Rule) (*Rule, error)
	DayOffExists(ctx context.Context, date time.Time) (bool, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error
}
