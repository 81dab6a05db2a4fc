package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RuleService manages working-hours rules, including day-off ranges.
type RuleService struct {
	repo   RuleRepository
	logger zerolog.Logger
}

func NewRuleService(repo RuleRepository, logger zerolog.Logger) *RuleService {
	return &RuleService{repo: repo, logger: logger}
}

// CreateRule stores a rule. A date-scoped day-off rule with an end date
// also gets one day-off rule per date in (date, end_date]; dates that
// already carry a day-off rule are skipped, so re-submitting a range is
// harmless. The returned slice starts with the submitted rule, or with the
// day-off rule already stored for its date.
func (s *RuleService) CreateRule(ctx context.Context, rule Rule) ([]Rule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	rule = rule.Normalize()

	head, err := s.existingDayOff(ctx, rule)
	if err != nil {
		return nil, err
	}
	if head == nil {
		if head, err = s.repo.CreateRule(ctx, rule); err != nil {
			return nil, fmt.Errorf("create rule: %w", err)
		}
	}
	result := []Rule{*head}

	for _, date := range rule.DatesAfter() {
		exists, err := s.repo.DayOffExists(ctx, date)
		if err != nil {
			return result, fmt.Errorf("check day off %s: %w", date.Format(DateLayout), err)
		}
		if exists {
			continue
		}

		d := date
		extra, err := s.repo.CreateRule(ctx, Rule{Date: &d, IsDayOff: true})
		if err != nil {
			return result, fmt.Errorf("create day off %s: %w", date.Format(DateLayout), err)
		}
		result = append(result, *extra)
	}

	if len(result) > 1 {
		s.logger.Info().
			Str("from", rule.Date.Format(DateLayout)).
			Str("to", rule.EndDate.Format(DateLayout)).
			Int("created", len(result)).
			Msg("day-off range expanded")
	}

	return result, nil
}

// existingDayOff returns the stored day-off rule for a date-scoped day-off
// submission, or nil when the date has none yet.
func (s *RuleService) existingDayOff(ctx context.Context, rule Rule) (*Rule, error) {
	if !rule.IsDayOff || !rule.IsDateScoped() {
		return nil, nil
	}
	exists, err := s.repo.DayOffExists(ctx, *rule.Date)
	if err != nil {
		return nil, fmt.Errorf("check day off %s: %w", rule.Date.Format(DateLayout), err)
	}
	if !exists {
		return nil, nil
	}
	rules, err := s.repo.ListRulesForDate(ctx, *rule.Date)
	if err != nil {
		return nil, fmt.Errorf("list rules for %s: %w", rule.Date.Format(DateLayout), err)
	}
	for i := range rules {
		if rules[i].IsDayOff {
			return &rules[i], nil
		}
	}
	return nil, nil
}

func (s *RuleService) ListRules(ctx context.Context) ([]Rule, error) {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *RuleService) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteRule(ctx, id)
}
