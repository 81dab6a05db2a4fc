package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
)

type PgRuleRepository struct {
	pool db.Pool
	loc  *time.Location
}

func NewPgRuleRepository(pool db.Pool, loc *time.Location) *PgRuleRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PgRuleRepository{pool: pool, loc: loc}
}

const ruleColumns = `id, day_of_week, date, to_char(start_time, 'HH24:MI:SS'), to_char(end_time, 'HH24:MI:SS'), is_day_off, created_at, updated_at`

func (r *PgRuleRepository) scanRule(row pgx.Row) (*Rule, error) {
	var (
		rule      Rule
		dow       *int32
		date      *time.Time
		startTime *string
		endTime   *string
	)

	err := row.Scan(
		&rule.ID,
		&dow,
		&date,
		&startTime,
		&endTime,
		&rule.IsDayOff,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	if dow != nil {
		d := int(*dow)
		rule.DayOfWeek = &d
	}
	if date != nil {
		d := r.inZone(*date)
		rule.Date = &d
	}
	if rule.StartTime, err = parseNullableClock(startTime); err != nil {
		return nil, err
	}
	if rule.EndTime, err = parseNullableClock(endTime); err != nil {
		return nil, err
	}

	return &rule, nil
}

// Postgres dates come back as UTC midnight; keep the calendar day.
func (r *PgRuleRepository) inZone(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}

func parseNullableClock(s *string) (*ClockTime, error) {
	if s == nil {
		return nil, nil
	}
	c, err := ParseClock(*s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func clockParam(c *ClockTime) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func dateParam(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

func (r *PgRuleRepository) queryRules(ctx context.Context, sql string, args ...any) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRuleRepository) ListRules(ctx context.Context) ([]Rule, error) {
	return r.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM working_hours
		ORDER BY date NULLS FIRST, day_of_week, created_at
	`)
}

func (r *PgRuleRepository) ListRulesForDate(ctx context.Context, date time.Time) ([]Rule, error) {
	return r.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM working_hours
		WHERE date = $1::date
		ORDER BY created_at
	`, date.Format(DateLayout))
}

func (r *PgRuleRepository) ListRulesForWeekday(ctx context.Context, weekday int) ([]Rule, error) {
	return r.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM working_hours
		WHERE day_of_week = $1
		  AND date IS NULL
		ORDER BY created_at
	`, weekday)
}

func (r *PgRuleRepository) ListDayOffDates(ctx context.Context) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT date
		FROM working_hours
		WHERE is_day_off = true
		  AND date IS NOT NULL
		ORDER BY date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		result = append(result, r.inZone(d))
	}
	return result, rows.Err()
}

func (r *PgRuleRepository) ListDayOffWeekdays(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT day_of_week
		FROM working_hours
		WHERE is_day_off = true
		  AND date IS NULL
		  AND day_of_week IS NOT NULL
		ORDER BY day_of_week
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []int
	for rows.Next() {
		var d int32
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		result = append(result, int(d))
	}
	return result, rows.Err()
}

func (r *PgRuleRepository) CreateRule(ctx context.Context, rule Rule) (*Rule, error) {
	id := uuid.New()

	var dow *int32
	if rule.DayOfWeek != nil {
		d := int32(*rule.DayOfWeek)
		dow = &d
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO working_hours (id, day_of_week, date, start_time, end_time, is_day_off, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4::time, $5::time, $6, now(), now())
		RETURNING `+ruleColumns,
		id, dow, dateParam(rule.Date), clockParam(rule.StartTime), clockParam(rule.EndTime), rule.IsDayOff)

	created, err := r.scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("insert working hours: %w", err)
	}
	return created, nil
}

func (r *PgRuleRepository) DayOffExists(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM working_hours
			WHERE date = $1::date AND is_day_off = true
		)
	`, date.Format(DateLayout)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRuleRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM working_hours WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete working hours: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}
