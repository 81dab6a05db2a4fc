package schedule

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRuleExpandsRange(t *testing.T) {
	repo := &memRules{}
	svc := NewRuleService(repo, zerolog.Nop())

	from := day(2026, 8, 10)
	to := day(2026, 8, 13)
	r := dateOff(from)
	r.EndDate = &to

	created, err := svc.CreateRule(context.Background(), r)
	require.NoError(t, err)

	require.Len(t, created, 4)
	var dates []string
	for _, c := range created {
		assert.True(t, c.IsDayOff)
		assert.Nil(t, c.EndDate)
		dates = append(dates, c.Date.Format(DateLayout))
	}
	assert.Equal(t, []string{"2026-08-10", "2026-08-11", "2026-08-12", "2026-08-13"}, dates)
}

func TestCreateRuleRangeIsIdempotent(t *testing.T) {
	repo := &memRules{}
	svc := NewRuleService(repo, zerolog.Nop())

	from := day(2026, 8, 10)
	to := day(2026, 8, 12)
	r := dateOff(from)
	r.EndDate = &to

	first, err := svc.CreateRule(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, first, 3)

	again, err := svc.CreateRule(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, first[0].ID, again[0].ID)

	// Widening the range only adds the new trailing date.
	wider := day(2026, 8, 13)
	r2 := dateOff(day(2026, 8, 11))
	r2.EndDate = &wider
	created, err := svc.CreateRule(context.Background(), r2)
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, "2026-08-11", created[0].Date.Format(DateLayout))
	assert.Equal(t, "2026-08-13", created[1].Date.Format(DateLayout))

	offDates, err := repo.ListDayOffDates(context.Background())
	require.NoError(t, err)
	var got []string
	for _, d := range offDates {
		got = append(got, d.Format(DateLayout))
	}
	assert.Equal(t, []string{"2026-08-10", "2026-08-11", "2026-08-12", "2026-08-13"}, got)
}

func TestCreateRuleNormalizesDayOffTimes(t *testing.T) {
	repo := &memRules{}
	svc := NewRuleService(repo, zerolog.Nop())

	r := weekly(6, "09:00", "13:00")
	r.IsDayOff = true

	created, err := svc.CreateRule(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Nil(t, created[0].StartTime)
	assert.Nil(t, created[0].EndTime)
}

func TestCreateRuleRejectsInvalid(t *testing.T) {
	repo := &memRules{}
	svc := NewRuleService(repo, zerolog.Nop())

	_, err := svc.CreateRule(context.Background(), weekly(1, "18:00", "08:00"))
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "end_time")
	assert.Empty(t, repo.rules)
}

func TestDeleteRule(t *testing.T) {
	repo := &memRules{}
	svc := NewRuleService(repo, zerolog.Nop())

	created, err := svc.CreateRule(context.Background(), weeklyOff(0))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRule(context.Background(), created[0].ID))
	assert.ErrorIs(t, svc.DeleteRule(context.Background(), created[0].ID), ErrRuleNotFound)
}
