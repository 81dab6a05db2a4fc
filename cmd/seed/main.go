package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

var consultationTypes = []appointment.ConsultationType{
	{Name: "First consultation", DurationMinutes: 60, Features: []string{"Full clinical history", "Physical examination", "Treatment plan"}},
	{Name: "Follow-up", DurationMinutes: 30, Features: []string{"Progress review", "Prescription renewal"}},
	{Name: "Express check", DurationMinutes: 15, Features: []string{"Blood pressure", "Quick questions"}},
	{Name: "Online consultation", DurationMinutes: 45, Features: []string{"Video call", "Digital prescription"}},
}

func main() {
	bookings := flag.Int("bookings", 40, "sample pending bookings to create")
	days := flag.Int("days", 21, "spread sample bookings over this many days")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.Default()
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New("seed", cfg.Env, cfg.LogLevel)
	loc := cfg.Location()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{AppName: "seed", Timezone: cfg.Timezone, MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	appts := appointment.NewPgRepository(pool, loc)
	rules := schedule.NewPgRuleRepository(pool, loc)

	types, err := seedConsultationTypes(ctx, appts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed consultation types")
	}
	if err := seedWeeklyHours(ctx, rules, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed working hours")
	}
	if err := seedBookings(ctx, appts, types, *bookings, *days, loc, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed bookings")
	}

	logger.Info().Msg("seed complete")
}

func seedConsultationTypes(ctx context.Context, repo *appointment.PgRepository, logger zerolog.Logger) ([]appointment.ConsultationType, error) {
	existing, err := repo.ListConsultationTypes(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		logger.Info().Int("count", len(existing)).Msg("consultation types already present, skipping")
		return existing, nil
	}

	var out []appointment.ConsultationType
	for _, ct := range consultationTypes {
		created, err := repo.CreateConsultationType(ctx, ct)
		if err != nil {
			return nil, err
		}
		out = append(out, *created)
	}
	logger.Info().Int("count", len(out)).Msg("consultation types seeded")
	return out, nil
}

// seedWeeklyHours opens Monday to Friday 09:00-17:00, Saturday mornings,
// and closes Sunday.
func seedWeeklyHours(ctx context.Context, repo *schedule.PgRuleRepository, logger zerolog.Logger) error {
	existing, err := repo.ListRules(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info().Int("count", len(existing)).Msg("working hours already present, skipping")
		return nil
	}

	clock := func(s string) *schedule.ClockTime {
		c, err := schedule.ParseClock(s)
		if err != nil {
			panic(err)
		}
		return &c
	}

	for weekday := 0; weekday <= 6; weekday++ {
		day := weekday
		rule := schedule.Rule{DayOfWeek: &day}
		switch time.Weekday(weekday) {
		case time.Sunday:
			rule.IsDayOff = true
		case time.Saturday:
			rule.StartTime, rule.EndTime = clock("09:00"), clock("13:00")
		default:
			rule.StartTime, rule.EndTime = clock("09:00"), clock("17:00")
		}
		if _, err := repo.CreateRule(ctx, rule); err != nil {
			return err
		}
	}
	logger.Info().Msg("weekly working hours seeded")
	return nil
}

func seedBookings(ctx context.Context, repo *appointment.PgRepository, types []appointment.ConsultationType, count, days int, loc *time.Location, logger zerolog.Logger) error {
	if count <= 0 || len(types) == 0 {
		return nil
	}
	if days <= 0 {
		days = 1
	}

	faker := gofakeit.New(0)
	today := schedule.DateOf(time.Now(), loc)
	created := 0

	for i := 0; i < count; i++ {
		date := today.AddDate(0, 0, 1+faker.Number(0, days-1))
		if date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
		at := date.Add(time.Duration(9*60+30*faker.Number(0, 13)) * time.Minute)
		ct := types[faker.Number(0, len(types)-1)]

		name := faker.Name()
		email := faker.Email()
		phone := faker.Phone()

		user, err := repo.CreateUser(ctx, name, email, phone)
		if errors.Is(err, appointment.ErrDuplicateContact) {
			continue
		}
		if err != nil {
			return err
		}

		_, err = repo.CreateAppointment(ctx, &appointment.Appointment{
			UserID:             &user.ID,
			PatientName:        name,
			Email:              email,
			Phone:              phone,
			ConsultationTypeID: ct.ID,
			ScheduledAt:        at,
			Description:        faker.Sentence(8),
			Status:             appointment.StatusPending,
		})
		if err != nil {
			return err
		}
		created++
	}

	logger.Info().Int("count", created).Msg("sample bookings seeded")
	return nil
}
