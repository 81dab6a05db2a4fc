// Package app assembles the booking components from configuration. The
// binaries under cmd/ share it so they agree on how stores and senders
// are chosen.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/reminder"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

// Deps holds the process-wide components.
type Deps struct {
	Config   config.Config
	Logger   zerolog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client // nil when Redis is unreachable and not required
	Registry *prometheus.Registry
	Metrics  *metrics.BookingMetrics

	Appointments *appointment.PgRepository
	Rules        *schedule.PgRuleRepository
	Calendar     *calendar.GoogleAdapter // nil when calendar sync is not configured
	Dispatcher   *notify.Dispatcher
	Reminders    *reminder.PgStore
	Links        *appointment.Links
	Tokens       *appointment.TokenSigner
}

// Build connects to Postgres and Redis and wires the shared components.
// service names the Postgres session (application_name).
// Redis is only mandatory when the calendar token lives there.
func Build(ctx context.Context, service string, cfg config.Config, logger zerolog.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Logger: logger}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{AppName: service, Timezone: cfg.Timezone})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}
	d.Pool = pool
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	switch {
	case err == nil:
		d.Redis = rdb
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	case cfg.CalendarEnabled() && cfg.CalendarTokenStore == "redis":
		d.Close()
		return nil, fmt.Errorf("redis connection: %w", err)
	default:
		logger.Warn().Err(err).Msg("redis unavailable, calendar refresh lock disabled")
	}

	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	d.Metrics = metrics.NewBookingMetrics(d.Registry)

	loc := cfg.Location()
	d.Appointments = appointment.NewPgRepository(pool, loc)
	d.Rules = schedule.NewPgRuleRepository(pool, loc)
	d.Reminders = reminder.NewPgStore(pool)
	d.Tokens = appointment.NewTokenSigner(cfg.PublicTokenSecret)
	d.Links = appointment.NewLinks(cfg.PublicBaseURL, d.Tokens)

	sender, err := EmailSender(ctx, cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
		Sender:     sender,
		Links:      d.Links,
		AdminEmail: cfg.AdminEmail,
		Location:   loc,
		Logger:     logger.With().Str("component", "notify").Logger(),
	})

	if cfg.CalendarEnabled() {
		d.Calendar = d.newCalendar()
	} else {
		logger.Info().Msg("google calendar credentials not set, calendar sync disabled")
	}

	return d, nil
}

func (d *Deps) newCalendar() *calendar.GoogleAdapter {
	cfg := d.Config

	var store calendar.TokenStore = calendar.NewPgTokenStore(d.Pool)
	if cfg.CalendarTokenStore == "redis" {
		store = calendar.NewRedisTokenStore(d.Redis, calendar.DefaultRedisTokenKey)
	}

	var locker redisclient.Locker
	if d.Redis != nil {
		locker = redisclient.NewRedisLocker(d.Redis, cfg.LockTTL, d.Logger)
	}

	return calendar.NewGoogleAdapter(calendar.GoogleConfig{
		ClientID:      cfg.GoogleClientID,
		ClientSecret:  cfg.GoogleClientSecret,
		RedirectURL:   cfg.GoogleRedirectURL,
		CalendarID:    cfg.GoogleCalendarID,
		Location:      cfg.Location(),
		RefreshBuffer: cfg.TokenRefreshBuffer,
	}, store, locker, d.Metrics, d.Logger)
}

// EmailSender picks the configured provider. A provider without
// credentials falls back to the log-only stub.
func EmailSender(ctx context.Context, cfg config.Config, logger zerolog.Logger) (notify.EmailSender, error) {
	log := logger.With().Str("component", "email").Logger()

	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, log); s != nil {
			return s, nil
		}
		log.Warn().Msg("SENDGRID_API_KEY not set, using stub email sender")
	case "ses":
		sesCfg := notify.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			FromEmail:       cfg.EmailFromAddress,
			FromName:        cfg.EmailFromName,
		}
		client, err := notify.NewSESClient(ctx, sesCfg)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		return notify.NewSESSender(client, sesCfg, log), nil
	}
	return notify.NewStubEmailSender(log), nil
}

// Effects builds the side-effect runner for status transitions.
func (d *Deps) Effects() *appointment.Effects {
	cfg := appointment.EffectsConfig{
		Store:     d.Appointments,
		Notifier:  d.Dispatcher,
		Reminders: reminder.NewScheduler(d.Reminders, d.Config.ReminderLeadTime, d.Logger),
		Metrics:   d.Metrics,
		Logger:    d.Logger.With().Str("component", "effects").Logger(),
		Timeout:   d.Config.CalendarCallTimeout,
	}
	if d.Calendar != nil {
		cfg.Calendar = d.Calendar
	}
	return appointment.NewEffects(cfg)
}

// Service builds the booking service.
func (d *Deps) Service() *appointment.Service {
	return appointment.NewService(appointment.ServiceConfig{
		Repo:     d.Appointments,
		Effects:  d.Effects(),
		Tokens:   d.Tokens,
		Location: d.Config.Location(),
		Logger:   d.Logger.With().Str("component", "booking").Logger(),
		Metrics:  d.Metrics,
	})
}

func (d *Deps) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("error closing redis")
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
