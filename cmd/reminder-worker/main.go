package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.Default()
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("reminder-worker", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("lead_time", cfg.ReminderLeadTime).
		Msg("reminder worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(rootCtx, "reminder-worker", cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close()

	worker := reminder.NewWorker(reminder.WorkerConfig{
		Store:        deps.Reminders,
		Appointments: deps.Appointments,
		Sender:       deps.Dispatcher,
		Metrics:      deps.Metrics,
		Logger:       logger,
		Interval:     cfg.WorkerInterval,
		BatchSize:    cfg.ReminderBatchSize,
		MaxAttempts:  cfg.ReminderMaxAttempts,
		Backoff:      cfg.ReminderBackoff,
	})

	if err := worker.Run(rootCtx); err != nil && rootCtx.Err() == nil {
		logger.Error().Err(err).Msg("reminder worker stopped with error")
		return
	}
	logger.Info().Msg("shutdown signal received, reminder worker stopped")
}
