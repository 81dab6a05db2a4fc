package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.Default()
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("api-server", cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("timezone", cfg.Timezone).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(rootCtx, "api-server", cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer deps.Close()

	loc := cfg.Location()
	days := schedule.NewCalendar(deps.Rules, loc)

	routerCfg := api.RouterConfig{
		Bookings:                 deps.Service(),
		Slots:                    schedule.NewSlotGenerator(days, deps.Appointments),
		Availability:             days,
		Rules:                    schedule.NewRuleService(deps.Rules, logger.With().Str("component", "schedule").Logger()),
		Postgres:                 deps.Pool,
		Metrics:                  metrics.Handler(deps.Registry),
		SlotMetrics:              deps.Metrics,
		Logger:                   logger,
		Location:                 loc,
		AdminJWTSecret:           cfg.AdminJWTSecret,
		UnavailableHorizonMonths: cfg.UnavailableHorizonMonths,
		SecureCookies:            cfg.Env == "production",
		Env:                      cfg.Env,
		Version:                  version,
	}
	if deps.Redis != nil {
		routerCfg.Redis = api.RedisPinger(deps.Redis)
	}
	if deps.Calendar != nil {
		routerCfg.Calendar = deps.Calendar
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn().Msg("ADMIN_JWT_SECRET not set, admin routes will reject every request")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server failed")
		deps.Close()
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("api-server stopped")
}
