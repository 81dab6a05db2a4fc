// calendar-check verifies the stored Google Calendar token, refreshing it
// when it is close to expiry. It exits non-zero when staff need to
// re-authorize, so it can run from cron or a readiness hook.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hackgods/clinic-booking/internal/app"
	"github.com/hackgods/clinic-booking/internal/calendar"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.Default()
		bootLog.Error().Err(err).Msg("config load error")
		return 1
	}
	logger := logging.New("calendar-check", cfg.Env, cfg.LogLevel)

	if !cfg.CalendarEnabled() {
		logger.Error().Msg("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL must be set")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deps, err := app.Build(ctx, "calendar-check", cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return 1
	}
	defer deps.Close()

	tok, err := deps.Calendar.CheckToken(ctx)
	switch {
	case errors.Is(err, calendar.ErrNotAuthenticated), errors.Is(err, calendar.ErrAuthExpired):
		logger.Error().Err(err).Msg("calendar is not authorized, visit /admin/google/auth-url")
		return 1
	case err != nil:
		logger.Error().Err(err).Msg("token check failed")
		return 1
	}

	fmt.Printf("calendar token valid until %s\n", tok.Expiry.In(cfg.Location()).Format(time.RFC3339))
	return 0
}
