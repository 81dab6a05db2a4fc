package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

// BookingService is the part of *appointment.Service the handlers use.
type BookingService interface {
	SubmitBooking(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error)
	CancelByPatient(ctx context.Context, id uuid.UUID, token string) (*appointment.Appointment, error)
	GetPublic(ctx context.Context, id uuid.UUID, token string) (*appointment.Appointment, error)
	CanBeCancelled(appt *appointment.Appointment) bool
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, filter appointment.ListFilter) ([]appointment.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	ListConsultationTypes(ctx context.Context) ([]appointment.ConsultationType, error)
	GetConsultationType(ctx context.Context, id uuid.UUID) (*appointment.ConsultationType, error)
}

type SlotService interface {
	AvailableSlots(ctx context.Context, date time.Time, durationMinutes int) (schedule.Day, []schedule.Slot, error)
}

type AvailabilityService interface {
	UnavailableDates(ctx context.Context, from time.Time, months int) ([]string, error)
}

type RuleService interface {
	CreateRule(ctx context.Context, rule schedule.Rule) ([]schedule.Rule, error)
	ListRules(ctx context.Context) ([]schedule.Rule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

// CalendarAuth drives the staff OAuth consent flow.
type CalendarAuth interface {
	AuthURL(state string) string
	HandleAuthCallback(ctx context.Context, code string) error
	IsAuthenticated(ctx context.Context) bool
}

type SlotMetrics interface {
	ObserveSlotQuery(result string, seconds float64)
}

type nopSlotMetrics struct{}

func (nopSlotMetrics) ObserveSlotQuery(string, float64) {}

type RouterConfig struct {
	Bookings     BookingService
	Slots        SlotService
	Availability AvailabilityService
	Rules        RuleService
	Calendar     CalendarAuth // nil when calendar sync is not configured
	Postgres     Pinger
	Redis        Pinger
	Metrics      http.Handler
	SlotMetrics  SlotMetrics
	Logger       zerolog.Logger
	Location     *time.Location

	AdminJWTSecret           string
	UnavailableHorizonMonths int
	SecureCookies            bool
	Env                      string
	Version                  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotMetrics == nil {
		cfg.SlotMetrics = nopSlotMetrics{}
	}
	if cfg.UnavailableHorizonMonths <= 0 {
		cfg.UnavailableHorizonMonths = 3
	}
	logger := cfg.Logger

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/consultation-types", listConsultationTypesHandler(cfg.Bookings, logger))
		r.Get("/consultation-types/{id}/features", consultationFeaturesHandler(cfg.Bookings, logger))
		r.Get("/slots", availableSlotsHandler(cfg.Bookings, cfg.Slots, cfg.SlotMetrics, cfg.Location, logger))
		r.Get("/unavailable-dates", unavailableDatesHandler(cfg.Availability, cfg.UnavailableHorizonMonths, logger))
		r.Post("/appointments", submitBookingHandler(cfg.Bookings, logger))
	})

	r.Get("/appointment/{id}/{token}", publicAppointmentHandler(cfg.Bookings, logger))
	r.Post("/appointment/{id}/{token}/cancel", publicCancelHandler(cfg.Bookings, logger))

	if cfg.Calendar != nil {
		r.Get("/google/callback", calendarCallbackHandler(cfg.Calendar, logger))
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminJWT(cfg.AdminJWTSecret))

		r.Get("/appointments", listAppointmentsHandler(cfg.Bookings, cfg.Location, logger))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Bookings, logger))
		r.Patch("/appointments/{id}/status", changeStatusHandler(cfg.Bookings, logger))
		r.Post("/appointments/{id}/status", changeStatusHandler(cfg.Bookings, logger))
		r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Bookings, logger))

		r.Get("/working-hours", listWorkingHoursHandler(cfg.Rules, logger))
		r.Post("/working-hours", createWorkingHoursHandler(cfg.Rules, cfg.Location, logger))
		r.Delete("/working-hours/{id}", deleteWorkingHoursHandler(cfg.Rules, logger))

		if cfg.Calendar != nil {
			r.Get("/google/auth-url", calendarAuthURLHandler(cfg.Calendar, cfg.SecureCookies))
			r.Get("/google/status", calendarStatusHandler(cfg.Calendar))
		} else {
			r.Get("/google/status", calendarDisabledHandler)
		}
	})

	return r
}
