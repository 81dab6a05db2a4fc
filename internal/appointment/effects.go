package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// Returned by calendar adapters. ErrCalendarAuthExpired means the stored
	// authorization is gone and staff must re-authorize; it is never retried.
	ErrCalendarAuthExpired  = errors.New("calendar authorization expired")
	ErrCalendarUnavailable  = errors.New("calendar unavailable")
	ErrCalendarNotConnected = errors.New("calendar not connected")
)

// CalendarSync mirrors appointments into the practitioner's calendar.
type CalendarSync interface {
	CreateOrUpdateEvent(ctx context.Context, appt *Appointment) (string, error)
	CancelEvent(ctx context.Context, appt *Appointment) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// Notifier sends the lifecycle emails.
type Notifier interface {
	AppointmentPending(ctx context.Context, appt *Appointment) error
	AdminNewAppointment(ctx context.Context, appt *Appointment) error
	AppointmentApproved(ctx context.Context, appt *Appointment) error
	AppointmentCancelled(ctx context.Context, appt *Appointment) error
	AdminPatientCancelled(ctx context.Context, appt *Appointment) error
}

// ReminderScheduler queues and withdraws the pre-appointment reminder.
type ReminderScheduler interface {
	Schedule(ctx context.Context, appt *Appointment) error
	Cancel(ctx context.Context, appointmentID uuid.UUID) error
}

// EventIDStore persists the external calendar event id.
type EventIDStore interface {
	SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error
}

type Metrics interface {
	ObserveBooking(result string)
	ObserveTransition(from, to string)
	ObserveSideEffect(effect, result string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveBooking(string)            {}
func (nopMetrics) ObserveTransition(string, string) {}
func (nopMetrics) ObserveSideEffect(string, string) {}

type EffectsConfig struct {
	Store     EventIDStore
	Calendar  CalendarSync
	Notifier  Notifier
	Reminders ReminderScheduler
	Metrics   Metrics
	Logger    zerolog.Logger
	Timeout   time.Duration
}

// Effects runs the side effects attached to status transitions. Each effect
// is attempted independently; a failure is logged and counted but never
// fails the transition, which is already persisted when Apply is called.
type Effects struct {
	store     EventIDStore
	calendar  CalendarSync
	notifier  Notifier
	reminders ReminderScheduler
	metrics   Metrics
	logger    zerolog.Logger
	timeout   time.Duration
}

func NewEffects(cfg EffectsConfig) *Effects {
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	return &Effects{
		store:     cfg.Store,
		calendar:  cfg.Calendar,
		notifier:  cfg.Notifier,
		reminders: cfg.Reminders,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		timeout:   cfg.Timeout,
	}
}

// Apply fires the effects for one persisted transition.
func (e *Effects) Apply(ctx context.Context, tr Transition) {
	if e == nil || tr.Appointment == nil {
		return
	}
	// Effects outlive the request that triggered them.
	ctx = context.WithoutCancel(ctx)
	appt := tr.Appointment

	switch {
	case tr.Created() && tr.To == StatusPending:
		if e.notifier != nil {
			e.run(ctx, "email_pending", appt, e.notifier.AppointmentPending)
			e.run(ctx, "email_admin_new", appt, e.notifier.AdminNewAppointment)
		}

	case tr.To == StatusApproved:
		if e.calendar != nil {
			e.run(ctx, "calendar_upsert", appt, e.syncApproved)
		}
		if e.notifier != nil {
			e.run(ctx, "email_approved", appt, e.notifier.AppointmentApproved)
		}
		if e.reminders != nil {
			e.run(ctx, "reminder_schedule", appt, e.reminders.Schedule)
		}

	case tr.To.IsTerminal():
		if e.calendar != nil && appt.HasCalendarEvent() {
			e.run(ctx, "calendar_cancel", appt, e.calendar.CancelEvent)
		}
		if e.notifier != nil {
			e.run(ctx, "email_cancelled", appt, e.notifier.AppointmentCancelled)
			if tr.To == StatusCancelledByPatient {
				e.run(ctx, "email_admin_patient_cancelled", appt, e.notifier.AdminPatientCancelled)
			}
		}
		e.cancelReminder(ctx, appt)
	}
}

// Deleted cleans up after a staff soft delete.
func (e *Effects) Deleted(ctx context.Context, appt *Appointment) {
	if e == nil || appt == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if e.calendar != nil && appt.HasCalendarEvent() {
		e.run(ctx, "calendar_delete", appt, func(ctx context.Context, a *Appointment) error {
			return e.calendar.DeleteEvent(ctx, *a.CalendarEventID)
		})
	}
	e.cancelReminder(ctx, appt)
}

func (e *Effects) cancelReminder(ctx context.Context, appt *Appointment) {
	if e.reminders == nil {
		return
	}
	e.run(ctx, "reminder_cancel", appt, func(ctx context.Context, a *Appointment) error {
		return e.reminders.Cancel(ctx, a.ID)
	})
}

// syncApproved stores the event id only after the calendar accepted the
// event, and only when it differs from what is already stored.
func (e *Effects) syncApproved(ctx context.Context, appt *Appointment) error {
	eventID, err := e.calendar.CreateOrUpdateEvent(ctx, appt)
	if err != nil {
		return err
	}
	if eventID == "" || (appt.CalendarEventID != nil && *appt.CalendarEventID == eventID) {
		return nil
	}
	if e.store != nil {
		if err := e.store.SetCalendarEventID(ctx, appt.ID, &eventID); err != nil {
			return fmt.Errorf("store calendar event id: %w", err)
		}
	}
	appt.CalendarEventID = &eventID
	return nil
}

func (e *Effects) run(ctx context.Context, effect string, appt *Appointment, fn func(context.Context, *Appointment) error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	err := fn(ctx, appt)
	if err == nil {
		e.metrics.ObserveSideEffect(effect, "ok")
		e.logger.Debug().Str("effect", effect).Str("appointment_id", appt.ID.String()).Msg("side effect done")
		return
	}

	e.metrics.ObserveSideEffect(effect, "error")
	if errors.Is(err, ErrCalendarAuthExpired) || errors.Is(err, ErrCalendarNotConnected) {
		e.logger.Warn().Err(err).
			Str("effect", effect).
			Str("appointment_id", appt.ID.String()).
			Msg("calendar needs re-authorization, skipping sync")
		return
	}
	e.logger.Error().Err(err).
		Str("effect", effect).
		Str("appointment_id", appt.ID.String()).
		Msg("side effect failed")
}
