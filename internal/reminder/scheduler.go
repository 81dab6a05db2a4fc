package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

const DefaultLeadTime = 24 * time.Hour

// Scheduler queues a reminder lead before each approved appointment.
type Scheduler struct {
	store  Store
	lead   time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

func NewScheduler(store Store, lead time.Duration, logger zerolog.Logger) *Scheduler {
	if lead <= 0 {
		lead = DefaultLeadTime
	}
	return &Scheduler{store: store, lead: lead, logger: logger, now: time.Now}
}

var _ appointment.ReminderScheduler = (*Scheduler)(nil)

// Schedule is a no-op when the reminder time has already passed.
func (s *Scheduler) Schedule(ctx context.Context, appt *appointment.Appointment) error {
	at := appt.ScheduledAt.Add(-s.lead)
	if !at.After(s.now()) {
		s.logger.Debug().
			Str("appointment_id", appt.ID.String()).
			Msg("reminder time already passed, not scheduling")
		return nil
	}
	if err := s.store.Upsert(ctx, appt.ID, at); err != nil {
		return err
	}
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Time("remind_at", at).
		Msg("reminder scheduled")
	return nil
}

func (s *Scheduler) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	return s.store.Cancel(ctx, appointmentID)
}
