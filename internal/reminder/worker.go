package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

type AppointmentSource interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type Sender interface {
	AppointmentReminder(ctx context.Context, appt *appointment.Appointment) error
}

type Metrics interface {
	ObserveReminder(result string)
}

type WorkerConfig struct {
	Store        Store
	Appointments AppointmentSource
	Sender       Sender
	Metrics      Metrics
	Logger       zerolog.Logger
	Interval     time.Duration
	BatchSize    int
	MaxAttempts  int
	Backoff      time.Duration
	Lease        time.Duration
}

// Worker polls for due reminders and sends them.
type Worker struct {
	store        Store
	appointments AppointmentSource
	sender       Sender
	metrics      Metrics
	logger       zerolog.Logger
	interval     time.Duration
	batchSize    int
	maxAttempts  int
	backoff      time.Duration
	lease        time.Duration
	now          func() time.Time
}

func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Minute
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	return &Worker{
		store:        cfg.Store,
		appointments: cfg.Appointments,
		sender:       cfg.Sender,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		interval:     cfg.Interval,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		backoff:      cfg.Backoff,
		lease:        cfg.Lease,
		now:          time.Now,
	}
}

// Run processes due reminders until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	start := time.Now()
	sent, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("reminder run failed")
		return
	}
	w.logger.Debug().Int("sent", sent).Dur("took", time.Since(start)).Msg("reminder run complete")
}

// RunOnce claims one batch and returns how many reminders were sent.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()
	jobs, err := w.store.ClaimDue(ctx, now, w.batchSize, now.Add(w.lease))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if w.process(ctx, job) {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) process(ctx context.Context, job Job) bool {
	log := w.logger.With().Str("appointment_id", job.AppointmentID.String()).Int("attempt", job.Attempts).Logger()

	appt, err := w.appointments.GetAppointment(ctx, job.AppointmentID)
	if errors.Is(err, appointment.ErrAppointmentNotFound) {
		w.skip(ctx, log, job, "appointment gone")
		return false
	}
	if err != nil {
		w.retryOrFail(ctx, log, job, err)
		return false
	}
	if appt.Status != appointment.StatusApproved || !appt.ScheduledAt.After(w.now()) {
		w.skip(ctx, log, job, "appointment no longer approved or already started")
		return false
	}

	if err := w.sender.AppointmentReminder(ctx, appt); err != nil {
		w.retryOrFail(ctx, log, job, err)
		return false
	}
	if err := w.store.MarkSent(ctx, job.AppointmentID); err != nil {
		log.Error().Err(err).Msg("reminder sent but not marked")
	}
	w.observe("sent")
	log.Info().Msg("reminder sent")
	return true
}

func (w *Worker) skip(ctx context.Context, log zerolog.Logger, job Job, reason string) {
	if err := w.store.Cancel(ctx, job.AppointmentID); err != nil {
		log.Error().Err(err).Msg("failed to cancel stale reminder")
	}
	w.observe("skipped")
	log.Debug().Str("reason", reason).Msg("reminder skipped")
}

func (w *Worker) retryOrFail(ctx context.Context, log zerolog.Logger, job Job, cause error) {
	if job.Attempts >= w.maxAttempts {
		if err := w.store.Fail(ctx, job.AppointmentID, cause.Error()); err != nil {
			log.Error().Err(err).Msg("failed to mark reminder failed")
		}
		w.observe("failed")
		log.Error().Err(cause).Msg("reminder gave up")
		return
	}

	at := w.now().Add(w.backoff * time.Duration(job.Attempts))
	if err := w.store.Retry(ctx, job.AppointmentID, at, cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to reschedule reminder")
	}
	w.observe("retry")
	log.Warn().Err(cause).Time("retry_at", at).Msg("reminder failed, will retry")
}

func (w *Worker) observe(result string) {
	if w.metrics != nil {
		w.metrics.ObserveReminder(result)
	}
}
