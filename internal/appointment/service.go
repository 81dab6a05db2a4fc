package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-booking/internal/logging"
)

const (
	EventAppointmentCreated      = "APPOINTMENT_CREATED"
	EventAppointmentStatusChange = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentDeleted      = "APPOINTMENT_DELETED"
)

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrStatusConflict          = errors.New("appointment status changed concurrently, reload and retry")
	ErrNotCancellable          = errors.New("appointment can no longer be cancelled")
)

type ServiceConfig struct {
	Repo     Repository
	Effects  *Effects
	Tokens   *TokenSigner
	Location *time.Location
	Logger   zerolog.Logger
	Metrics  Metrics
}

// Service is the booking entry point for both the public and staff APIs.
type Service struct {
	repo    Repository
	effects *Effects
	tokens  *TokenSigner
	loc     *time.Location
	logger  zerolog.Logger
	metrics Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	return &Service{
		repo:    cfg.Repo,
		effects: cfg.Effects,
		tokens:  cfg.Tokens,
		loc:     cfg.Location,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer("clinic-booking/appointment"),
		now:     time.Now,
	}
}

// SubmitBooking validates the public form, reuses or creates the patient
// and stores a pending appointment. Overlapping bookings are not rejected
// here; staff resolve them at approval time.
func (s *Service) SubmitBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.SubmitBooking")
	defer span.End()

	b, err := s.validateBooking(ctx, req)
	if err != nil {
		s.metrics.ObserveBooking("invalid")
		recordSpanError(span, err)
		return nil, err
	}

	user, err := s.resolveUser(ctx, b.name, b.email, b.phone)
	if err != nil {
		if errors.Is(err, ErrDuplicateContact) {
			s.metrics.ObserveBooking("duplicate_contact")
		} else {
			s.metrics.ObserveBooking("error")
		}
		recordSpanError(span, err)
		return nil, err
	}

	appt, err := s.repo.CreateAppointment(ctx, &Appointment{
		UserID:             &user.ID,
		PatientName:        b.name,
		Email:              b.email,
		Phone:              b.phone,
		ConsultationTypeID: b.ct.ID,
		ScheduledAt:        b.at,
		Description:        b.description,
		Status:             StatusPending,
	})
	if err != nil {
		s.metrics.ObserveBooking("error")
		recordSpanError(span, err)
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	if appt.ConsultationType == nil {
		appt.ConsultationType = b.ct
	}

	span.SetAttributes(
		attribute.String("appointment.id", appt.ID.String()),
		attribute.String("appointment.consultation_type", b.ct.Name),
	)

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"user_id":              user.ID.String(),
		"consultation_type_id": b.ct.ID.String(),
		"appointment_time":     appt.ScheduledAt,
	})
	s.metrics.ObserveBooking("created")
	log := logging.FromContext(ctx, s.logger)
	log.Info().
		Str("appointment_id", appt.ID.String()).
		Time("appointment_time", appt.ScheduledAt).
		Msg("booking submitted")

	s.effects.Apply(ctx, Transition{Appointment: appt, To: StatusPending, Actor: ActorPatient})

	return appt, nil
}

// resolveUser reuses a patient only on an exact email and phone match.
func (s *Service) resolveUser(ctx context.Context, name, email, phone string) (*User, error) {
	user, err := s.repo.FindUserByContact(ctx, email, phone)
	switch {
	case err == nil:
		if user.Name != name {
			if err := s.repo.UpdateUserName(ctx, user.ID, name); err != nil {
				return nil, fmt.Errorf("update patient name: %w", err)
			}
			user.Name = name
		}
		return user, nil
	case errors.Is(err, ErrUserNotFound):
		created, err := s.repo.CreateUser(ctx, name, email, phone)
		if err != nil {
			if errors.Is(err, ErrDuplicateContact) {
				return nil, ErrDuplicateContact
			}
			return nil, fmt.Errorf("create patient: %w", err)
		}
		return created, nil
	default:
		return nil, fmt.Errorf("find patient: %w", err)
	}
}

// ChangeStatus applies a staff decision. Requesting the current status is a
// no-op and fires nothing.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.ChangeStatus",
		trace.WithAttributes(attribute.String("appointment.id", id.String()), attribute.String("appointment.to", string(to))))
	defer span.End()

	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == to {
		return appt, nil
	}
	if !CanTransition(appt.Status, to, ActorStaff) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, appt.Status, to)
	}

	updated, err := s.transition(ctx, appt, to, ActorStaff)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			err = ErrStatusConflict
		}
		recordSpanError(span, err)
		return nil, err
	}
	return updated, nil
}

// CancelByPatient cancels through the public token link.
func (s *Service) CancelByPatient(ctx context.Context, id uuid.UUID, token string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointment.CancelByPatient",
		trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer span.End()

	appt, err := s.GetPublic(ctx, id, token)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	if !appt.CanBeCancelled(s.now()) || !CanTransition(appt.Status, StatusCancelledByPatient, ActorPatient) {
		return nil, ErrNotCancellable
	}

	updated, err := s.transition(ctx, appt, StatusCancelledByPatient, ActorPatient)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			err = ErrNotCancellable
		}
		recordSpanError(span, err)
		return nil, err
	}
	return updated, nil
}

// transition persists a status change conditionally on the status the
// caller observed; only the winner of that update runs the side effects.
func (s *Service) transition(ctx context.Context, appt *Appointment, to Status, actor Actor) (*Appointment, error) {
	from := appt.Status

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, from, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	if updated.ConsultationType == nil {
		updated.ConsultationType = appt.ConsultationType
	}

	s.logEvent(ctx, updated.ID, EventAppointmentStatusChange, map[string]any{
		"from":  from,
		"to":    to,
		"actor": actor,
	})
	s.metrics.ObserveTransition(string(from), string(to))
	log := logging.FromContext(ctx, s.logger)
	log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", string(actor)).
		Msg("appointment status changed")

	s.effects.Apply(ctx, Transition{Appointment: updated, From: from, To: to, Actor: actor})

	return updated, nil
}

// GetPublic loads an appointment for the token holder.
func (s *Service) GetPublic(ctx context.Context, id uuid.UUID, token string) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := s.tokens.Verify(appt, token); err != nil {
		return nil, err
	}
	return appt, nil
}

// CanBeCancelled exposes the cancellation rule with the service clock.
func (s *Service) CanBeCancelled(appt *Appointment) bool {
	return appt.CanBeCancelled(s.now())
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20 // default
	}
	if filter.Limit > 100 {
		filter.Limit = 100 // max
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

// DeleteAppointment soft-deletes and removes the mirrored calendar event.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{"status": appt.Status})
	s.effects.Deleted(ctx, appt)
	return nil
}

func (s *Service) ListConsultationTypes(ctx context.Context) ([]ConsultationType, error) {
	types, err := s.repo.ListConsultationTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list consultation types: %w", err)
	}
	return types, nil
}

func (s *Service) GetConsultationType(ctx context.Context, id uuid.UUID) (*ConsultationType, error) {
	ct, err := s.repo.GetConsultationType(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get consultation type: %w", err)
	}
	return ct, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
