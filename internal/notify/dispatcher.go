package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

const dateTimeLayout = "02/01/2006 15:04"

// LinkBuilder produces the public links embedded in patient emails.
type LinkBuilder interface {
	ViewURL(a *appointment.Appointment) (string, error)
	CancelURL(a *appointment.Appointment) (string, error)
}

type DispatcherConfig struct {
	Sender     EmailSender
	Links      LinkBuilder
	AdminEmail string
	Location   *time.Location
	Logger     zerolog.Logger
}

// Dispatcher renders and sends the appointment lifecycle emails. A missing
// or malformed recipient is logged and skipped rather than reported.
type Dispatcher struct {
	sender     EmailSender
	links      LinkBuilder
	adminEmail string
	loc        *time.Location
	logger     zerolog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Dispatcher{
		sender:     cfg.Sender,
		links:      cfg.Links,
		adminEmail: cfg.AdminEmail,
		loc:        cfg.Location,
		logger:     cfg.Logger,
	}
}

var _ appointment.Notifier = (*Dispatcher)(nil)

func (d *Dispatcher) AppointmentPending(ctx context.Context, a *appointment.Appointment) error {
	return d.toPatient(ctx, KindPending, a)
}

func (d *Dispatcher) AppointmentApproved(ctx context.Context, a *appointment.Appointment) error {
	return d.toPatient(ctx, KindApproved, a)
}

func (d *Dispatcher) AppointmentCancelled(ctx context.Context, a *appointment.Appointment) error {
	return d.toPatient(ctx, KindCancelled, a)
}

func (d *Dispatcher) AppointmentReminder(ctx context.Context, a *appointment.Appointment) error {
	return d.toPatient(ctx, KindReminder, a)
}

func (d *Dispatcher) AdminNewAppointment(ctx context.Context, a *appointment.Appointment) error {
	return d.toAdmin(ctx, KindAdminNew, a)
}

func (d *Dispatcher) AdminPatientCancelled(ctx context.Context, a *appointment.Appointment) error {
	return d.toAdmin(ctx, KindAdminPatientCancelled, a)
}

func (d *Dispatcher) toPatient(ctx context.Context, kind Kind, a *appointment.Appointment) error {
	if !appointment.ValidEmail(a.Email) {
		d.logger.Warn().
			Str("kind", string(kind)).
			Str("appointment_id", a.ID.String()).
			Msg("invalid patient email, skipping notification")
		return nil
	}

	data := d.data(a)
	if d.links != nil {
		var err error
		if data.ViewURL, err = d.links.ViewURL(a); err != nil {
			return err
		}
		if data.CancelURL, err = d.links.CancelURL(a); err != nil {
			return err
		}
	}
	return d.send(ctx, kind, a, EmailMessage{To: a.Email, ToName: a.PatientName}, data)
}

func (d *Dispatcher) toAdmin(ctx context.Context, kind Kind, a *appointment.Appointment) error {
	if !appointment.ValidEmail(d.adminEmail) {
		d.logger.Warn().
			Str("kind", string(kind)).
			Str("appointment_id", a.ID.String()).
			Msg("admin email not configured or invalid, skipping notification")
		return nil
	}
	return d.send(ctx, kind, a, EmailMessage{To: d.adminEmail}, d.data(a))
}

func (d *Dispatcher) send(ctx context.Context, kind Kind, a *appointment.Appointment, msg EmailMessage, data emailData) error {
	subject, body, err := render(kind, data)
	if err != nil {
		return err
	}
	msg.Subject = subject
	msg.Body = body

	if err := d.sender.Send(ctx, msg); err != nil {
		return err
	}

	d.logger.Info().
		Str("kind", string(kind)).
		Str("appointment_id", a.ID.String()).
		Msg("notification sent")
	return nil
}

func (d *Dispatcher) data(a *appointment.Appointment) emailData {
	consultation := a.ConsultationName()
	if consultation == "" {
		consultation = "Not specified"
	}
	return emailData{
		AppointmentID:    a.ID.String(),
		PatientName:      a.PatientName,
		PatientEmail:     a.Email,
		PatientPhone:     a.Phone,
		ConsultationType: consultation,
		When:             a.ScheduledAt.In(d.loc).Format(dateTimeLayout),
		Description:      a.Description,
	}
}
