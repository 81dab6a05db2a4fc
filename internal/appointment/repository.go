package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/schedule"
)

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrConsultationTypeNotFound = errors.New("consultation type not found")
	ErrAppointmentNotFound      = errors.New("appointment not found")
	ErrDuplicateContact         = errors.New("a different patient is already registered with this email or phone")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetConsultationType(ctx context.Context, id uuid.UUID) (*ConsultationType, error)
	ListConsultationTypes(ctx context.Context) ([]ConsultationType, error)
	CreateConsultationType(ctx context.Context, ct ConsultationType) (*ConsultationType, error)

	// Patient dedup
	FindUserByContact(ctx context.Context, email, phone string) (*User, error)
	CreateUser(ctx context.Context, name, email, phone string) (*User, error)
	UpdateUserName(ctx context.Context, id uuid.UUID, name string) error

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error)

	// UpdateStatus only applies when the stored status still equals from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// Slot generation
	BusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]schedule.Interval, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
