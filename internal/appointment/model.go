package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending            Status = "pending"
	StatusApproved           Status = "approved"
	StatusCancelled          Status = "cancelled"
	StatusCancelledByPatient Status = "cancelled_by_patient"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusCancelled, StatusCancelledByPatient:
		return st, true
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCancelledByPatient
}

// HoldsTime reports whether an appointment in this status blocks its slot.
func (s Status) HoldsTime() bool {
	return s == StatusPending || s == StatusApproved
}

const DefaultDurationMinutes = 30

type ConsultationType struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
	Features        []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (c ConsultationType) Duration() time.Duration {
	return durationOrDefault(c.DurationMinutes)
}

func durationOrDefault(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID                 uuid.UUID
	UserID             *uuid.UUID
	PatientName        string
	Email              string
	Phone              string
	ConsultationTypeID uuid.UUID
	ConsultationType   *ConsultationType
	ScheduledAt        time.Time
	Description        string
	Status             Status
	CalendarEventID    *string
	DeletedAt          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Appointment) Duration() time.Duration {
	if a.ConsultationType == nil {
		return durationOrDefault(0)
	}
	return a.ConsultationType.Duration()
}

func (a *Appointment) End() time.Time {
	return a.ScheduledAt.Add(a.Duration())
}

func (a *Appointment) ConsultationName() string {
	if a.ConsultationType == nil {
		return ""
	}
	return a.ConsultationType.Name
}

func (a *Appointment) HasCalendarEvent() bool {
	return a.CalendarEventID != nil && *a.CalendarEventID != ""
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ListFilter narrows the staff appointment listing.
type ListFilter struct {
	Status *Status
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
