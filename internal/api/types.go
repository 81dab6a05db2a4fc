package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type ConsultationTypeResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Features        []string  `json:"features"`
}

func newConsultationTypeResponse(ct appointment.ConsultationType) ConsultationTypeResponse {
	features := ct.Features
	if features == nil {
		features = []string{}
	}
	return ConsultationTypeResponse{
		ID:              ct.ID,
		Name:            ct.Name,
		DurationMinutes: int(ct.Duration() / time.Minute),
		Features:        features,
	}
}

type SlotResponse struct {
	Time      string `json:"time"`
	Display   string `json:"display"`
	Available bool   `json:"available"`
}

type SlotsResponse struct {
	Date            string         `json:"date"`
	TimeSlots       []SlotResponse `json:"timeSlots"`
	IsDateAvailable bool           `json:"isDateAvailable"`
}

type UnavailableDatesResponse struct {
	UnavailableDates []string `json:"unavailableDates"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             *uuid.UUID `json:"user_id,omitempty"`
	PatientName        string     `json:"patient_name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"`
	ConsultationTypeID uuid.UUID  `json:"consultation_type_id"`
	ConsultationType   string     `json:"consultation_type,omitempty"`
	AppointmentTime    time.Time  `json:"appointment_time"`
	DurationMinutes    int        `json:"duration_minutes"`
	Description        string     `json:"description,omitempty"`
	Status             string     `json:"status"`
	CalendarEventID    *string    `json:"google_calendar_event_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func newAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		UserID:             a.UserID,
		PatientName:        a.PatientName,
		Email:              a.Email,
		Phone:              a.Phone,
		ConsultationTypeID: a.ConsultationTypeID,
		ConsultationType:   a.ConsultationName(),
		AppointmentTime:    a.ScheduledAt,
		DurationMinutes:    int(a.Duration() / time.Minute),
		Description:        a.Description,
		Status:             string(a.Status),
		CalendarEventID:    a.CalendarEventID,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// BookingResponse is returned to the patient right after submission.
type BookingResponse struct {
	ID              uuid.UUID `json:"id"`
	Status          string    `json:"status"`
	AppointmentTime time.Time `json:"appointment_time"`
	Message         string    `json:"message"`
}

// PublicAppointmentResponse is what the token holder sees; no contact details.
type PublicAppointmentResponse struct {
	ID               uuid.UUID `json:"id"`
	PatientName      string    `json:"patient_name"`
	ConsultationType string    `json:"consultation_type,omitempty"`
	AppointmentTime  time.Time `json:"appointment_time"`
	DurationMinutes  int       `json:"duration_minutes"`
	Description      string    `json:"description,omitempty"`
	Status           string    `json:"status"`
	CanBeCancelled   bool      `json:"can_be_cancelled"`
}

type StatusChangeRequest struct {
	Status string `json:"status"`
}

type WorkingHoursRequest struct {
	DayOfWeek *int    `json:"day_of_week"`
	Date      *string `json:"date"`
	EndDate   *string `json:"end_date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	IsDayOff  bool    `json:"is_day_off"`
}

type WorkingHoursResponse struct {
	ID        uuid.UUID `json:"id"`
	DayOfWeek *int      `json:"day_of_week"`
	Date      *string   `json:"date"`
	StartTime *string   `json:"start_time"`
	EndTime   *string   `json:"end_time"`
	IsDayOff  bool      `json:"is_day_off"`
}

func newWorkingHoursResponse(r schedule.Rule) WorkingHoursResponse {
	resp := WorkingHoursResponse{ID: r.ID, DayOfWeek: r.DayOfWeek, IsDayOff: r.IsDayOff}
	if r.Date != nil {
		d := r.Date.Format(schedule.DateLayout)
		resp.Date = &d
	}
	if r.StartTime != nil {
		s := r.StartTime.HHMM()
		resp.StartTime = &s
	}
	if r.EndTime != nil {
		e := r.EndTime.HHMM()
		resp.EndTime = &e
	}
	return resp
}

type CalendarStatusResponse struct {
	Enabled       bool `json:"enabled"`
	Authenticated bool `json:"authenticated"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}
