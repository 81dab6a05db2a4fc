package appointment

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/validation"
)

// BookingRequest is the raw public booking form.
type BookingRequest struct {
	PatientName        string `json:"patient_name"`
	ConsultationTypeID string `json:"consultation_type_id"`
	AppointmentTime    string `json:"appointment_time"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Description        string `json:"description"`
}

type booking struct {
	name        string
	email       string
	phone       string
	description string
	at          time.Time
	ct          *ConsultationType
}

var (
	phonePattern  = regexp.MustCompile(`^\+?[0-9\s\-().]{7,25}$`)
	nonDigit      = regexp.MustCompile(`[^0-9]`)
	timeLayouts   = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02 15:04:05"}
	maxNameLength = 255
	maxDescLength = 2000
)

// ParseAppointmentTime accepts RFC 3339 and zone-less ISO date-times; the
// latter are read in loc.
func ParseAppointmentTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognised date-time")
}

// ValidEmail accepts a bare address with a dotted domain.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

func validPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := len(nonDigit.ReplaceAllString(s, ""))
	return digits >= 7 && digits <= 15
}

// validateBooking checks every field and reports all problems at once.
func (s *Service) validateBooking(ctx context.Context, req BookingRequest) (*booking, error) {
	v := validation.New()
	b := &booking{
		name:        strings.TrimSpace(req.PatientName),
		email:       strings.ToLower(strings.TrimSpace(req.Email)),
		phone:       strings.TrimSpace(req.Phone),
		description: strings.TrimSpace(req.Description),
	}

	switch {
	case b.name == "":
		v.Add("patient_name", "patient name is required")
	case len(b.name) > maxNameLength:
		v.Add("patient_name", "patient name is too long")
	}

	switch {
	case b.email == "":
		v.Add("email", "email is required")
	case len(b.email) > maxNameLength || !ValidEmail(b.email):
		v.Add("email", "email must be a valid address")
	}

	switch {
	case b.phone == "":
		v.Add("phone", "phone is required")
	case !validPhone(b.phone):
		v.Add("phone", "phone must be a valid phone number")
	}

	if len(b.description) > maxDescLength {
		v.Add("description", "description is too long")
	}

	if strings.TrimSpace(req.AppointmentTime) == "" {
		v.Add("appointment_time", "appointment time is required")
	} else if at, err := ParseAppointmentTime(req.AppointmentTime, s.loc); err != nil {
		v.Add("appointment_time", "appointment time must be an ISO date-time")
	} else if !at.After(s.now()) {
		v.Add("appointment_time", "appointment time must be in the future")
	} else {
		b.at = at
	}

	if strings.TrimSpace(req.ConsultationTypeID) == "" {
		v.Add("consultation_type_id", "consultation type is required")
	} else if id, err := uuid.Parse(strings.TrimSpace(req.ConsultationTypeID)); err != nil {
		v.Add("consultation_type_id", "selected consultation type does not exist")
	} else {
		ct, err := s.repo.GetConsultationType(ctx, id)
		switch {
		case errors.Is(err, ErrConsultationTypeNotFound):
			v.Add("consultation_type_id", "selected consultation type does not exist")
		case err != nil:
			return nil, err
		default:
			b.ct = ct
		}
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return b, nil
}
