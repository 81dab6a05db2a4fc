package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/schedule"
	"github.com/hackgods/clinic-booking/internal/validation"
)

func listConsultationTypesHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := svc.ListConsultationTypes(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		resp := make([]ConsultationTypeResponse, 0, len(types))
		for _, ct := range types {
			resp = append(resp, newConsultationTypeResponse(ct))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func consultationFeaturesHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		ct, err := svc.GetConsultationType(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{
			"features": newConsultationTypeResponse(*ct).Features,
		})
	}
}

func availableSlotsHandler(svc BookingService, slots SlotService, metrics SlotMetrics, loc *time.Location, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		q := r.URL.Query()

		date, err := schedule.ParseDate(q.Get("date"), loc)
		if err != nil {
			writeServiceError(w, logger, validation.Field("date", "date must be YYYY-MM-DD"))
			return
		}

		minutes := appointment.DefaultDurationMinutes
		if raw := strings.TrimSpace(q.Get("consultation_type_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeServiceError(w, logger, validation.Field("consultation_type_id", "must be a valid UUID"))
				return
			}
			ct, err := svc.GetConsultationType(r.Context(), id)
			if err != nil {
				writeServiceError(w, logger, err)
				return
			}
			minutes = ct.DurationMinutes
		}

		day, list, err := slots.AvailableSlots(r.Context(), date, minutes)
		if err != nil {
			metrics.ObserveSlotQuery("error", time.Since(start).Seconds())
			writeServiceError(w, logger, err)
			return
		}
		metrics.ObserveSlotQuery("ok", time.Since(start).Seconds())

		resp := SlotsResponse{
			Date:            date.Format(schedule.DateLayout),
			TimeSlots:       make([]SlotResponse, 0, len(list)),
			IsDateAvailable: !day.DayOff,
		}
		for _, s := range list {
			resp.TimeSlots = append(resp.TimeSlots, SlotResponse{Time: s.Time(), Display: s.Time(), Available: s.Available})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func unavailableDatesHandler(availability AvailabilityService, months int, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dates, err := availability.UnavailableDates(r.Context(), time.Now(), months)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, UnavailableDatesResponse{UnavailableDates: dates})
	}
}

func submitBookingHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointment.BookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.SubmitBooking(r.Context(), req)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			ID:              appt.ID,
			Status:          string(appt.Status),
			AppointmentTime: appt.ScheduledAt,
			Message:         "Your appointment request was received and is awaiting confirmation.",
		})
	}
}

func publicAppointmentHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetPublic(r.Context(), id, chi.URLParam(r, "token"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newPublicResponse(svc, appt))
	}
}

func publicCancelHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.CancelByPatient(r.Context(), id, chi.URLParam(r, "token"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newPublicResponse(svc, appt))
	}
}

func newPublicResponse(svc BookingService, a *appointment.Appointment) PublicAppointmentResponse {
	return PublicAppointmentResponse{
		ID:               a.ID,
		PatientName:      a.PatientName,
		ConsultationType: a.ConsultationName(),
		AppointmentTime:  a.ScheduledAt,
		DurationMinutes:  int(a.Duration() / time.Minute),
		Description:      a.Description,
		Status:           string(a.Status),
		CanBeCancelled:   svc.CanBeCancelled(a),
	}
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
