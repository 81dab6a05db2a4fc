package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/schedule"
	"github.com/hackgods/clinic-booking/internal/validation"
)

const oauthStateCookie = "calendar_oauth_state"

func listAppointmentsHandler(svc BookingService, loc *time.Location, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		v := validation.New()
		var filter appointment.ListFilter

		if raw := q.Get("status"); raw != "" {
			if st, ok := appointment.ParseStatus(raw); ok {
				filter.Status = &st
			} else {
				v.Add("status", "unknown status")
			}
		}
		if raw := q.Get("from"); raw != "" {
			if d, err := schedule.ParseDate(raw, loc); err == nil {
				filter.From = &d
			} else {
				v.Add("from", "from must be YYYY-MM-DD")
			}
		}
		if raw := q.Get("to"); raw != "" {
			if d, err := schedule.ParseDate(raw, loc); err == nil {
				end := d.AddDate(0, 0, 1)
				filter.To = &end
			} else {
				v.Add("to", "to must be YYYY-MM-DD")
			}
		}
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		filter.Offset, _ = strconv.Atoi(q.Get("offset"))

		if err := v.Err(); err != nil {
			writeServiceError(w, logger, err)
			return
		}

		list, err := svc.ListAppointments(r.Context(), filter)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(list))
		for i := range list {
			resp = append(resp, newAppointmentResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func changeStatusHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}
		var req StatusChangeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		to, ok := appointment.ParseStatus(req.Status)
		if !ok {
			writeServiceError(w, logger, validation.Field("status", "unknown status"))
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), id, to)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc BookingService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.DeleteAppointment(r.Context(), id); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listWorkingHoursHandler(rules RuleService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rules.ListRules(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, workingHoursResponses(list))
	}
}

func createWorkingHoursHandler(rules RuleService, loc *time.Location, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WorkingHoursRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		rule, err := req.toRule(loc)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		created, err := rules.CreateRule(r.Context(), rule)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, workingHoursResponses(created))
	}
}

func deleteWorkingHoursHandler(rules RuleService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}
		if err := rules.DeleteRule(r.Context(), id); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func workingHoursResponses(rules []schedule.Rule) []WorkingHoursResponse {
	resp := make([]WorkingHoursResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, newWorkingHoursResponse(rule))
	}
	return resp
}

// toRule parses the wire format; semantic checks happen in Rule.Validate.
func (req WorkingHoursRequest) toRule(loc *time.Location) (schedule.Rule, error) {
	v := validation.New()
	rule := schedule.Rule{DayOfWeek: req.DayOfWeek, IsDayOff: req.IsDayOff}

	parseDate := func(field string, raw *string) *time.Time {
		if raw == nil || *raw == "" {
			return nil
		}
		d, err := schedule.ParseDate(*raw, loc)
		if err != nil {
			v.Add(field, field+" must be YYYY-MM-DD")
			return nil
		}
		return &d
	}
	parseClock := func(field string, raw *string) *schedule.ClockTime {
		if raw == nil || *raw == "" {
			return nil
		}
		c, err := schedule.ParseClock(*raw)
		if err != nil {
			v.Add(field, field+" must be HH:MM")
			return nil
		}
		return &c
	}

	rule.Date = parseDate("date", req.Date)
	rule.EndDate = parseDate("end_date", req.EndDate)
	rule.StartTime = parseClock("start_time", req.StartTime)
	rule.EndTime = parseClock("end_time", req.EndTime)

	return rule, v.Err()
}

func calendarAuthURLHandler(cal CalendarAuth, secureCookie bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := randomState()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not create state")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/google/callback",
			MaxAge:   600,
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, AuthURLResponse{URL: cal.AuthURL(state)})
	}
}

func calendarStatusHandler(cal CalendarAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CalendarStatusResponse{
			Enabled:       true,
			Authenticated: cal.IsAuthenticated(r.Context()),
		})
	}
}

func calendarDisabledHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CalendarStatusResponse{})
}

func calendarCallbackHandler(cal CalendarAuth, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			writeError(w, http.StatusBadRequest, "authorization_denied", e)
			return
		}

		cookie, err := r.Cookie(oauthStateCookie)
		if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
			writeError(w, http.StatusBadRequest, "invalid_state", "authorization state does not match")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/google/callback", MaxAge: -1})

		if err := cal.HandleAuthCallback(r.Context(), q.Get("code")); err != nil {
			logger.Error().Err(err).Msg("calendar authorization failed")
			writeError(w, http.StatusBadGateway, "authorization_failed", "could not complete calendar authorization")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
	}
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
