package api

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, true)

	for _, path := range []string{"/admin/appointments", "/admin/working-hours", "/admin/google/status"} {
		rec := ts.do(http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestListAppointmentsFilters(t *testing.T) {
	ts := newTestServer(t, false)
	ts.bookings.add(appointment.Appointment{PatientName: "A", Status: appointment.StatusPending})
	ts.bookings.add(appointment.Appointment{PatientName: "B", Status: appointment.StatusApproved})

	rec := ts.do(http.MethodGet, "/admin/appointments?status=approved&from=2026-11-01&to=2026-11-30&limit=10&offset=5", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]AppointmentResponse](t, rec.Body.Bytes())
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].PatientName)

	f := ts.bookings.lastFilter
	require.NotNil(t, f.Status)
	assert.Equal(t, appointment.StatusApproved, *f.Status)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), *f.From)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), *f.To)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 5, f.Offset)
}

func TestListAppointmentsRejectsBadFilters(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodGet, "/admin/appointments?status=lost&from=yesterday", "", true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	fields := decode[ErrorResponse](t, rec.Body.Bytes()).Fields
	assert.Contains(t, fields, "status")
	assert.Contains(t, fields, "from")
}

func TestGetAndDeleteAppointment(t *testing.T) {
	ts := newTestServer(t, false)
	a := ts.bookings.add(appointment.Appointment{PatientName: "Ana", Status: appointment.StatusPending})

	rec := ts.do(http.MethodGet, "/admin/appointments/"+a.ID.String(), "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana", decode[AppointmentResponse](t, rec.Body.Bytes()).PatientName)

	rec = ts.do(http.MethodDelete, "/admin/appointments/"+a.ID.String(), "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{a.ID}, ts.bookings.deleted)

	rec = ts.do(http.MethodGet, "/admin/appointments/"+a.ID.String(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangeStatus(t *testing.T) {
	ts := newTestServer(t, false)
	a := ts.bookings.add(appointment.Appointment{Status: appointment.StatusPending})

	rec := ts.do(http.MethodPatch, "/admin/appointments/"+a.ID.String()+"/status", `{"status":"approved"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode[AppointmentResponse](t, rec.Body.Bytes()).Status)

	rec = ts.do(http.MethodPost, "/admin/appointments/"+a.ID.String()+"/status", `{"status":"pending"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, rec.Body.Bytes()).Error)

	rec = ts.do(http.MethodPatch, "/admin/appointments/"+a.ID.String()+"/status", `{"status":"archived"}`, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWorkingHoursLifecycle(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodPost, "/admin/working-hours", `{"day_of_week":1,"start_time":"08:00","end_time":"12:30"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	got := decode[[]WorkingHoursResponse](t, rec.Body.Bytes())
	require.Len(t, got, 1)
	require.NotNil(t, got[0].StartTime)
	assert.Equal(t, "08:00", *got[0].StartTime)
	assert.Equal(t, "12:30", *got[0].EndTime)

	created := ts.rules.created[0]
	assert.Equal(t, 1, *created.DayOfWeek)
	assert.Equal(t, schedule.ClockTime(8*3600), *created.StartTime)

	ts.rules.rules = ts.rules.created
	rec = ts.do(http.MethodGet, "/admin/working-hours", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]WorkingHoursResponse](t, rec.Body.Bytes()), 1)

	rec = ts.do(http.MethodDelete, "/admin/working-hours/"+created.ID.String(), "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodDelete, "/admin/working-hours/"+created.ID.String(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateWorkingHoursDayOffDate(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodPost, "/admin/working-hours", `{"date":"2026-12-24","end_date":"2026-12-26","is_day_off":true}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := ts.rules.created[0]
	require.NotNil(t, created.Date)
	require.NotNil(t, created.EndDate)
	assert.Equal(t, "2026-12-24", created.Date.Format(schedule.DateLayout))
	assert.Equal(t, "2026-12-26", created.EndDate.Format(schedule.DateLayout))
}

func TestCreateWorkingHoursRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodPost, "/admin/working-hours", `{"day_of_week":1,"start_time":"8am","end_time":"25:00"}`, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := decode[ErrorResponse](t, rec.Body.Bytes()).Fields
	assert.Contains(t, fields, "start_time")
	assert.Contains(t, fields, "end_time")

	rec = ts.do(http.MethodPost, "/admin/working-hours", `{"start_time":"08:00","end_time":"12:00"}`, true)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec.Body.Bytes()).Fields, "day_of_week")
	assert.Empty(t, ts.rules.created)
}

func TestCalendarStatusDisabled(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(http.MethodGet, "/admin/google/status", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":false,"authenticated":false}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/google/callback?code=x", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarConsentFlow(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(http.MethodGet, "/admin/google/auth-url", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	state := cookies[0]
	assert.Equal(t, oauthStateCookie, state.Name)
	assert.True(t, state.HttpOnly)
	assert.Equal(t, 600, state.MaxAge)

	authURL, err := url.Parse(decode[AuthURLResponse](t, rec.Body.Bytes()).URL)
	require.NoError(t, err)
	assert.Equal(t, state.Value, authURL.Query().Get("state"))

	rec = ts.doWithCookie(http.MethodGet, "/google/callback?code=abc&state=forged", state)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, ts.calendar.authenticated)

	rec = ts.doWithCookie(http.MethodGet, "/google/callback?code=abc&state="+url.QueryEscape(state.Value), state)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", ts.calendar.code)

	rec = ts.do(http.MethodGet, "/admin/google/status", "", true)
	assert.JSONEq(t, `{"enabled":true,"authenticated":true}`, rec.Body.String())
}

func TestCalendarCallbackFailures(t *testing.T) {
	ts := newTestServer(t, true)
	cookie := &http.Cookie{Name: oauthStateCookie, Value: "s1"}

	rec := ts.doWithCookie(http.MethodGet, "/google/callback?error=access_denied&state=s1", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "authorization_denied", decode[ErrorResponse](t, rec.Body.Bytes()).Error)

	rec = ts.do(http.MethodGet, "/google/callback?code=abc&state=s1", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.calendar.callbackErr = errBoom
	rec = ts.doWithCookie(http.MethodGet, "/google/callback?code=abc&state=s1", cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
