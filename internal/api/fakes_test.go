package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

const testAdminSecret = "admin-secret"

type fakeBookings struct {
	types        []appointment.ConsultationType
	appointments map[uuid.UUID]*appointment.Appointment
	submitErr    error
	tokenErr     error
	lastFilter   appointment.ListFilter
	lastRequest  appointment.BookingRequest
	deleted      []uuid.UUID
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{appointments: map[uuid.UUID]*appointment.Appointment{}}
}

func (f *fakeBookings) add(a appointment.Appointment) *appointment.Appointment {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.appointments[a.ID] = &a
	return &a
}

func (f *fakeBookings) SubmitBooking(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error) {
	f.lastRequest = req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	at, _ := time.Parse(time.RFC3339, req.AppointmentTime)
	return f.add(appointment.Appointment{PatientName: req.PatientName, ScheduledAt: at, Status: appointment.StatusPending}), nil
}

func (f *fakeBookings) ChangeStatus(ctx context.Context, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if !appointment.CanTransition(a.Status, to, appointment.ActorStaff) {
		return nil, appointment.ErrInvalidStatusTransition
	}
	a.Status = to
	return a, nil
}

func (f *fakeBookings) CancelByPatient(ctx context.Context, id uuid.UUID, token string) (*appointment.Appointment, error) {
	a, err := f.GetPublic(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if !f.CanBeCancelled(a) {
		return nil, appointment.ErrNotCancellable
	}
	a.Status = appointment.StatusCancelledByPatient
	return a, nil
}

func (f *fakeBookings) GetPublic(ctx context.Context, id uuid.UUID, token string) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if token != "good-token" {
		return nil, appointment.ErrInvalidToken
	}
	return a, nil
}

func (f *fakeBookings) CanBeCancelled(a *appointment.Appointment) bool {
	return a.CanBeCancelled(time.Now())
}

func (f *fakeBookings) GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return a, nil
}

func (f *fakeBookings) ListAppointments(ctx context.Context, filter appointment.ListFilter) ([]appointment.Appointment, error) {
	f.lastFilter = filter
	var out []appointment.Appointment
	for _, a := range f.appointments {
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeBookings) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.appointments[id]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	delete(f.appointments, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBookings) ListConsultationTypes(ctx context.Context) ([]appointment.ConsultationType, error) {
	return f.types, nil
}

func (f *fakeBookings) GetConsultationType(ctx context.Context, id uuid.UUID) (*appointment.ConsultationType, error) {
	for _, ct := range f.types {
		if ct.ID == id {
			cp := ct
			return &cp, nil
		}
	}
	return nil, appointment.ErrConsultationTypeNotFound
}

type fakeSlots struct {
	day      schedule.Day
	slots    []schedule.Slot
	err      error
	minutes  int
	lastDate time.Time
}

func (f *fakeSlots) AvailableSlots(ctx context.Context, date time.Time, minutes int) (schedule.Day, []schedule.Slot, error) {
	f.minutes = minutes
	f.lastDate = date
	return f.day, f.slots, f.err
}

type fakeAvailability struct {
	dates []string
}

func (f fakeAvailability) UnavailableDates(ctx context.Context, from time.Time, months int) ([]string, error) {
	return f.dates, nil
}

type fakeRules struct {
	rules   []schedule.Rule
	created []schedule.Rule
}

func (f *fakeRules) CreateRule(ctx context.Context, rule schedule.Rule) ([]schedule.Rule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	rule.ID = uuid.New()
	f.created = append(f.created, rule)
	return []schedule.Rule{rule}, nil
}

func (f *fakeRules) ListRules(ctx context.Context) ([]schedule.Rule, error) {
	return f.rules, nil
}

func (f *fakeRules) DeleteRule(ctx context.Context, id uuid.UUID) error {
	for i, r := range f.rules {
		if r.ID == id {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return schedule.ErrRuleNotFound
}

type fakeCalendar struct {
	authenticated bool
	code          string
	callbackErr   error
}

func (f *fakeCalendar) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeCalendar) HandleAuthCallback(ctx context.Context, code string) error {
	if f.callbackErr != nil {
		return f.callbackErr
	}
	f.code = code
	f.authenticated = true
	return nil
}

func (f *fakeCalendar) IsAuthenticated(ctx context.Context) bool {
	return f.authenticated
}

type recordingSlotMetrics struct {
	results []string
}

func (m *recordingSlotMetrics) ObserveSlotQuery(result string, seconds float64) {
	m.results = append(m.results, result)
}

type testServer struct {
	bookings *fakeBookings
	slots    *fakeSlots
	rules    *fakeRules
	calendar *fakeCalendar
	metrics  *recordingSlotMetrics
	handler  http.Handler
}

func newTestServer(t *testing.T, withCalendar bool) *testServer {
	t.Helper()
	ts := &testServer{
		bookings: newFakeBookings(),
		slots:    &fakeSlots{},
		rules:    &fakeRules{},
		metrics:  &recordingSlotMetrics{},
	}
	cfg := RouterConfig{
		Bookings:       ts.bookings,
		Slots:          ts.slots,
		Availability:   fakeAvailability{dates: []string{"2026-12-25"}},
		Rules:          ts.rules,
		Postgres:       PingFunc(func(context.Context) error { return nil }),
		SlotMetrics:    ts.metrics,
		Logger:         zerolog.Nop(),
		Location:       time.UTC,
		AdminJWTSecret: testAdminSecret,
	}
	if withCalendar {
		ts.calendar = &fakeCalendar{}
		cfg.Calendar = ts.calendar
	}
	ts.handler = NewRouter(cfg)
	return ts
}

func (ts *testServer) do(method, path, body string, admin bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+signedAdminToken(testAdminSecret))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func signedAdminToken(secret string) string {
	claims := jwt.RegisteredClaims{
		Subject:   "staff-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}

var errBoom = errors.New("boom")

func (ts *testServer) doWithCookie(method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}
