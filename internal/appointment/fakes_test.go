package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/hackgods/clinic-booking/internal/schedule"
)

type memRepo struct {
	mu           sync.Mutex
	types        map[uuid.UUID]*ConsultationType
	users        []*User
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	eventIDs     map[uuid.UUID]string

	createUserErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		types:        map[uuid.UUID]*ConsultationType{},
		appointments: map[uuid.UUID]*Appointment{},
		eventIDs:     map[uuid.UUID]string{},
	}
}

func (r *memRepo) addType(name string, minutes int) *ConsultationType {
	ct := &ConsultationType{ID: uuid.New(), Name: name, DurationMinutes: minutes, Features: []string{"Exam"}}
	r.types[ct.ID] = ct
	return ct
}

func (r *memRepo) addAppointment(a Appointment) *Appointment {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := a
	r.appointments[a.ID] = &cp
	return &cp
}

func (r *memRepo) GetConsultationType(ctx context.Context, id uuid.UUID) (*ConsultationType, error) {
	ct, ok := r.types[id]
	if !ok {
		return nil, ErrConsultationTypeNotFound
	}
	cp := *ct
	return &cp, nil
}

func (r *memRepo) ListConsultationTypes(ctx context.Context) ([]ConsultationType, error) {
	var out []ConsultationType
	for _, ct := range r.types {
		out = append(out, *ct)
	}
	return out, nil
}

func (r *memRepo) CreateConsultationType(ctx context.Context, ct ConsultationType) (*ConsultationType, error) {
	ct.ID = uuid.New()
	r.types[ct.ID] = &ct
	return &ct, nil
}

func (r *memRepo) FindUserByContact(ctx context.Context, email, phone string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email && u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memRepo) CreateUser(ctx context.Context, name, email, phone string) (*User, error) {
	if r.createUserErr != nil {
		return nil, r.createUserErr
	}
	u := &User{ID: uuid.New(), Name: name, Email: email, Phone: phone}
	r.users = append(r.users, u)
	cp := *u
	return &cp, nil
}

func (r *memRepo) UpdateUserName(ctx context.Context, id uuid.UUID, name string) error {
	for _, u := range r.users {
		if u.ID == id {
			u.Name = name
			return nil
		}
	}
	return ErrUserNotFound
}

func (r *memRepo) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	cp := *appt
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	if ct, ok := r.types[cp.ConsultationTypeID]; ok {
		c := *ct
		cp.ConsultationType = &c
	}
	r.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.appointments[id]
	if !ok || a.DeletedAt != nil {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	var out []Appointment
	for _, a := range r.appointments {
		if a.DeletedAt == nil && (filter.Status == nil || a.Status == *filter.Status) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.DeletedAt != nil || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (r *memRepo) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.CalendarEventID = eventID
	if eventID != nil {
		r.eventIDs[id] = *eventID
	}
	return nil
}

func (r *memRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	a, ok := r.appointments[id]
	if !ok || a.DeletedAt != nil {
		return ErrAppointmentNotFound
	}
	now := time.Now()
	a.DeletedAt = &now
	return nil
}

func (r *memRepo) BusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]schedule.Interval, error) {
	return nil, nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) AppointmentPending(ctx context.Context, a *Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockNotifier) AdminNewAppointment(ctx context.Context, a *Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockNotifier) AppointmentApproved(ctx context.Context, a *Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockNotifier) AppointmentCancelled(ctx context.Context, a *Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockNotifier) AdminPatientCancelled(ctx context.Context, a *Appointment) error {
	return m.Called(ctx, a).Error(0)
}

type mockCalendar struct{ mock.Mock }

func (m *mockCalendar) CreateOrUpdateEvent(ctx context.Context, a *Appointment) (string, error) {
	args := m.Called(ctx, a)
	return args.String(0), args.Error(1)
}
func (m *mockCalendar) CancelEvent(ctx context.Context, a *Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

type mockReminders struct{ mock.Mock }

func (m *mockReminders) Schedule(ctx context.Context, a *Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockReminders) Cancel(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type countingMetrics struct {
	mu      sync.Mutex
	effects map[string]int
	booking map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{effects: map[string]int{}, booking: map[string]int{}}
}

func (m *countingMetrics) ObserveBooking(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.booking[result]++
}
func (m *countingMetrics) ObserveTransition(from, to string) {}
func (m *countingMetrics) ObserveSideEffect(effect, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effects[effect+":"+result]++
}
