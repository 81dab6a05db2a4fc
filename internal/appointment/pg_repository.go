package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/schedule"
)

type PgRepository struct {
	pool db.Pool
	loc  *time.Location
}

func NewPgRepository(pool db.Pool, loc *time.Location) *PgRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PgRepository{pool: pool, loc: loc}
}

// Helpers

const appointmentColumns = `a.id, a.user_id, a.patient_name, a.email, a.phone, a.consultation_type_id,
	a.appointment_time, a.description, a.status, a.google_calendar_event_id, a.deleted_at,
	a.created_at, a.updated_at, ct.name, ct.duration, ct.features`

func scanConsultationType(row pgx.Row) (*ConsultationType, error) {
	var c ConsultationType
	var features []byte

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.DurationMinutes,
		&features,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsultationTypeNotFound
		}
		return nil, err
	}

	if c.Features, err = decodeFeatures(features); err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeFeatures(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var features []string
	if err := json.Unmarshal(raw, &features); err != nil {
		return nil, fmt.Errorf("decode consultation features: %w", err)
	}
	if features == nil {
		features = []string{}
	}
	return features, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgRepository) scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a           Appointment
		description *string
		ctName      *string
		ctDuration  *int32
		ctFeatures  []byte
	)

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.PatientName,
		&a.Email,
		&a.Phone,
		&a.ConsultationTypeID,
		&a.ScheduledAt,
		&description,
		&a.Status,
		&a.CalendarEventID,
		&a.DeletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&ctName,
		&ctDuration,
		&ctFeatures,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ScheduledAt = a.ScheduledAt.In(r.loc)
	if description != nil {
		a.Description = *description
	}
	if ctName != nil {
		ct := &ConsultationType{ID: a.ConsultationTypeID, Name: *ctName}
		if ctDuration != nil {
			ct.DurationMinutes = int(*ctDuration)
		}
		if ct.Features, err = decodeFeatures(ctFeatures); err != nil {
			return nil, err
		}
		a.ConsultationType = ct
	}

	return &a, nil
}

// Interface methods

func (r *PgRepository) GetConsultationType(ctx context.Context, id uuid.UUID) (*ConsultationType, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, duration, features, created_at, updated_at
		FROM consultation_types
		WHERE id = $1
	`, id)
	return scanConsultationType(row)
}

func (r *PgRepository) ListConsultationTypes(ctx context.Context) ([]ConsultationType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, duration, features, created_at, updated_at
		FROM consultation_types
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ConsultationType
	for rows.Next() {
		c, err := scanConsultationType(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateConsultationType(ctx context.Context, ct ConsultationType) (*ConsultationType, error) {
	features := ct.Features
	if features == nil {
		features = []string{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encode consultation features: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO consultation_types (id, name, duration, features, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, name, duration, features, created_at, updated_at
	`, uuid.New(), ct.Name, ct.DurationMinutes, raw)
	return scanConsultationType(row)
}

func (r *PgRepository) FindUserByContact(ctx context.Context, email, phone string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM users
		WHERE email = $1
		  AND phone = $2
		LIMIT 1
	`, email, phone)
	return scanUser(row)
}

func (r *PgRepository) CreateUser(ctx context.Context, name, email, phone string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, name, email, phone, created_at, updated_at
	`, uuid.New(), name, email, phone)

	u, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateContact
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *PgRepository) UpdateUserName(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, name)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		WITH a AS (
			INSERT INTO appointments (id, user_id, patient_name, email, phone, consultation_type_id,
				appointment_time, description, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			RETURNING *
		)
		SELECT `+appointmentColumns+`
		FROM a
		LEFT JOIN consultation_types ct ON ct.id = a.consultation_type_id
	`, id, appt.UserID, appt.PatientName, appt.Email, appt.Phone, appt.ConsultationTypeID,
		appt.ScheduledAt, appt.Description, appt.Status)

	created, err := r.scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN consultation_types ct ON ct.id = a.consultation_type_id
		WHERE a.id = $1
		  AND a.deleted_at IS NULL
	`, id)
	return r.scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "a.deleted_at IS NULL")
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("a.appointment_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("a.appointment_time < $%d", len(args)))
	}
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT `+appointmentColumns+`
		FROM appointments a
		LEFT JOIN consultation_types ct ON ct.id = a.consultation_type_id
		WHERE %s
		ORDER BY a.appointment_time
		LIMIT $%d OFFSET $%d
	`, strings.Join(where, " AND "), len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		WITH a AS (
			UPDATE appointments
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			  AND deleted_at IS NULL
			RETURNING *
		)
		SELECT `+appointmentColumns+`
		FROM a
		LEFT JOIN consultation_types ct ON ct.id = a.consultation_type_id
	`, id, to, from)

	return r.scanAppointment(row)
}

func (r *PgRepository) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET google_calendar_event_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, eventID)
	if err != nil {
		return fmt.Errorf("set calendar event id: %w", err)
	}
	return nil
}

func (r *PgRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET deleted_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// BusyIntervals returns the occupied ranges that intersect [dayStart, dayEnd).
// Appointments starting the previous evening are included so one that runs
// past midnight still blocks the early slots.
func (r *PgRepository) BusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]schedule.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.appointment_time, ct.duration
		FROM appointments a
		LEFT JOIN consultation_types ct ON ct.id = a.consultation_type_id
		WHERE a.status IN ('pending', 'approved')
		  AND a.deleted_at IS NULL
		  AND a.appointment_time >= $1
		  AND a.appointment_time < $2
		ORDER BY a.appointment_time
	`, dayStart.Add(-24*time.Hour), dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.Interval
	for rows.Next() {
		var (
			start    time.Time
			duration *int32
		)
		if err := rows.Scan(&start, &duration); err != nil {
			return nil, err
		}
		minutes := 0
		if duration != nil {
			minutes = int(*duration)
		}
		iv := schedule.Interval{Start: start.In(r.loc), End: start.In(r.loc).Add(durationOrDefault(minutes))}
		if iv.End.After(dayStart) {
			result = append(result, iv)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
