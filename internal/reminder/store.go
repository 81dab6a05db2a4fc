package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/db"
)

type JobStatus string

const (
	JobScheduled JobStatus = "scheduled"
	JobSent      JobStatus = "sent"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// Job is one pending reminder. There is at most one per appointment.
type Job struct {
	AppointmentID uuid.UUID
	RemindAt      time.Time
	Status        JobStatus
	Attempts      int
}

type Store interface {
	Upsert(ctx context.Context, appointmentID uuid.UUID, remindAt time.Time) error
	Cancel(ctx context.Context, appointmentID uuid.UUID) error
	// ClaimDue leases up to limit due jobs until leaseUntil and bumps their
	// attempt counter. Leased jobs are invisible to other workers.
	ClaimDue(ctx context.Context, now time.Time, limit int, leaseUntil time.Time) ([]Job, error)
	MarkSent(ctx context.Context, appointmentID uuid.UUID) error
	Retry(ctx context.Context, appointmentID uuid.UUID, at time.Time, reason string) error
	Fail(ctx context.Context, appointmentID uuid.UUID, reason string) error
}

type PgStore struct {
	pool db.Pool
}

func NewPgStore(pool db.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Upsert(ctx context.Context, appointmentID uuid.UUID, remindAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reminder_jobs (appointment_id, remind_at, status, attempts, created_at, updated_at)
		VALUES ($1, $2, 'scheduled', 0, now(), now())
		ON CONFLICT (appointment_id) DO UPDATE
		SET remind_at = EXCLUDED.remind_at,
		    status = 'scheduled',
		    attempts = 0,
		    last_error = NULL,
		    updated_at = now()
	`, appointmentID, remindAt)
	if err != nil {
		return fmt.Errorf("upsert reminder: %w", err)
	}
	return nil
}

func (s *PgStore) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'cancelled',
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status = 'scheduled'
	`, appointmentID)
	if err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	return nil
}

func (s *PgStore) ClaimDue(ctx context.Context, now time.Time, limit int, leaseUntil time.Time) ([]Job, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE reminder_jobs j
		SET remind_at = $3,
		    attempts = j.attempts + 1,
		    updated_at = now()
		WHERE j.appointment_id IN (
			SELECT appointment_id
			FROM reminder_jobs
			WHERE status = 'scheduled'
			  AND remind_at <= $1
			ORDER BY remind_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING j.appointment_id, j.remind_at, j.status, j.attempts
	`, now, limit, leaseUntil)
	if err != nil {
		return nil, fmt.Errorf("claim reminders: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j        Job
			attempts int32
		)
		if err := rows.Scan(&j.AppointmentID, &j.RemindAt, &j.Status, &attempts); err != nil {
			return nil, err
		}
		j.Attempts = int(attempts)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *PgStore) MarkSent(ctx context.Context, appointmentID uuid.UUID) error {
	return s.setStatus(ctx, appointmentID, JobSent, nil)
}

func (s *PgStore) Fail(ctx context.Context, appointmentID uuid.UUID, reason string) error {
	return s.setStatus(ctx, appointmentID, JobFailed, &reason)
}

func (s *PgStore) setStatus(ctx context.Context, appointmentID uuid.UUID, status JobStatus, reason *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = $2,
		    last_error = COALESCE($3, last_error),
		    updated_at = now()
		WHERE appointment_id = $1
	`, appointmentID, status, reason)
	if err != nil {
		return fmt.Errorf("mark reminder %s: %w", status, err)
	}
	return nil
}

func (s *PgStore) Retry(ctx context.Context, appointmentID uuid.UUID, at time.Time, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE reminder_jobs
		SET remind_at = $2,
		    last_error = $3,
		    updated_at = now()
		WHERE appointment_id = $1
	`, appointmentID, at, reason)
	if err != nil {
		return fmt.Errorf("reschedule reminder: %w", err)
	}
	return nil
}
