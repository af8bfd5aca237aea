package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments. Slot exclusivity is enforced by the database:
// a partial unique index over scheduled_at for non-cancelled rows makes the
// conflict check and the write a single atomic unit, so two concurrent
// bookings for one slot always yield exactly one winner.
type Store struct {
	db DB
}

// NewStore creates an appointment store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("scheduling: db required")
	}
	return &Store{db: db}
}

const appointmentColumns = "id, patient_id, scheduled_at, status, cancel_reason, created_at, updated_at"

// Create inserts a new appointment. A unique violation on the active-slot
// index is returned as a SlotConflictError.
func (s *Store) Create(ctx context.Context, a *Appointment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.PatientID, a.ScheduledAt, string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &SlotConflictError{Slot: a.ScheduledAt}
		}
		return fmt.Errorf("scheduling: create appointment: %w", err)
	}
	return nil
}

// GetByID loads one appointment.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("scheduling: get appointment: %w", err)
	}
	return a, nil
}

// FindByPatient returns a patient's appointments, most recent slot first.
func (s *Store) FindByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("scheduling: find by patient: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// FindBySlot returns the active (non-cancelled) appointment holding the exact
// slot start, or nil when the slot is free.
func (s *Store) FindBySlot(ctx context.Context, start time.Time) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE scheduled_at = $1 AND status <> 'cancelled'`, start)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduling: find by slot: %w", err)
	}
	return a, nil
}

// FindInRange returns non-cancelled appointments with scheduled_at in
// [from, to), ordered soonest first. The reminder sweep is the main caller.
func (s *Store) FindInRange(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE scheduled_at >= $1 AND scheduled_at < $2 AND status <> 'cancelled'
		ORDER BY scheduled_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("scheduling: find in range: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// UpdateSchedule moves an appointment to a new slot. The active-slot index
// performs the conflict check atomically with the write; the row being moved
// never conflicts with itself because the index holds its old slot until the
// update commits.
func (s *Store) UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledAt, updatedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET scheduled_at = $1, updated_at = $2
		WHERE id = $3`, scheduledAt, updatedAt, id)
	if err != nil {
		if isUniqueViolation(err) {
			return &SlotConflictError{Slot: scheduledAt}
		}
		return fmt.Errorf("scheduling: update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// UpdateStatus persists a status change.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, cancelReason *string, updatedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $1, cancel_reason = $2, updated_at = $3
		WHERE id = $4`, string(status), cancelReason, updatedAt, id)
	if err != nil {
		return fmt.Errorf("scheduling: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	if err := row.Scan(&a.ID, &a.PatientID, &a.ScheduledAt, &status, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
