package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ottoferraz/clinic-scheduler/internal/calendar"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger records which (appointment, kind) pairs were already sent. The
// composite unique constraint in the store is the deduplication primitive:
// the existence check and the eventual write are never atomic across the
// queue boundary, so concurrent attempts must collide here and the loser
// treats the collision as success.
type Ledger struct {
	db    DB
	clock calendar.Clock
}

// LedgerOption customizes ledger behavior.
type LedgerOption func(*Ledger)

// WithLedgerClock overrides the clock used to stamp sends.
func WithLedgerClock(clock calendar.Clock) LedgerOption {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// NewLedger creates a notification ledger.
func NewLedger(db DB, opts ...LedgerOption) *Ledger {
	if db == nil {
		panic("notification: db required")
	}
	l := &Ledger{db: db, clock: calendar.SystemClock{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record inserts a sent marker for the pair, returning false when another
// attempt already recorded it.
func (l *Ledger) Record(ctx context.Context, appointmentID uuid.UUID, kind Kind) (bool, error) {
	ct, err := l.db.Exec(ctx, `
		INSERT INTO notifications_sent (id, appointment_id, kind, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (appointment_id, kind) DO NOTHING`,
		uuid.New(), appointmentID, string(kind), l.clock.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("notification: record send: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// FindByAppointmentAndKind returns the send record for the pair, or nil when
// nothing was sent yet.
func (l *Ledger) FindByAppointmentAndKind(ctx context.Context, appointmentID uuid.UUID, kind Kind) (*Record, error) {
	row := l.db.QueryRow(ctx, `
		SELECT id, appointment_id, kind, sent_at
		FROM notifications_sent
		WHERE appointment_id = $1 AND kind = $2`, appointmentID, string(kind))

	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("notification: find by appointment and kind: %w", err)
	}
	return r, nil
}

// FindByAppointment returns every send recorded for an appointment.
func (l *Ledger) FindByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Record, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, appointment_id, kind, sent_at
		FROM notifications_sent
		WHERE appointment_id = $1
		ORDER BY sent_at ASC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("notification: find by appointment: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("notification: scan record: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var kind string
	if err := row.Scan(&r.ID, &r.AppointmentID, &kind, &r.SentAt); err != nil {
		return nil, err
	}
	r.Kind = Kind(kind)
	return &r, nil
}
