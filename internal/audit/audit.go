// Package audit keeps an immutable trail of every mutating scheduling
// operation: who did what to which appointment, with the before/after fields
// that matter for a dispute.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// Event is one immutable audit record.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Action        string          `json:"action"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	Actor         string          `json:"actor,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Filter specifies criteria for querying audit events.
type Filter struct {
	AppointmentID uuid.UUID
	Action        string
	StartTime     time.Time
	EndTime       time.Time
	Limit         int
	Offset        int
}

// Service writes and queries the audit trail.
type Service struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewService creates an audit service.
func NewService(db *sql.DB, logger *logging.Logger) *Service {
	if db == nil {
		panic("audit: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, logger: logger}
}

// LogEvent inserts one audit record.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, action, appointment_id, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Action, event.AppointmentID,
		nullString(event.Actor), event.Details, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: log event: %w", err)
	}
	return nil
}

// Record satisfies the scheduling service's auditor contract. Audit write
// failures are logged, not propagated: a booking must not roll back because
// the trail is unavailable.
func (s *Service) Record(ctx context.Context, action string, appointmentID uuid.UUID, details map[string]any) {
	var payload json.RawMessage
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			s.logger.Error("audit details not serializable", "error", err, "action", action)
		} else {
			payload = b
		}
	}

	if err := s.LogEvent(ctx, Event{
		Action:        action,
		AppointmentID: appointmentID,
		Details:       payload,
	}); err != nil {
		s.logger.Error("failed to record audit event", "error", err, "action", action, "appointment_id", appointmentID)
	}
}

// QueryEvents retrieves audit events, newest first.
func (s *Service) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, action, appointment_id, actor, details, created_at
		FROM audit_events
		WHERE 1=1`
	var args []any
	argIdx := 1

	if filter.AppointmentID != uuid.Nil {
		query += fmt.Sprintf(" AND appointment_id = $%d", argIdx)
		args = append(args, filter.AppointmentID)
		argIdx++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, filter.Action)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var actor sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.AppointmentID, &actor, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Actor = actor.String
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
