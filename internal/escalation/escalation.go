// Package escalation records patient interactions that need a human: intent
// classifications below the confidence threshold, explicit requests for
// staff, and unexpected failure paths. Escalations are never deleted and are
// resolved exactly once.
package escalation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ottoferraz/clinic-scheduler/internal/notify"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

var escalationTracer = otel.Tracer("clinic.internal.escalation")

var (
	ErrEscalationNotFound = errors.New("escalation: not found")
	ErrAlreadyResolved    = errors.New("escalation: already resolved")
)

// Escalation is one record awaiting (or past) human review. ResolvedAt and
// ResolvedBy are set together by Resolve and never unset.
type Escalation struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	PatientName string     `json:"patient_name,omitempty"`
	Message     string     `json:"message"`
	Reason      string     `json:"reason,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Resolved reports whether the record has been handled.
func (e *Escalation) Resolved() bool {
	return e != nil && e.ResolvedAt != nil
}

// ListFilter narrows List results. A nil Resolved returns everything.
type ListFilter struct {
	Resolved *bool
	Limit    int
	Offset   int
}

// IntentResult is the outcome of the external intent classifier, consumed as
// an opaque capability.
type IntentResult struct {
	Intent     string
	Confidence float64
}

// IntentHuman is the classifier label for an explicit request to talk to a
// person.
const IntentHuman = "human_handoff"

const defaultListLimit = 50

// Service owns escalation creation and resolution.
type Service struct {
	db                  *sql.DB
	email               notify.EmailSender
	staffEmail          string
	confidenceThreshold float64
	clock               func() time.Time
	logger              *logging.Logger
}

// NewService creates an escalation service. email may be nil to disable
// staff alerts.
func NewService(db *sql.DB, email notify.EmailSender, staffEmail string, confidenceThreshold float64, logger *logging.Logger) *Service {
	if db == nil {
		panic("escalation: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		db:                  db,
		email:               email,
		staffEmail:          staffEmail,
		confidenceThreshold: confidenceThreshold,
		clock:               func() time.Time { return time.Now().UTC() },
		logger:              logger,
	}
}

// Create inserts a new unresolved escalation and alerts staff. The insert is
// the operation's contract; the alert is best-effort and its failure only
// logs.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, message, reason string) (*Escalation, error) {
	ctx, span := escalationTracer.Start(ctx, "escalation.create")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.patient_id", patientID.String()))

	e := &Escalation{
		ID:        uuid.New(),
		PatientID: patientID,
		Message:   message,
		Reason:    reason,
		CreatedAt: s.clock(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escalations (id, patient_id, message, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.PatientID, e.Message, e.Reason, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("escalation: create: %w", err)
	}

	s.alertStaff(ctx, e)
	s.logger.Info("escalation created", "id", e.ID, "patient_id", e.PatientID, "reason", e.Reason)
	return e, nil
}

// TriageIntent applies the hand-off rule to a classifier result: an explicit
// human-handling intent or a confidence below the threshold escalates. The
// returned bool reports whether an escalation was created.
func (s *Service) TriageIntent(ctx context.Context, patientID uuid.UUID, message string, result IntentResult) (*Escalation, bool, error) {
	switch {
	case result.Intent == IntentHuman:
		e, err := s.Create(ctx, patientID, message, "patient asked for a human")
		return e, err == nil, err
	case result.Confidence < s.confidenceThreshold:
		reason := fmt.Sprintf("intent %q below confidence threshold (%.2f < %.2f)",
			result.Intent, result.Confidence, s.confidenceThreshold)
		e, err := s.Create(ctx, patientID, message, reason)
		return e, err == nil, err
	default:
		return nil, false, nil
	}
}

// Get loads one escalation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Escalation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.patient_id, COALESCE(p.name, ''), e.message, e.reason,
		       e.notes, e.resolved_at, e.resolved_by, e.created_at
		FROM escalations e
		LEFT JOIN patients p ON p.id = e.patient_id
		WHERE e.id = $1`, id)

	e, err := scanEscalation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscalationNotFound
		}
		return nil, fmt.Errorf("escalation: get: %w", err)
	}
	return e, nil
}

// List returns escalations newest-first with the patient's display name.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Escalation, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT e.id, e.patient_id, COALESCE(p.name, ''), e.message, e.reason,
		       e.notes, e.resolved_at, e.resolved_by, e.created_at
		FROM escalations e
		LEFT JOIN patients p ON p.id = e.patient_id`)
	if filter.Resolved != nil {
		if *filter.Resolved {
			sb.WriteString(" WHERE e.resolved_at IS NOT NULL")
		} else {
			sb.WriteString(" WHERE e.resolved_at IS NULL")
		}
	}
	sb.WriteString(" ORDER BY e.created_at DESC LIMIT $1 OFFSET $2")

	rows, err := s.db.QueryContext(ctx, sb.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("escalation: list: %w", err)
	}
	defer rows.Close()

	var result []*Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("escalation: scan: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Resolve stamps the resolution fields. Resolution is single-shot: the
// guarded update wins at most once, and a second attempt reports
// ErrAlreadyResolved.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, resolvedBy, notes string) error {
	ctx, span := escalationTracer.Start(ctx, "escalation.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.escalation_id", id.String()))

	result, err := s.db.ExecContext(ctx, `
		UPDATE escalations
		SET resolved_at = $1, resolved_by = $2, notes = $3
		WHERE id = $4 AND resolved_at IS NULL`,
		s.clock(), resolvedBy, notes, id,
	)
	if err != nil {
		return fmt.Errorf("escalation: resolve: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyResolved
	}

	s.logger.Info("escalation resolved", "id", id, "by", resolvedBy)
	return nil
}

func (s *Service) alertStaff(ctx context.Context, e *Escalation) {
	if s.email == nil || s.staffEmail == "" {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Escalation ID: %s\n", e.ID))
	sb.WriteString(fmt.Sprintf("Patient: %s\n", e.PatientID))
	sb.WriteString(fmt.Sprintf("Created: %s\n\n", e.CreatedAt.Format(time.RFC1123)))
	sb.WriteString("--- Reason ---\n")
	sb.WriteString(e.Reason)
	sb.WriteString("\n\n--- Patient message ---\n")
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	msg := notify.EmailMessage{
		To:      s.staffEmail,
		Subject: "New escalation awaiting review",
		Body:    sb.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send escalation alert", "error", err, "escalation_id", e.ID)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEscalation(row rowScanner) (*Escalation, error) {
	var e Escalation
	var notes, resolvedBy sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(&e.ID, &e.PatientID, &e.PatientName, &e.Message, &e.Reason,
		&notes, &resolvedAt, &resolvedBy, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	e.Notes = notes.String
	e.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}
	return &e, nil
}
