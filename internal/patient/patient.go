// Package patient provides read access to patient records. The engine only
// needs identity, a WhatsApp destination and the consent timestamp that gates
// every outbound message.
package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrPatientNotFound is returned when the referenced patient does not exist.
var ErrPatientNotFound = errors.New("patient: not found")

// Patient is the subset of the patient record the engine consumes.
type Patient struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	ConsentGivenAt *time.Time `json:"consent_given_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HasConsent reports whether the patient may receive messages.
func (p *Patient) HasConsent() bool {
	return p != nil && p.ConsentGivenAt != nil
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads patients from the relational database.
type Store struct {
	db DB
}

// NewStore creates a patient store.
func NewStore(db DB) *Store {
	if db == nil {
		panic("patient: db required")
	}
	return &Store{db: db}
}

// GetByID loads one patient.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, consent_given_at, created_at
		FROM patients
		WHERE id = $1`, id)

	var p Patient
	if err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.ConsentGivenAt, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patient: get: %w", err)
	}
	return &p, nil
}
