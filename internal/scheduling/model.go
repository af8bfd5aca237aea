// Package scheduling owns the appointment state machine: booking,
// rescheduling, cancellation and status transitions.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of appointment states.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Appointment is a booked Saturday slot. Appointments are never deleted;
// cancellation is a status transition.
type Appointment struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Status       Status    `json:"status"`
	CancelReason *string   `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BookRequest is the payload for booking a new appointment.
type BookRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// RescheduleRequest moves an existing appointment to a new slot.
type RescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}
