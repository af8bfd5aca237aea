package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAppointmentNotFound is returned when the referenced appointment does not exist.
var ErrAppointmentNotFound = errors.New("scheduling: appointment not found")

// ValidationError reports a request that is malformed or outside booking
// policy, such as a non-Saturday slot. Never retried by the engine.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "scheduling: " + e.Reason
}

// SlotConflictError reports that the target slot is already held by another
// active appointment.
type SlotConflictError struct {
	Slot time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("scheduling: slot %s already booked", e.Slot.Format(time.RFC3339))
}

// InvalidTransitionError reports an illegal status change.
type InvalidTransitionError struct {
	AppointmentID uuid.UUID
	From          Status
	To            Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("scheduling: appointment %s cannot transition %s -> %s", e.AppointmentID, e.From, e.To)
}

// CancellationWindowError reports a cancellation attempted inside the
// protected window before the appointment.
type CancellationWindowError struct {
	AppointmentID uuid.UUID
	ScheduledAt   time.Time
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("scheduling: appointment %s is within %d hours, cancellation closed", e.AppointmentID, CancelWindowHours)
}
