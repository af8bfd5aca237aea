// Package notification drives the outbound messaging pipeline: the periodic
// reminder sweep, the job queue between sweep and delivery, and the
// dispatcher that sends messages and records them in the dedup ledger.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies a notification type. The ledger allows at most one send
// per (appointment, kind) pair.
type Kind string

const (
	KindReminder72h  Kind = "reminder_72h"
	KindReminder48h  Kind = "reminder_48h"
	KindConfirmation Kind = "confirmation"
	KindCancellation Kind = "cancellation"
	KindDoctorAlert  Kind = "doctor_alert"
)

// Record is one row of the dedup ledger. Written exactly once, after a
// successful send; never updated or deleted.
type Record struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Kind          Kind      `json:"kind"`
	SentAt        time.Time `json:"sent_at"`
}

// TemplateData carries the fields the per-kind message templates consume.
type TemplateData struct {
	PatientName string    `json:"patient_name"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ClinicName  string    `json:"clinic_name"`
	Reason      string    `json:"reason,omitempty"`
}

// Job is one queued send. ID doubles as the correlation identifier for
// tracing a message across sweep, queue and dispatch.
type Job struct {
	ID            string       `json:"id"`
	Kind          Kind         `json:"kind"`
	AppointmentID uuid.UUID    `json:"appointment_id"`
	PatientID     uuid.UUID    `json:"patient_id"`
	To            string       `json:"to"`
	Data          TemplateData `json:"data"`
}
