package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ottoferraz/clinic-scheduler/internal/observability/metrics"
	"github.com/ottoferraz/clinic-scheduler/internal/patient"
	"github.com/ottoferraz/clinic-scheduler/internal/scheduling"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

var dispatchTracer = otel.Tracer("clinic.internal.notification")

type appointmentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
}

type ledgerWriter interface {
	Record(ctx context.Context, appointmentID uuid.UUID, kind Kind) (bool, error)
}

// MessageChannel delivers a rendered body to a destination and returns the
// provider message id.
type MessageChannel interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Dispatcher processes one queued send at a time. Jobs outlive the state
// they were enqueued under, so everything is re-validated here: a missing or
// cancelled appointment and a missing or unconsented patient are expected
// no-ops, not errors. Send failures propagate so the queue retries; the
// ledger makes those retries safe.
type Dispatcher struct {
	appointments appointmentReader
	patients     patientSource
	ledger       ledgerWriter
	channel      MessageChannel
	logger       *logging.Logger
	metrics      *metrics.NotificationMetrics
}

// NewDispatcher constructs a notification dispatcher.
func NewDispatcher(appointments appointmentReader, patients patientSource, ledger ledgerWriter, channel MessageChannel, logger *logging.Logger, m *metrics.NotificationMetrics) *Dispatcher {
	if appointments == nil || patients == nil || ledger == nil || channel == nil {
		panic("notification: dispatcher dependencies required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		appointments: appointments,
		patients:     patients,
		ledger:       ledger,
		channel:      channel,
		logger:       logger,
		metrics:      m,
	}
}

// Process handles one job. A nil return means the job is finished — either
// delivered or intentionally dropped — and may be deleted from the queue.
func (d *Dispatcher) Process(ctx context.Context, job Job) error {
	ctx, span := dispatchTracer.Start(ctx, "notification.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.job_id", job.ID),
		attribute.String("clinic.notification_kind", string(job.Kind)),
	)

	a, err := d.appointments.GetByID(ctx, job.AppointmentID)
	if errors.Is(err, scheduling.ErrAppointmentNotFound) {
		d.drop(job, "appointment_missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("notification: dispatch fetch appointment: %w", err)
	}
	if a.Status == scheduling.StatusCancelled && job.Kind != KindCancellation {
		d.drop(job, "appointment_cancelled")
		return nil
	}

	p, err := d.patients.GetByID(ctx, job.PatientID)
	if errors.Is(err, patient.ErrPatientNotFound) {
		d.drop(job, "patient_missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("notification: dispatch fetch patient: %w", err)
	}
	if patientFacing(job.Kind) && !p.HasConsent() {
		d.drop(job, "no_consent")
		return nil
	}

	body, err := RenderMessage(job.Kind, job.Data)
	if err != nil {
		// Unknown kind: retrying cannot help, drop.
		d.drop(job, "unrenderable")
		return nil
	}

	to := job.To
	if patientFacing(job.Kind) && p.Phone != "" {
		// The patient record is fresher than the enqueued destination.
		to = p.Phone
	}

	messageID, err := d.channel.Send(ctx, to, body)
	if err != nil {
		span.RecordError(err)
		d.metrics.ObserveDispatch(string(job.Kind), "send_failed")
		return fmt.Errorf("notification: send %s for appointment %s: %w", job.Kind, job.AppointmentID, err)
	}

	created, err := d.ledger.Record(ctx, job.AppointmentID, job.Kind)
	if err != nil {
		return fmt.Errorf("notification: record %s for appointment %s: %w", job.Kind, job.AppointmentID, err)
	}
	if !created {
		// A concurrent attempt recorded the pair first; that is success.
		d.logger.Info("notification already recorded by concurrent attempt",
			"job_id", job.ID, "kind", job.Kind, "appointment_id", job.AppointmentID)
	}

	d.metrics.ObserveDispatch(string(job.Kind), "sent")
	d.logger.Info("notification sent",
		"job_id", job.ID,
		"kind", job.Kind,
		"appointment_id", job.AppointmentID,
		"message_id", messageID,
	)
	return nil
}

func (d *Dispatcher) drop(job Job, reason string) {
	d.metrics.ObserveDispatch(string(job.Kind), "dropped_"+reason)
	d.logger.Info("notification job dropped",
		"job_id", job.ID,
		"kind", job.Kind,
		"appointment_id", job.AppointmentID,
		"reason", reason,
	)
}
