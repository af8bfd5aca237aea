package notification

import (
	"context"

	"github.com/ottoferraz/clinic-scheduler/internal/patient"
	"github.com/ottoferraz/clinic-scheduler/internal/scheduling"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// Notifier reacts to appointment lifecycle events by enqueueing send jobs.
// It implements the scheduling service's notifier contract. Enqueue failures
// are logged and swallowed: a booking must not fail because the queue is
// down, and the reminder sweep does not depend on these jobs.
type Notifier struct {
	publisher   *Publisher
	patients    patientSource
	logger      *logging.Logger
	clinicName  string
	doctorPhone string
}

// NewNotifier creates a lifecycle notifier. doctorPhone may be empty, in
// which case booking alerts to the doctor are skipped.
func NewNotifier(publisher *Publisher, patients patientSource, logger *logging.Logger, clinicName, doctorPhone string) *Notifier {
	if publisher == nil {
		panic("notification: publisher required")
	}
	if patients == nil {
		panic("notification: patient source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{
		publisher:   publisher,
		patients:    patients,
		logger:      logger,
		clinicName:  clinicName,
		doctorPhone: doctorPhone,
	}
}

// AppointmentBooked enqueues a confirmation for the patient and, when a
// doctor phone is configured, an alert for the doctor.
func (n *Notifier) AppointmentBooked(ctx context.Context, a *scheduling.Appointment) {
	p, ok := n.lookupPatient(ctx, a)
	if !ok {
		return
	}

	n.enqueue(ctx, Job{
		Kind:          KindConfirmation,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		To:            p.Phone,
		Data: TemplateData{
			PatientName: p.Name,
			ScheduledAt: a.ScheduledAt,
			ClinicName:  n.clinicName,
		},
	})

	if n.doctorPhone != "" {
		n.enqueue(ctx, Job{
			Kind:          KindDoctorAlert,
			AppointmentID: a.ID,
			PatientID:     a.PatientID,
			To:            n.doctorPhone,
			Data: TemplateData{
				PatientName: p.Name,
				ScheduledAt: a.ScheduledAt,
				ClinicName:  n.clinicName,
			},
		})
	}
}

// AppointmentCancelled enqueues a cancellation notice for the patient.
func (n *Notifier) AppointmentCancelled(ctx context.Context, a *scheduling.Appointment) {
	p, ok := n.lookupPatient(ctx, a)
	if !ok {
		return
	}

	reason := ""
	if a.CancelReason != nil {
		reason = *a.CancelReason
	}
	n.enqueue(ctx, Job{
		Kind:          KindCancellation,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		To:            p.Phone,
		Data: TemplateData{
			PatientName: p.Name,
			ScheduledAt: a.ScheduledAt,
			ClinicName:  n.clinicName,
			Reason:      reason,
		},
	})
}

func (n *Notifier) lookupPatient(ctx context.Context, a *scheduling.Appointment) (*patient.Patient, bool) {
	p, err := n.patients.GetByID(ctx, a.PatientID)
	if err != nil {
		n.logger.Error("failed to load patient for lifecycle notification",
			"error", err,
			"appointment_id", a.ID,
			"patient_id", a.PatientID,
		)
		return nil, false
	}
	return p, true
}

func (n *Notifier) enqueue(ctx context.Context, job Job) {
	if err := n.publisher.Enqueue(ctx, job); err != nil {
		n.logger.Error("failed to enqueue lifecycle notification",
			"error", err,
			"kind", job.Kind,
			"appointment_id", job.AppointmentID,
		)
	}
}
