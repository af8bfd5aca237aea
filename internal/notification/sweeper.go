package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ottoferraz/clinic-scheduler/internal/calendar"
	"github.com/ottoferraz/clinic-scheduler/internal/observability/metrics"
	"github.com/ottoferraz/clinic-scheduler/internal/patient"
	"github.com/ottoferraz/clinic-scheduler/internal/scheduling"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// The sweep runs hourly, so each reminder fires during the one-hour band
// where hours-until-appointment first drops below the window. The fetch
// horizon covers the far edge of the widest band.
const sweepHorizon = 73 * time.Hour

// reminderWindows maps each reminder kind to its half-open eligibility band
// [from, from+1h) in hours before the appointment.
var reminderWindows = []struct {
	kind Kind
	from float64
}{
	{KindReminder72h, 72},
	{KindReminder48h, 48},
}

type appointmentSource interface {
	FindInRange(ctx context.Context, from, to time.Time) ([]scheduling.Appointment, error)
}

type patientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type ledgerReader interface {
	FindByAppointmentAndKind(ctx context.Context, appointmentID uuid.UUID, kind Kind) (*Record, error)
}

type enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Sweeper finds appointments entering a reminder window and enqueues send
// jobs. Re-running a sweep never double-enqueues a window the ledger already
// records, so any periodic trigger may drive it.
type Sweeper struct {
	appointments appointmentSource
	patients     patientSource
	ledger       ledgerReader
	publisher    enqueuer
	clock        calendar.Clock
	lock         *SweepLock
	clinicName   string
	logger       *logging.Logger
	metrics      *metrics.NotificationMetrics
}

// SweeperOption customizes sweep behavior.
type SweeperOption func(*Sweeper)

// WithSweepLock serializes sweeps across replicas.
func WithSweepLock(lock *SweepLock) SweeperOption {
	return func(s *Sweeper) {
		s.lock = lock
	}
}

// WithSweepMetrics wires prometheus counters.
func WithSweepMetrics(m *metrics.NotificationMetrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// NewSweeper constructs a reminder sweeper.
func NewSweeper(appointments appointmentSource, patients patientSource, ledger ledgerReader, publisher enqueuer, clock calendar.Clock, clinicName string, logger *logging.Logger, opts ...SweeperOption) *Sweeper {
	if appointments == nil || patients == nil || ledger == nil || publisher == nil {
		panic("notification: sweeper dependencies required")
	}
	if clock == nil {
		panic("notification: clock required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Sweeper{
		appointments: appointments,
		patients:     patients,
		ledger:       ledger,
		publisher:    publisher,
		clock:        clock,
		clinicName:   clinicName,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one sweep and returns the number of jobs enqueued.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	if s.lock != nil {
		ok, err := s.lock.TryAcquire(ctx)
		if err != nil {
			return 0, err
		}
		if !ok {
			s.logger.Debug("reminder sweep skipped: another replica holds the lock")
			return 0, nil
		}
		defer s.lock.Release(ctx)
	}

	now := s.clock.Now()
	appts, err := s.appointments.FindInRange(ctx, now, now.Add(sweepHorizon))
	if err != nil {
		return 0, fmt.Errorf("notification: sweep fetch: %w", err)
	}

	enqueued := 0
	for i := range appts {
		n, err := s.sweepOne(ctx, now, &appts[i])
		if err != nil {
			// One bad appointment must not starve the rest of the sweep.
			s.logger.Error("reminder sweep: appointment failed", "error", err, "appointment_id", appts[i].ID)
			continue
		}
		enqueued += n
	}

	s.logger.Info("reminder sweep complete", "appointments", len(appts), "enqueued", enqueued)
	return enqueued, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, now time.Time, a *scheduling.Appointment) (int, error) {
	hoursUntil := a.ScheduledAt.Sub(now).Hours()

	var due []Kind
	for _, w := range reminderWindows {
		if hoursUntil >= w.from && hoursUntil < w.from+1 {
			due = append(due, w.kind)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	p, err := s.patients.GetByID(ctx, a.PatientID)
	if err != nil {
		return 0, err
	}
	if !p.HasConsent() {
		s.metrics.ObserveSweepSkip("no_consent")
		s.logger.Debug("reminder sweep: patient without consent", "appointment_id", a.ID, "patient_id", a.PatientID)
		return 0, nil
	}

	enqueued := 0
	for _, kind := range due {
		sent, err := s.ledger.FindByAppointmentAndKind(ctx, a.ID, kind)
		if err != nil {
			return enqueued, err
		}
		if sent != nil {
			s.metrics.ObserveSweepSkip("already_sent")
			continue
		}

		job := Job{
			Kind:          kind,
			AppointmentID: a.ID,
			PatientID:     a.PatientID,
			To:            p.Phone,
			Data: TemplateData{
				PatientName: p.Name,
				ScheduledAt: a.ScheduledAt,
				ClinicName:  s.clinicName,
			},
		}
		if err := s.publisher.Enqueue(ctx, job); err != nil {
			return enqueued, err
		}
		s.metrics.ObserveSweepEnqueue(string(kind))
		enqueued++
	}
	return enqueued, nil
}
