package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ottoferraz/clinic-scheduler/internal/availability"
	"github.com/ottoferraz/clinic-scheduler/internal/calendar"
	"github.com/ottoferraz/clinic-scheduler/internal/observability/metrics"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.scheduling")

// CancelWindowHours is the protected window before an appointment during
// which cancellation is refused. The boundary is inclusive: exactly 12 hours
// before is still blocked.
const CancelWindowHours = 12

// AppointmentStore is the persistence contract the service depends on. The
// production implementation is Store; tests supply in-memory fakes.
type AppointmentStore interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	FindByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	FindBySlot(ctx context.Context, start time.Time) (*Appointment, error)
	FindInRange(ctx context.Context, from, to time.Time) ([]Appointment, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, scheduledAt, updatedAt time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, cancelReason *string, updatedAt time.Time) error
}

// Auditor records mutating operations for the audit trail.
type Auditor interface {
	Record(ctx context.Context, action string, appointmentID uuid.UUID, details map[string]any)
}

// Notifier receives appointment lifecycle events to drive outbound messages.
// Calls are fire-and-forget; delivery guarantees live in the notification
// pipeline, not here.
type Notifier interface {
	AppointmentBooked(ctx context.Context, a *Appointment)
	AppointmentCancelled(ctx context.Context, a *Appointment)
}

// Service owns the appointment state machine.
type Service struct {
	store    AppointmentStore
	calc     *availability.Calculator
	clock    calendar.Clock
	auditor  Auditor
	notifier Notifier
	logger   *logging.Logger
	metrics  *metrics.SchedulingMetrics
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithMetrics attaches booking and cancellation counters.
func WithMetrics(m *metrics.SchedulingMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService constructs a scheduling service. Store, calculator and clock are
// required; auditor and notifier may be nil in tests.
func NewService(store AppointmentStore, calc *availability.Calculator, clock calendar.Clock, auditor Auditor, notifier Notifier, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("scheduling: store required")
	}
	if calc == nil {
		panic("scheduling: availability calculator required")
	}
	if clock == nil {
		panic("scheduling: clock required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:    store,
		calc:     calc,
		clock:    clock,
		auditor:  auditor,
		notifier: notifier,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book creates an appointment in state scheduled. The slot must be a valid
// open Saturday block; slot exclusivity is guaranteed by the store even under
// concurrent callers.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.patient_id", req.PatientID.String()))

	if req.PatientID == uuid.Nil {
		return nil, &ValidationError{Reason: "patient_id is required"}
	}
	if !s.calc.IsValidSlot(availability.SlotAt(req.ScheduledAt)) {
		return nil, &ValidationError{Reason: "scheduled_at is not an open Saturday slot"}
	}

	now := s.clock.Now().UTC()
	a := &Appointment{
		ID:          uuid.New(),
		PatientID:   req.PatientID,
		ScheduledAt: req.ScheduledAt,
		Status:      StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		span.RecordError(err)
		var conflict *SlotConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveSlotConflict()
		}
		s.metrics.ObserveBooking("rejected")
		return nil, err
	}
	s.metrics.ObserveBooking("scheduled")

	s.audit(ctx, "appointment.book", a.ID, map[string]any{
		"patient_id":   a.PatientID.String(),
		"scheduled_at": a.ScheduledAt,
	})
	if s.notifier != nil {
		s.notifier.AppointmentBooked(ctx, a)
	}
	s.logger.Info("appointment booked", "id", a.ID, "patient_id", a.PatientID, "scheduled_at", a.ScheduledAt)
	return a, nil
}

// Reschedule moves an appointment to a new slot. Status is unchanged and
// there is no limit on how often an appointment may move. Reminder windows
// derive from scheduled_at, so moving the slot implicitly resets them: the
// dedup ledger is keyed by kind, not by slot, and already-sent reminders are
// not re-sent.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", id.String()))

	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(a.Status) {
		return nil, &InvalidTransitionError{AppointmentID: id, From: a.Status, To: a.Status}
	}
	if !s.calc.IsValidSlot(availability.SlotAt(req.ScheduledAt)) {
		return nil, &ValidationError{Reason: "scheduled_at is not an open Saturday slot"}
	}

	// The slot pre-check excludes the appointment itself; the store's
	// active-slot constraint remains the authority under concurrency.
	if holder, err := s.store.FindBySlot(ctx, req.ScheduledAt); err != nil {
		return nil, err
	} else if holder != nil && holder.ID != id {
		return nil, &SlotConflictError{Slot: req.ScheduledAt}
	}

	now := s.clock.Now().UTC()
	if err := s.store.UpdateSchedule(ctx, id, req.ScheduledAt, now); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit(ctx, "appointment.reschedule", id, map[string]any{
		"from": a.ScheduledAt,
		"to":   req.ScheduledAt,
	})
	s.logger.Info("appointment rescheduled", "id", id, "from", a.ScheduledAt, "to", req.ScheduledAt)

	a.ScheduledAt = req.ScheduledAt
	a.UpdatedAt = now
	return a, nil
}

// Cancel transitions an appointment to cancelled. Cancellation must happen
// strictly more than CancelWindowHours before the slot; the freed slot is
// immediately bookable by others.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", id.String()))

	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, StatusCancelled) {
		return nil, &InvalidTransitionError{AppointmentID: id, From: a.Status, To: StatusCancelled}
	}
	if calendar.WithinHours(s.clock, a.ScheduledAt, CancelWindowHours) {
		s.metrics.ObserveWindowRejection()
		return nil, &CancellationWindowError{AppointmentID: id, ScheduledAt: a.ScheduledAt}
	}

	now := s.clock.Now().UTC()
	if err := s.store.UpdateStatus(ctx, id, StatusCancelled, &reason, now); err != nil {
		span.RecordError(err)
		s.metrics.ObserveCancellation("failed")
		return nil, err
	}
	s.metrics.ObserveCancellation("cancelled")

	s.audit(ctx, "appointment.cancel", id, map[string]any{
		"from_status":  string(a.Status),
		"reason":       reason,
		"scheduled_at": a.ScheduledAt,
	})
	a.Status = StatusCancelled
	a.CancelReason = &reason
	a.UpdatedAt = now
	if s.notifier != nil {
		s.notifier.AppointmentCancelled(ctx, a)
	}
	s.logger.Info("appointment cancelled", "id", id, "reason", reason)
	return a, nil
}

// UpdateStatus applies a status transition after consulting the transition
// table.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.update_status")
	defer span.End()

	if !ValidStatus(to) {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown status %q", to)}
	}
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, to) {
		return nil, &InvalidTransitionError{AppointmentID: id, From: a.Status, To: to}
	}

	now := s.clock.Now().UTC()
	if err := s.store.UpdateStatus(ctx, id, to, a.CancelReason, now); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.audit(ctx, "appointment.update_status", id, map[string]any{
		"from": string(a.Status),
		"to":   string(to),
	})
	s.logger.Info("appointment status updated", "id", id, "from", a.Status, "to", to)

	a.Status = to
	a.UpdatedAt = now
	return a, nil
}

// Get loads one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.GetByID(ctx, id)
}

// ListForPatient returns a patient's appointments, most recent first.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return s.store.FindByPatient(ctx, patientID)
}

// Availability returns the slots for a date that are not held by an active
// appointment.
func (s *Service) Availability(ctx context.Context, date time.Time) ([]availability.Slot, error) {
	slots := s.calc.Slots(date)
	if len(slots) == 0 {
		return nil, nil
	}
	booked, err := s.store.FindInRange(ctx, slots[0].Start, slots[len(slots)-1].End)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load bookings for %s: %w", date.Format("2006-01-02"), err)
	}
	open := make([]availability.Slot, 0, len(slots))
	for _, sl := range slots {
		taken := false
		for _, a := range booked {
			if a.ScheduledAt.Equal(sl.Start) {
				taken = true
				break
			}
		}
		if !taken {
			open = append(open, sl)
		}
	}
	return open, nil
}

func (s *Service) audit(ctx context.Context, action string, id uuid.UUID, details map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, action, id, details)
}
