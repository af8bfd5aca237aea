package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ottoferraz/clinic-scheduler/internal/patient"
	"github.com/ottoferraz/clinic-scheduler/internal/scheduling"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

type fakeAppointmentReader struct {
	byID map[uuid.UUID]*scheduling.Appointment
}

func (f *fakeAppointmentReader) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	return a, nil
}

type sentMessage struct {
	to   string
	body string
}

type stubChannel struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *stubChannel) Send(_ context.Context, to, body string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{to: to, body: body})
	return uuid.NewString(), nil
}

func (s *stubChannel) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type dispatchFixture struct {
	appointment *scheduling.Appointment
	patient     *patient.Patient
	ledger      *memLedger
	channel     *stubChannel
	dispatcher  *Dispatcher
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	patientID := uuid.New()
	a := &scheduling.Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		ScheduledAt: time.Date(2025, 2, 15, 9, 0, 0, 0, time.UTC),
		Status:      scheduling.StatusScheduled,
	}
	f := &dispatchFixture{
		appointment: a,
		patient:     consentedPatient(patientID),
		ledger:      newMemLedger(),
		channel:     &stubChannel{},
	}
	appts := &fakeAppointmentReader{byID: map[uuid.UUID]*scheduling.Appointment{a.ID: a}}
	patients := &fakePatients{byID: map[uuid.UUID]*patient.Patient{patientID: f.patient}}
	f.dispatcher = NewDispatcher(appts, patients, f.ledger, f.channel, logging.Default(), nil)
	return f
}

func (f *dispatchFixture) job(kind Kind) Job {
	return Job{
		ID:            uuid.NewString(),
		Kind:          kind,
		AppointmentID: f.appointment.ID,
		PatientID:     f.appointment.PatientID,
		To:            f.patient.Phone,
		Data: TemplateData{
			PatientName: f.patient.Name,
			ScheduledAt: f.appointment.ScheduledAt,
			ClinicName:  "Clínica Bem Viver",
		},
	}
}

func TestDispatchSendsAndRecords(t *testing.T) {
	f := newDispatchFixture(t)

	err := f.dispatcher.Process(context.Background(), f.job(KindReminder72h))
	require.NoError(t, err)
	require.Equal(t, 1, f.channel.count())
	assert.Equal(t, f.patient.Phone, f.channel.sent[0].to)
	assert.Contains(t, f.channel.sent[0].body, "3 dias")

	rec, err := f.ledger.FindByAppointmentAndKind(context.Background(), f.appointment.ID, KindReminder72h)
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestDispatchUsesFreshPatientPhone(t *testing.T) {
	f := newDispatchFixture(t)
	job := f.job(KindConfirmation)
	job.To = "+5511000000000" // stale destination captured at enqueue time
	f.patient.Phone = "+5511999991111"

	require.NoError(t, f.dispatcher.Process(context.Background(), job))
	require.Equal(t, 1, f.channel.count())
	assert.Equal(t, "+5511999991111", f.channel.sent[0].to)
}

func TestDispatchDropsMissingAppointment(t *testing.T) {
	f := newDispatchFixture(t)
	job := f.job(KindReminder48h)
	job.AppointmentID = uuid.New()

	require.NoError(t, f.dispatcher.Process(context.Background(), job))
	assert.Zero(t, f.channel.count())
}

func TestDispatchDropsReminderForCancelledAppointment(t *testing.T) {
	f := newDispatchFixture(t)
	f.appointment.Status = scheduling.StatusCancelled

	require.NoError(t, f.dispatcher.Process(context.Background(), f.job(KindReminder72h)))
	assert.Zero(t, f.channel.count())

	// The cancellation notice itself still goes out.
	require.NoError(t, f.dispatcher.Process(context.Background(), f.job(KindCancellation)))
	assert.Equal(t, 1, f.channel.count())
}

func TestDispatchConsentGate(t *testing.T) {
	f := newDispatchFixture(t)
	f.patient.ConsentGivenAt = nil

	require.NoError(t, f.dispatcher.Process(context.Background(), f.job(KindReminder72h)))
	assert.Zero(t, f.channel.count())

	// Doctor alerts go to staff, not the patient, so consent does not apply.
	require.NoError(t, f.dispatcher.Process(context.Background(), f.job(KindDoctorAlert)))
	assert.Equal(t, 1, f.channel.count())
}

func TestDispatchSendFailureIsRetryable(t *testing.T) {
	f := newDispatchFixture(t)
	f.channel.err = errors.New("provider unavailable")

	err := f.dispatcher.Process(context.Background(), f.job(KindReminder72h))
	require.Error(t, err)

	// Nothing recorded, so the redelivered job will send.
	rec, lerr := f.ledger.FindByAppointmentAndKind(context.Background(), f.appointment.ID, KindReminder72h)
	require.NoError(t, lerr)
	assert.Nil(t, rec)
}

func TestDispatchDuplicateRecordIsSuccess(t *testing.T) {
	f := newDispatchFixture(t)
	created, err := f.ledger.Record(context.Background(), f.appointment.ID, KindReminder72h)
	require.NoError(t, err)
	require.True(t, created)

	// A concurrent worker already recorded the pair; the job still finishes
	// cleanly so the queue deletes it.
	require.NoError(t, f.dispatcher.Process(context.Background(), f.job(KindReminder72h)))
}

func TestDispatchDropsUnknownKind(t *testing.T) {
	f := newDispatchFixture(t)
	job := f.job(Kind("carrier_pigeon"))

	require.NoError(t, f.dispatcher.Process(context.Background(), job))
	assert.Zero(t, f.channel.count())
}
