package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ottoferraz/clinic-scheduler/internal/availability"
	"github.com/ottoferraz/clinic-scheduler/internal/calendar"
	httpmiddleware "github.com/ottoferraz/clinic-scheduler/internal/http/middleware"
	"github.com/ottoferraz/clinic-scheduler/internal/scheduling"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// stubStore is a minimal in-memory scheduling.AppointmentStore.
type stubStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*scheduling.Appointment
}

func newStubStore() *stubStore {
	return &stubStore{rows: make(map[uuid.UUID]*scheduling.Appointment)}
}

func (s *stubStore) Create(_ context.Context, a *scheduling.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.Status != scheduling.StatusCancelled && existing.ScheduledAt.Equal(a.ScheduledAt) {
			return &scheduling.SlotConflictError{Slot: a.ScheduledAt}
		}
	}
	cp := *a
	s.rows[a.ID] = &cp
	return nil
}

func (s *stubStore) GetByID(_ context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *stubStore) FindByPatient(_ context.Context, patientID uuid.UUID) ([]scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scheduling.Appointment
	for _, a := range s.rows {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *stubStore) FindBySlot(_ context.Context, start time.Time) (*scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.rows {
		if a.Status != scheduling.StatusCancelled && a.ScheduledAt.Equal(start) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) FindInRange(_ context.Context, from, to time.Time) ([]scheduling.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scheduling.Appointment
	for _, a := range s.rows {
		if a.Status != scheduling.StatusCancelled && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *stubStore) UpdateSchedule(_ context.Context, id uuid.UUID, scheduledAt, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return scheduling.ErrAppointmentNotFound
	}
	a.ScheduledAt = scheduledAt
	a.UpdatedAt = updatedAt
	return nil
}

func (s *stubStore) UpdateStatus(_ context.Context, id uuid.UUID, status scheduling.Status, cancelReason *string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.rows[id]
	if !ok {
		return scheduling.ErrAppointmentNotFound
	}
	a.Status = status
	a.CancelReason = cancelReason
	a.UpdatedAt = updatedAt
	return nil
}

func newTestRouter(t *testing.T, staffSecret string) http.Handler {
	t.Helper()

	clock := calendar.FixedClock{Instant: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
	svc := scheduling.NewService(newStubStore(), availability.NewCalculator(clock), clock, nil, nil, nil)

	cfg := &Config{
		Logger:         logging.Default(),
		Appointments:   scheduling.NewHandler(svc, nil),
		MetricsHandler: promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
		StaffJWTSecret: staffSecret,
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterBookAppointment(t *testing.T) {
	router := newTestRouter(t, "")

	// Saturday 2025-03-08, 09:00 UTC.
	payload := scheduling.BookRequest{
		PatientID:   uuid.New(),
		ScheduledAt: time.Date(2025, time.March, 8, 9, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestRouterStaffRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, "test-secret")

	req := httptest.NewRequest(http.MethodPost, "/admin/appointments/"+uuid.NewString()+"/status", bytes.NewBufferString(`{"status":"confirmed"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterStaffRoutesAcceptToken(t *testing.T) {
	router := newTestRouter(t, "test-secret")

	req := httptest.NewRequest(http.MethodPost, "/admin/appointments/"+uuid.NewString()+"/status", bytes.NewBufferString(`{"status":"confirmed"}`))
	req.Header.Set("Authorization", "Bearer "+staffToken(t, "test-secret", "receptionist"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	// Past the auth layer the unknown appointment yields 404.
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNotFound, rr.Code, rr.Body.String())
	}
}

func TestRouterStaffRoutesRejectUnknownRole(t *testing.T) {
	router := newTestRouter(t, "test-secret")

	req := httptest.NewRequest(http.MethodPost, "/admin/appointments/"+uuid.NewString()+"/status", bytes.NewBufferString(`{"status":"confirmed"}`))
	req.Header.Set("Authorization", "Bearer "+staffToken(t, "test-secret", "patient"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rr.Code)
	}
}

func staffToken(t *testing.T, secret, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, httpmiddleware.StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestRouterStaffRoutesDisabledWithoutSecret(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/escalations", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
