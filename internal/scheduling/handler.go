package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ottoferraz/clinic-scheduler/internal/availability"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// Handler exposes the appointment lifecycle over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the appointment HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("scheduling: service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi router with the appointment endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Book)
	r.Get("/", h.ListForPatient)
	r.Get("/availability", h.Availability)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/reschedule", h.Reschedule)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/status", h.UpdateStatus)
	return r
}

// Book creates a new appointment.
// POST /appointments
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil {
		http.Error(w, `{"error": "patient_id required"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.service.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

// Get returns a single appointment by id.
// GET /appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// ListForPatient returns all appointments for a patient.
// GET /appointments?patient_id={uuid}
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
	if err != nil {
		http.Error(w, `{"error": "patient_id query parameter required"}`, http.StatusBadRequest)
		return
	}
	appts, err := h.service.ListForPatient(r.Context(), patientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// Availability returns the open slots for a date.
// GET /appointments/availability?date=2026-03-07
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		http.Error(w, `{"error": "date query parameter required"}`, http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		http.Error(w, `{"error": "date must be YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	slots, err := h.service.Availability(r.Context(), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"date":  raw,
		"slots": slots,
	})
}

// Reschedule moves an appointment to a new slot.
// POST /appointments/{id}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	appt, err := h.service.Reschedule(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// CancelRequest is the body for cancelling an appointment.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Cancel cancels an appointment.
// POST /appointments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
			return
		}
	}
	appt, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

// UpdateStatusRequest is the body for a staff status change.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// UpdateStatus applies a staff-driven status transition such as
// confirmed, completed or no_show.
// POST /appointments/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	appt, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors to status codes. Anything unrecognized
// is a 500 and gets logged.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *ValidationError
		conflict   *SlotConflictError
		transition *InvalidTransitionError
		window     *CancellationWindowError
	)
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "appointment not found"})
	case errors.As(err, &validation):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": validation.Reason})
	case errors.As(err, &conflict):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &transition):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &window):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("appointment request failed", "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
