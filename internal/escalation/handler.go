package escalation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// Handler exposes the escalation queue to clinic staff.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the escalation HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("escalation: service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi router with the escalation endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/resolve", h.Resolve)
	return r
}

// CreateRequest is the body for opening an escalation.
type CreateRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Message   string    `json:"message"`
	Reason    string    `json:"reason"`
}

// Create opens a new escalation.
// POST /escalations
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil {
		http.Error(w, `{"error": "patient_id required"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error": "message required"}`, http.StatusBadRequest)
		return
	}

	esc, err := h.service.Create(r.Context(), req.PatientID, req.Message, req.Reason)
	if err != nil {
		h.logger.Error("failed to create escalation", "patient_id", req.PatientID, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, esc)
}

// List returns escalations, optionally filtered by resolution state.
// GET /escalations?resolved=false&limit=50&offset=0
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, `{"error": "resolved must be true or false"}`, http.StatusBadRequest)
			return
		}
		filter.Resolved = &resolved
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, `{"error": "limit must be a non-negative integer"}`, http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			http.Error(w, `{"error": "offset must be a non-negative integer"}`, http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	escalations, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list escalations", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if escalations == nil {
		escalations = []*Escalation{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"escalations": escalations})
}

// Get returns a single escalation.
// GET /escalations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error": "invalid escalation id"}`, http.StatusBadRequest)
		return
	}
	esc, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrEscalationNotFound) {
			http.Error(w, `{"error": "escalation not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get escalation", "id", id, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, esc)
}

// ResolveRequest is the body for resolving an escalation.
type ResolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Notes      string `json:"notes,omitempty"`
}

// Resolve marks an escalation handled. Resolution is single shot; a second
// attempt returns 409.
// POST /escalations/{id}/resolve
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error": "invalid escalation id"}`, http.StatusBadRequest)
		return
	}
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.ResolvedBy == "" {
		http.Error(w, `{"error": "resolved_by required"}`, http.StatusBadRequest)
		return
	}

	if err := h.service.Resolve(r.Context(), id, req.ResolvedBy, req.Notes); err != nil {
		switch {
		case errors.Is(err, ErrEscalationNotFound):
			http.Error(w, `{"error": "escalation not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrAlreadyResolved):
			http.Error(w, `{"error": "escalation already resolved"}`, http.StatusConflict)
		default:
			h.logger.Error("failed to resolve escalation", "id", id, "error", err)
			http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		}
		return
	}

	esc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load resolved escalation", "id", id, "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, esc)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
