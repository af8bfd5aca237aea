package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

// Handler exposes the audit trail to clinic staff, read only.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the audit HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("audit: service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi router with the audit endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListEvents)
	return r
}

// ListEvents returns audit events matching the query filters.
// GET /audit?appointment_id=&action=&start=&end=&limit=&offset=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	q := r.URL.Query()

	if raw := q.Get("appointment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, `{"error": "invalid appointment_id"}`, http.StatusBadRequest)
			return
		}
		filter.AppointmentID = id
	}
	filter.Action = q.Get("action")
	if raw := q.Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error": "start must be RFC 3339"}`, http.StatusBadRequest)
			return
		}
		filter.StartTime = start
	}
	if raw := q.Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error": "end must be RFC 3339"}`, http.StatusBadRequest)
			return
		}
		filter.EndTime = end
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, `{"error": "limit must be a non-negative integer"}`, http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			http.Error(w, `{"error": "offset must be a non-negative integer"}`, http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	events, err := h.service.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "error", err)
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"events": events}); err != nil {
		h.logger.Error("failed to encode audit events", "error", err)
	}
}
