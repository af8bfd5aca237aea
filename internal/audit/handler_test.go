package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerListEvents(t *testing.T) {
	svc, mock := newTestService(t)
	handler := NewHandler(svc, nil).Routes()
	appointmentID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM audit_events").
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "appointment_id", "actor", "details", "created_at"}).
			AddRow(uuid.New(), "appointment.book", appointmentID, "system", []byte(`{"patient_id":"x"}`), time.Now().UTC()))

	req := httptest.NewRequest(http.MethodGet, "/?appointment_id="+appointmentID.String(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []Event `json:"events"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "appointment.book", resp.Events[0].Action)
	assert.Equal(t, appointmentID, resp.Events[0].AppointmentID)
}

func TestHandlerListEventsBadFilters(t *testing.T) {
	svc, _ := newTestService(t)
	handler := NewHandler(svc, nil).Routes()

	for _, path := range []string{
		"/?appointment_id=not-a-uuid",
		"/?start=yesterday",
		"/?end=2025-13-99",
		"/?limit=-5",
		"/?offset=x",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
	}
}

func TestHandlerListEventsEmpty(t *testing.T) {
	svc, mock := newTestService(t)
	handler := NewHandler(svc, nil).Routes()

	mock.ExpectQuery("SELECT (.+) FROM audit_events").
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "appointment_id", "actor", "details", "created_at"}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}
