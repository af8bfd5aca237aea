package escalation

import (
	"bytes"
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

func newHandlerFixture(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	svc, mock := newTestService(t, &recordingEmail{})
	h := NewHandler(svc, nil)
	return h.Routes(), mock
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreate(t *testing.T) {
	handler, mock := newHandlerFixture(t)
	patientID := uuid.New()

	mock.ExpectExec("INSERT INTO escalations").
		WithArgs(sqlmock.AnyArg(), patientID, "preciso remarcar urgente", "low confidence", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := doJSON(t, handler, http.MethodPost, "/", CreateRequest{
		PatientID: patientID,
		Message:   "preciso remarcar urgente",
		Reason:    "low confidence",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var esc Escalation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&esc))
	assert.Equal(t, patientID, esc.PatientID)
	assert.False(t, esc.Resolved())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerCreateValidation(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	rec := doJSON(t, handler, http.MethodPost, "/", CreateRequest{Message: "sem paciente"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/", CreateRequest{PatientID: uuid.New()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestHandlerList(t *testing.T) {
	handler, mock := newHandlerFixture(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM escalations").
		WithArgs(defaultListLimit, 0).
		WillReturnRows(sqlmock.NewRows(escalationColumns()).
			AddRow(uuid.New(), uuid.New(), "Maria Souza", "msg", "human request", nil, nil, nil, now))

	rec := doJSON(t, handler, http.MethodGet, "/?resolved=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Escalations []Escalation `json:"escalations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Escalations, 1)
	assert.Equal(t, "Maria Souza", resp.Escalations[0].PatientName)
}

func TestHandlerListBadQuery(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, handler, http.MethodGet, "/?resolved=maybe", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, handler, http.MethodGet, "/?limit=-1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, handler, http.MethodGet, "/?offset=abc", nil).Code)
}

func TestHandlerGetNotFound(t *testing.T) {
	handler, mock := newHandlerFixture(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM escalations").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(escalationColumns()))

	rec := doJSON(t, handler, http.MethodGet, "/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerResolve(t *testing.T) {
	handler, mock := newHandlerFixture(t)
	id := uuid.New()
	resolvedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE escalations").
		WithArgs(sqlmock.AnyArg(), "dr.otto", "paciente atendido", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM escalations").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(escalationColumns()).
			AddRow(id, uuid.New(), "Maria Souza", "msg", "reason", "paciente atendido", resolvedAt, "dr.otto", resolvedAt.Add(-time.Hour)))

	rec := doJSON(t, handler, http.MethodPost, "/"+id.String()+"/resolve", ResolveRequest{
		ResolvedBy: "dr.otto",
		Notes:      "paciente atendido",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var esc Escalation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&esc))
	assert.True(t, esc.Resolved())
	assert.Equal(t, "dr.otto", esc.ResolvedBy)
}

func TestHandlerResolveConflict(t *testing.T) {
	handler, mock := newHandlerFixture(t)
	id := uuid.New()
	resolvedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE escalations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM escalations").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(escalationColumns()).
			AddRow(id, uuid.New(), "Maria Souza", "msg", "reason", nil, resolvedAt, "dr.ana", resolvedAt.Add(-time.Hour)))

	rec := doJSON(t, handler, http.MethodPost, "/"+id.String()+"/resolve", ResolveRequest{ResolvedBy: "dr.otto"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerResolveRequiresResolvedBy(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	rec := doJSON(t, handler, http.MethodPost, "/"+uuid.NewString()+"/resolve", ResolveRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
