package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-ticketsync/internal/logger"
	"ms-ticketsync/internal/syncer/api"
)

type fakeEngine struct {
	ready     bool
	syncOK    bool
	triggered int
}

func (f *fakeEngine) Ready() bool { return f.ready }

func (f *fakeEngine) ForceSync() bool {
	f.triggered++
	return f.syncOK
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) api.Response {
	t.Helper()
	var body api.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHealthz(t *testing.T) {
	h := api.NewHandler(&fakeEngine{}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.True(t, body.Success)
	// Liveness is not readiness; the envelope still reports sync state.
	assert.False(t, body.Ready)
}

func TestReadyzBeforeFirstPass(t *testing.T) {
	h := api.NewHandler(&fakeEngine{ready: false}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeResponse(t, rec)
	assert.False(t, body.Success)
	assert.False(t, body.Ready)
}

func TestReadyzAfterFirstPass(t *testing.T) {
	h := api.NewHandler(&fakeEngine{ready: true}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResponse(t, rec).Ready)
}

func TestTriggerSyncStarted(t *testing.T) {
	engine := &fakeEngine{syncOK: true}
	h := api.NewHandler(engine, logger.NewNop())

	rec := httptest.NewRecorder()
	h.TriggerSync(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, engine.triggered)
}

func TestTriggerSyncBusy(t *testing.T) {
	engine := &fakeEngine{syncOK: false}
	h := api.NewHandler(engine, logger.NewNop())

	rec := httptest.NewRecorder()
	h.TriggerSync(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeResponse(t, rec)
	assert.Contains(t, body.Error, "already running")
}
