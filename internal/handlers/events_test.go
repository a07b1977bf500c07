package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juba-labs/hornwatch/internal/models"
)

func eventsRouter(events *models.EventStore) http.Handler {
	h := &EventsHandler{Events: events}
	r := chi.NewRouter()
	r.Get("/api/events/{hash}", h.GetByHash)
	return r
}

func TestGetEventByHash(t *testing.T) {
	events, _, _ := testStores(t)
	seedEvent(t, events, "deadbeef01")
	router := eventsRouter(events)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/deadbeef01", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var ev models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.Equal(t, "deadbeef01", ev.ClusterHash)
	assert.Equal(t, "Sudan", ev.Country)
	assert.Equal(t, 4, ev.Severity)
	assert.Equal(t, []string{"North Darfur"}, ev.Regions)
}

func TestGetEventByHashNotFound(t *testing.T) {
	events, _, _ := testStores(t)
	router := eventsRouter(events)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"event not found"}`, rec.Body.String())
}
