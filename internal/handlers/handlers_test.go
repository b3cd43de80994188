package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/driving-alerts/internal/models"
	"github.com/PratikDhanave/driving-alerts/internal/store"
)

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() { c.n.Add(1) }

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) InsertEvent(context.Context, models.DrivingEvent) (string, error) {
	return "", errors.New("connection refused")
}

func (brokenStore) CountUnsafeInWindow(context.Context, string, time.Time, time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

func (brokenStore) InsertAlert(context.Context, models.Alert) (string, error) {
	return "", errors.New("connection refused")
}

func (brokenStore) ExistsInWindow(context.Context, string, time.Time, time.Time) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenStore) FindAlertByID(context.Context, string) (*models.Alert, error) {
	return nil, errors.New("connection refused")
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRouter(events store.EventStore, alerts store.AlertStore, trig EvaluationTrigger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterEventRoutes(r, events, trig, func() time.Time { return fixedNow })
	RegisterAlertRoutes(r, alerts)
	return r
}

func postEvent(t *testing.T, r http.Handler, idemKey string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/event", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostEvent_StoresAndTriggers(t *testing.T) {
	st := store.NewMemoryStore()
	trig := &countingTrigger{}
	r := newTestRouter(st, st, trig)

	w := postEvent(t, r, "", map[string]any{
		"timestamp":     "2024-03-01T11:58:00Z",
		"isSafeDriving": false,
		"vehicleID":     "veh-1",
		"locationType":  "commercial",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.EventIngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Driving event added successfully", resp.Message)
	assert.NotEmpty(t, resp.EventID)
	assert.Equal(t, int32(1), trig.n.Load())

	n, err := st.CountUnsafeInWindow(context.Background(), "commercial", fixedNow.Add(-5*time.Minute), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPostEvent_DefaultsTimestampToNow(t *testing.T) {
	st := store.NewMemoryStore()
	r := newTestRouter(st, st, &countingTrigger{})

	w := postEvent(t, r, "", map[string]any{
		"isSafeDriving": false,
		"locationType":  "highway",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	n, err := st.CountUnsafeInWindow(context.Background(), "highway", fixedNow, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPostEvent_StoresMicrosecondPrecision(t *testing.T) {
	st := store.NewMemoryStore()
	r := newTestRouter(st, st, &countingTrigger{})

	w := postEvent(t, r, "", map[string]any{
		"timestamp":     "2024-03-01T11:59:59.9999995Z",
		"isSafeDriving": false,
		"locationType":  "highway",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	end := time.Date(2024, 3, 1, 11, 59, 59, 999999000, time.UTC)
	n, err := st.CountUnsafeInWindow(context.Background(), "highway", end.Add(-5*time.Minute), end)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPostEvent_BadRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload any
	}{
		{"missing locationType", map[string]any{"isSafeDriving": false}},
		{"missing isSafeDriving", map[string]any{"locationType": "highway"}},
		{"empty locationType", map[string]any{"isSafeDriving": true, "locationType": ""}},
		{"bad timestamp", map[string]any{"isSafeDriving": false, "locationType": "highway", "timestamp": "yesterday"}},
		{"far future timestamp", map[string]any{"isSafeDriving": false, "locationType": "highway", "timestamp": "2608-09-20T11:34:33Z"}},
		{"far past timestamp", map[string]any{"isSafeDriving": false, "locationType": "highway", "timestamp": "1500-01-01T00:00:00Z"}},
		{"not an object", []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			trig := &countingTrigger{}
			r := newTestRouter(st, st, trig)

			w := postEvent(t, r, "", tt.payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, int32(0), trig.n.Load())
		})
	}
}

func TestPostEvent_DuplicateIsNotCountedOrTriggered(t *testing.T) {
	st := store.NewMemoryStore()
	trig := &countingTrigger{}
	r := newTestRouter(st, st, trig)

	payload := map[string]any{
		"timestamp":     "2024-03-01T11:59:00Z",
		"isSafeDriving": false,
		"locationType":  "residential",
	}
	first := postEvent(t, r, "evt-42", payload)
	second := postEvent(t, r, "evt-42", payload)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, int32(1), trig.n.Load())

	var resp models.EventIngestResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "evt-42", resp.EventID)

	n, err := st.CountUnsafeInWindow(context.Background(), "residential", fixedNow.Add(-5*time.Minute), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPostEvent_StoreFailureDoesNotTrigger(t *testing.T) {
	trig := &countingTrigger{}
	r := newTestRouter(brokenStore{}, brokenStore{}, trig)

	w := postEvent(t, r, "", map[string]any{"isSafeDriving": false, "locationType": "highway"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, w.Body.String())
	assert.Equal(t, int32(0), trig.n.Load())
}

func TestGetAlert(t *testing.T) {
	st := store.NewMemoryStore()
	id, err := st.InsertAlert(context.Background(), models.Alert{Timestamp: fixedNow, LocationType: "commercial"})
	require.NoError(t, err)

	r := newTestRouter(st, st, &countingTrigger{})

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var got models.Alert
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "commercial", got.LocationType)
		assert.True(t, fixedNow.Equal(got.Timestamp))
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts/does-not-exist", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Alert not found"}`, w.Body.String())
	})
}

func TestGetAlert_StoreFailure(t *testing.T) {
	r := newTestRouter(brokenStore{}, brokenStore{}, &countingTrigger{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts/a1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
