package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalSentinel/internal/model"
)

type fakeStatus struct{ running bool }

func (f fakeStatus) Status(context.Context) model.SchedulerStatus {
	return model.SchedulerStatus{
		Running:          f.running,
		SubscribersCount: 2,
		Symbols:          []string{"BTCUSDT"},
		UpdateInterval:   50 * time.Second,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := New(":0", fakeStatus{running: true}, nil)
	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status    string `json:"status"`
		Scheduler struct {
			Running     bool     `json:"is_running"`
			Subscribers int      `json:"subscribers_count"`
			Symbols     []string `json:"symbols"`
		} `json:"scheduler"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.Scheduler.Running)
	assert.Equal(t, 2, body.Scheduler.Subscribers)
	assert.Equal(t, []string{"BTCUSDT"}, body.Scheduler.Symbols)
}

func TestHealth_Stopped(t *testing.T) {
	rec := get(t, New(":0", fakeStatus{}, nil).Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestStatusAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("signalsentinel_subscribers 2\n"))
	})
	s := New(":0", fakeStatus{running: true}, metrics)

	rec := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_running":true`)

	rec = get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "signalsentinel_subscribers 2")

	assert.Equal(t, http.StatusNotFound, get(t, New(":0", fakeStatus{}, nil).Handler(), "/metrics").Code)
}
