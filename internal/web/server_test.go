package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/database/mock"
	"github.com/kozaktomas/facewatch/internal/logging"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/pipeline"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/kozaktomas/facewatch/internal/watchlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stoppedSession struct{}

func (stoppedSession) Start() (pipeline.State, error) {
	return pipeline.StateRunning, nil
}

func (stoppedSession) Stop(ctx context.Context) pipeline.State {
	return pipeline.StateStopped
}

func (stoppedSession) Status() pipeline.Status {
	return pipeline.Status{State: pipeline.StateStopped}
}

func (stoppedSession) StreamFrames(ctx context.Context) (<-chan []byte, error) {
	return nil, pipeline.ErrNotRunning
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	m, err := metrics.New()
	require.NoError(t, err)

	cfg := &config.Config{Web: config.WebConfig{Host: "127.0.0.1", Port: 0}}
	return NewServer(cfg, Dependencies{
		Session:   stoppedSession{},
		Watchlist: watchlist.NewStore(nil, nil, watchlist.Options{}),
		Events:    mock.NewMockEventRepository(),
		Feed:      pipeline.NewEventFeed(),
		Artifacts: files,
		Metrics:   m.Handler(),
	}, logging.Discard())
}

func TestServer_Routes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		method   string
		path     string
		expected int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/session", http.StatusOK},
		{http.MethodPost, "/api/v1/session/start", http.StatusOK},
		{http.MethodPost, "/api/v1/session/stop", http.StatusOK},
		{http.MethodGet, "/api/v1/session/stream", http.StatusConflict},
		{http.MethodGet, "/api/v1/events", http.StatusOK},
		{http.MethodGet, "/api/v1/watchlist", http.StatusOK},
		{http.MethodGet, "/api/v1/artifacts/detections/missing.jpg", http.StatusNotFound},
		{http.MethodGet, "/api/v1/config", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/photos", http.StatusNotFound},
		{http.MethodGet, "/api/v1/session/start", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			server.Router().ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.expected, recorder.Code, recorder.Body.String())
		})
	}
}

func TestServer_MetricsExposition(t *testing.T) {
	server := newTestServer(t)

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, strings.Contains(recorder.Body.String(), "go_goroutines"))
}

func TestServer_SecurityHeaders(t *testing.T) {
	server := newTestServer(t)

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
}
