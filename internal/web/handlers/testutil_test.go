package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/pipeline"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// fakeSession is a scripted SessionController
type fakeSession struct {
	mu       sync.Mutex
	state    pipeline.State
	startErr error
	starts   int
	stops    int
	frames   chan []byte
}

func newFakeSession() *fakeSession {
	return &fakeSession{state: pipeline.StateStopped}
}

func (f *fakeSession) Start() (pipeline.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.state, f.startErr
	}
	f.state = pipeline.StateRunning
	return f.state, nil
}

func (f *fakeSession) Stop(ctx context.Context) pipeline.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = pipeline.StateStopped
	return f.state
}

func (f *fakeSession) Status() pipeline.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return pipeline.Status{State: f.state, Frames: 42}
}

func (f *fakeSession) StreamFrames(ctx context.Context) (<-chan []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != pipeline.StateRunning {
		return nil, pipeline.ErrNotRunning
	}
	return f.frames, nil
}

// fakeScanner records submissions and returns a fixed outcome or error
type fakeScanner struct {
	mu       sync.Mutex
	err      error
	data     []byte
	channel  database.Channel
	dataURLs []string
}

func (f *fakeScanner) outcome(channel database.Channel) *pipeline.Outcome {
	return &pipeline.Outcome{
		Event:   database.MatchEvent{ID: 1, Label: "alice", Confidence: 0.8, Channel: channel, Watchlisted: true},
		Faces:   1,
		Matched: true,
		Message: "Match detected: alice (match 80%)",
	}
}

func (f *fakeScanner) Process(ctx context.Context, data []byte, channel database.Channel) (*pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.channel = data, channel
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome(channel), nil
}

func (f *fakeScanner) SubmitCapture(ctx context.Context, dataURL string) (*pipeline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataURLs = append(f.dataURLs, dataURL)
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome(database.ChannelSingleCapture), nil
}

// fakeDetector returns one face whose embedding is taken from the image bytes
type fakeDetector struct{}

func (fakeDetector) DetectFaces(ctx context.Context, data []byte) ([]facematch.Face, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return []facematch.Face{{Embedding: []float32{float32(data[0]), 0}}}, nil
}
