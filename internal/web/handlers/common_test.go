package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/facewatch/internal/pipeline"
)

func TestRespondJSON_EncodesData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, map[string]any{"name": "alice", "count": 2})

	assertStatusCode(t, recorder, http.StatusCreated)
	assertContentType(t, recorder, "application/json")

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["name"] != "alice" {
		t.Errorf("expected name 'alice', got '%v'", result["name"])
	}
	if result["count"] != float64(2) { // JSON numbers are float64
		t.Errorf("expected count 2, got %v", result["count"])
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusNoContent, nil)

	assertStatusCode(t, recorder, http.StatusNoContent)
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"malformed", fmt.Errorf("decode: %w", pipeline.ErrMalformedInput), http.StatusBadRequest},
		{"draining", pipeline.ErrSessionDraining, http.StatusConflict},
		{"not running", pipeline.ErrNotRunning, http.StatusConflict},
		{"other", errors.New("database down"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusForError(tc.err); got != tc.expected {
				t.Errorf("expected status %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected int
		wantErr  bool
	}{
		{"missing uses default", "", 100, false},
		{"valid", "?limit=5", 5, false},
		{"negative kept", "?limit=-1", -1, false},
		{"malformed", "?limit=abc", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/events"+tc.query, nil)
			got, err := queryInt(req, "limit", 100)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("alice\r\nforged entry"); got != "aliceforged entry" {
		t.Errorf("expected newlines stripped, got %q", got)
	}
}

func TestHealthCheck_ReturnsStatusOk(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
