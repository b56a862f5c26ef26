package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS_AllowedOrigins(t *testing.T) {
	handler := CORS([]string{"https://console.example.com/"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"configured origin", "https://console.example.com", true},
		{"localhost with port", "http://localhost:5173", true},
		{"bare localhost", "https://localhost", true},
		{"loopback address", "http://127.0.0.1:8080", true},
		{"non-http scheme", "file://localhost", false},
		{"localhost lookalike", "http://localhost.evil.com", false},
		{"unknown origin", "https://evil.com", false},
		{"no origin", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, req)

			got := recorder.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Errorf("expected origin %q to be allowed, got %q", tc.origin, got)
			}
			if !tc.allowed && got != "" {
				t.Errorf("expected origin %q to be rejected, got %q", tc.origin, got)
			}
			if recorder.Code != http.StatusTeapot {
				t.Errorf("expected request to reach handler, got status %d", recorder.Code)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/scan", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", recorder.Code)
	}
	if called {
		t.Error("expected preflight to be answered by the middleware")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Methods"); got != corsMethods {
		t.Errorf("expected allowed methods %q, got %q", corsMethods, got)
	}
}

func TestCORS_PlainOptionsReachesHandler(t *testing.T) {
	called := false
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodOptions, "/api/v1/scan", nil))

	if !called {
		t.Error("expected OPTIONS without preflight headers to reach the handler")
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := recorder.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY, got %q", got)
	}
}
