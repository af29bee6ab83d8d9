package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// okHandler is a trivial handler used to verify that allowed requests reach
// the downstream handler.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		apiKey        string
		header        string
		wantStatus    int
		wantChallenge string
	}{
		{"disabled, no header", "", "", http.StatusOK, ""},
		{"disabled, junk header", "", "Basic Zm9v", http.StatusOK, ""},
		{"missing header", "secret", "", http.StatusUnauthorized, `Bearer realm="showfinder"`},
		{"wrong token", "secret", "Bearer wrong-token", http.StatusUnauthorized, `Bearer realm="showfinder" error="invalid_token"`},
		{"token prefix only", "secret", "Bearer secre", http.StatusUnauthorized, `Bearer realm="showfinder" error="invalid_token"`},
		{"basic scheme", "secret", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, `Bearer realm="showfinder"`},
		{"correct token", "secret", "Bearer secret", http.StatusOK, ""},
		{"lowercase scheme", "secret", "bearer secret", http.StatusOK, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := authMiddleware(tc.apiKey, okHandler)
			req := httptest.NewRequest(http.MethodPost, "/api/askgpt", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != tc.wantChallenge {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tc.wantChallenge)
			}
			if tc.wantStatus == http.StatusUnauthorized && strings.Contains(w.Body.String(), "secret") {
				t.Error("response body must not echo the configured key")
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer mytoken", "mytoken"},
		{"bearer mytoken", "mytoken"},
		{"BEARER mytoken", "mytoken"},
		{"Bearer  spaced ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
		{"Bearer", ""},
		{"token only", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("header=%q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}
