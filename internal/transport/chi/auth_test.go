package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	for _, keys := range [][]string{nil, {"", ""}} {
		handler := BearerAuthMiddleware(keys)(okHandler())

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/sessions", http.NoBody))

		if rr.Code != http.StatusOK {
			t.Errorf("keys %q: got %d, want %d", keys, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"key1", "key2"})(okHandler())

	tests := []struct {
		name    string
		path    string
		header  string
		want    int
		wantMsg string
	}{
		{"missing header", "/sessions", "", http.StatusUnauthorized, "missing authorization header"},
		{"basic scheme", "/sessions", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "authorization header must use Bearer scheme"},
		{"no token", "/sessions", "Bearer", http.StatusUnauthorized, "authorization header must use Bearer scheme"},
		{"blank token", "/sessions", "Bearer   ", http.StatusUnauthorized, "empty bearer token"},
		{"wrong key", "/sessions", "Bearer wrong-key", http.StatusUnauthorized, "invalid api key"},
		{"prefix of a key", "/sessions", "Bearer key", http.StatusUnauthorized, "invalid api key"},
		{"first key", "/sessions", "Bearer key1", http.StatusOK, ""},
		{"second key", "/categories", "Bearer key2", http.StatusOK, ""},
		{"lowercase scheme", "/sessions", "bearer key1", http.StatusOK, ""},
		{"health exempt", "/health", "", http.StatusOK, ""},
		{"metrics exempt", "/metrics", "", http.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("got %d, want %d", rr.Code, tc.want)
			}
			if tc.want != http.StatusUnauthorized {
				return
			}
			if got := rr.Header().Get("WWW-Authenticate"); got != bearerChallenge {
				t.Errorf("WWW-Authenticate = %q", got)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != CodeUnauthorized || errResp.Message != tc.wantMsg {
				t.Errorf("error = %s/%q, want %s/%q", errResp.Code, errResp.Message, CodeUnauthorized, tc.wantMsg)
			}
		})
	}
}
