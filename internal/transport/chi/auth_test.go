package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authProbe(tokens []string, header string) int {
	handler := BearerAuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code
}

func TestBearerAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		header string
		want   int
	}{
		{"disabled without tokens", nil, "", http.StatusNoContent},
		{"empty tokens are ignored", []string{""}, "", http.StatusNoContent},
		{"missing header", []string{"secret"}, "", http.StatusUnauthorized},
		{"wrong scheme", []string{"secret"}, "Basic secret", http.StatusUnauthorized},
		{"invalid token", []string{"secret"}, "Bearer nope", http.StatusUnauthorized},
		{"valid token", []string{"secret"}, "Bearer secret", http.StatusNoContent},
		{"any of several tokens", []string{"a", "b"}, "Bearer b", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := authProbe(tt.tokens, tt.header); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}
