package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIServer_Routes(t *testing.T) {
	s := NewAPIServer(NewAPIServerOptions{Port: 0})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{
			name:     "health check",
			method:   http.MethodGet,
			path:     "/healthz",
			wantCode: http.StatusOK,
		},
		{
			name:     "hello route",
			method:   http.MethodGet,
			path:     "/api/",
			wantCode: http.StatusOK,
		},
		{
			name:     "preflight",
			method:   http.MethodOptions,
			path:     "/api/",
			wantCode: http.StatusNoContent,
		},
		{
			name:     "no static dir configured",
			method:   http.MethodGet,
			path:     "/index.html",
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			s.server.Handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
