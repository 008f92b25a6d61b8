package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"ok", http.StatusOK, "INFO"},
		{"client error", http.StatusUnauthorized, "WARN"},
		{"server error", http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			h := chimiddleware.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("hello"))
			})))

			req := httptest.NewRequest(http.MethodGet, "/api/mails", nil)
			req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
			h.ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.level, line["level"])
			assert.Equal(t, "req-42", line["requestID"])
			assert.Equal(t, "/api/mails", line["path"])
			assert.EqualValues(t, tt.status, line["status"])
			assert.EqualValues(t, 5, line["bytes"])
		})
	}
}

func TestLogger_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, http.StatusOK, line["status"])
}
