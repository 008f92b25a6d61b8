package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// echoUserID writes the authenticated user ID, or "anonymous".
func echoUserID(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		id = "anonymous"
	}
	w.Write([]byte(id))
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	valid, _ := ts.Generate("user-42")
	expired, _ := ts.GenerateWithDuration("user-42", -time.Minute)

	tests := []struct {
		name     string
		header   string
		cookie   string
		wantCode int
		wantBody string
	}{
		{"bearer header", "Bearer " + valid, "", http.StatusOK, "user-42"},
		{"cookie", "", valid, http.StatusOK, "user-42"},
		{"header wins over cookie", "Bearer " + valid, "garbage", http.StatusOK, "user-42"},
		{"no credentials", "", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, "", http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer ", "", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized, ""},
	}

	h := RequireAuth(ts)(http.HandlerFunc(echoUserID))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantCode == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := UserIDFromContext(req.Context()); ok {
		t.Error("UserIDFromContext() ok on a bare context")
	}
	if _, ok := UserIDFromContext(WithUserID(req.Context(), "")); ok {
		t.Error("UserIDFromContext() ok for an empty id")
	}
}
