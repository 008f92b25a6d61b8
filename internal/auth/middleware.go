package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is package-private so no other package can read or shadow
// the user ID stored in a request context.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the HttpOnly cookie login sets.
const CookieName = "token"

// RequireAuth validates the request's token and stores the user ID in the
// context. A missing or invalid token ends the chain with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a context carrying userID. Handler tests use it to
// skip token minting.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns ("", false) on an unauthenticated context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

var errNoToken = errors.New("auth: no token")

// extractUserID prefers the Authorization header, so API clients and the
// browser cookie can coexist.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || raw == "" {
			return "", errNoToken
		}
		return tokens.Validate(raw)
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", errNoToken
	}
	return tokens.Validate(cookie.Value)
}
