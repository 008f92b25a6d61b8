// Package handler turns HTTP requests into service calls and service
// results into JSON.
package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so the API has
// one success shape per endpoint and exactly one error shape:
//
//	{"error": "not_found", "message": "mail not found with id abc123"}
//
// The frontend can always read .error for branching and .message for
// display, whatever the status code.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/starlit/internal/apperror"
	"github.com/sakif/starlit/internal/auth"
)

// maxBodyBytes caps request bodies. Journal content is the largest field.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // safe to show to the user
}

// MessageResponse acknowledges an action that has nothing else to return.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body; once Encode writes,
// later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The status is already on the wire; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status.
//
// ERROR MAPPING:
//
//	apperror.ErrValidation   → 400
//	apperror.ErrUnauthorized → 401
//	apperror.ErrForbidden    → 403
//	apperror.ErrNotFound     → 404
//	apperror.ErrConflict     → 409
//	anything else            → 500, with a generic message
//
// Services wrap infrastructure errors with %w; errors.As still finds an
// *AppError anywhere in the chain.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// NEVER expose internal error details: they can carry SQL or file paths.
	// The service layer has already logged the cause.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a size-limited JSON body into dst. A malformed body is
// a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperror.ValidationFailed("body", "request body is too large")
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is empty")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body")
		}
	}
	return nil
}

// currentUser returns the authenticated user's id. Routes behind
// auth.RequireAuth always have one; a miss means a routing bug, and the
// caller gets a 401 rather than a panic.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
	}
	return id, ok
}
