package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/auth"
	drinksvc "github.com/farahSalotaibi/Coffee-Shop/cmd/coffeeapi/internal/services/drink"
)

const (
	messageNotFound         = "resource not found"
	messageUnprocessable    = "unprocessable"
	messageMethodNotAllowed = "method not allowed"
)

var (
	// ErrRouteNotFound is reported for paths no route matches.
	ErrRouteNotFound = errors.New("route not found")

	// ErrMethodNotAllowed is reported when the path exists but not for the method.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// errorEnvelope is the body of every failed response. Error always equals
// the HTTP status of the response.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// translateError maps a failure to its HTTP status and short message.
// Unrecognised errors are treated as persistence failures.
func translateError(err error) (int, string) {
	var authErr *auth.Error
	switch {
	case errors.As(err, &authErr):
		return authErr.StatusCode(), authErr.Code()
	case errors.Is(err, drinksvc.ErrNotFound),
		errors.Is(err, drinksvc.ErrInvalidInput),
		errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound, messageNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, messageMethodNotAllowed
	default:
		return http.StatusUnprocessableEntity, messageUnprocessable
	}
}

// WriteError is the error translator: it writes err as the JSON error
// envelope. Causes are logged, never sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := translateError(err)

	if status == http.StatusUnprocessableEntity {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		slog.DebugContext(r.Context(), "request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}

	writeJSON(w, status, errorEnvelope{
		Success: false,
		Error:   status,
		Message: message,
	})
}
