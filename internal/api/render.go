package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func renderError(w http.ResponseWriter, status int, message string) {
	renderJSON(w, status, errorResponse{Error: message})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, patterns.ErrNotVideo):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, patterns.ErrReferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoCandidate),
		errors.Is(err, session.ErrNoReferences),
		errors.Is(err, session.ErrAnalysisRunning),
		errors.Is(err, session.ErrNotRunning),
		errors.Is(err, session.ErrNoResult),
		errors.Is(err, session.ErrUnsupported),
		errors.Is(err, patterns.ErrKeywordCapacity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (app *App) renderFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		app.logger().Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	renderError(w, status, message)
}
