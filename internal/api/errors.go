package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dgallion1/markview/internal/annotation"
	"github.com/dgallion1/markview/internal/session"
	"github.com/dgallion1/markview/internal/viewer"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, annotation.ErrNothingToExport):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoDocument),
		errors.Is(err, viewer.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnsupportedFile),
		errors.Is(err, session.ErrInvalidSetting),
		errors.Is(err, annotation.ErrRead),
		errors.Is(err, annotation.ErrFormat),
		errors.Is(err, annotation.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrDrawUnsupported),
		errors.Is(err, viewer.ErrEditorIdle),
		errors.Is(err, viewer.ErrPageRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError reports err to the client. Server-side failures are logged.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, annotation.ErrNothingToExport):
		msg = "no annotations to export"
	case code >= http.StatusInternalServerError:
		log.Error("request failed", "status", code, "error", err)
	}

	var insertErr *annotation.InsertError
	if errors.As(err, &insertErr) {
		writeJSON(w, code, map[string]any{"error": msg, "imported": insertErr.Added})
		return
	}
	jsonError(w, msg, code)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

var errMissingValue = errors.New(`"value" must be a string or number`)
