package webutil

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
)

// AppHandler is the signature all route handlers use: write the success
// response, or return the error describing why none was written.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// responseTracker records whether the handler committed a status line.
// Inspecting headers is not enough: upstream middleware may set headers on
// responses that were never written.
type responseTracker struct {
	http.ResponseWriter
	wroteHeader bool
}

func (t *responseTracker) WriteHeader(status int) {
	t.wroteHeader = true
	t.ResponseWriter.WriteHeader(status)
}

func (t *responseTracker) Write(b []byte) (int, error) {
	t.wroteHeader = true // implicit 200 on first write
	return t.ResponseWriter.Write(b)
}

// MakeHandler adapts an AppHandler to http.HandlerFunc and maps returned
// errors onto the JSON error contract: an HTTPError keeps its status code
// and public message, sql.ErrNoRows becomes 404, and anything else becomes
// an opaque 500 with the cause logged server-side only.
func MakeHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracker := &responseTracker{ResponseWriter: w}
		err := handler(tracker, r)
		if err == nil {
			return
		}

		var statusCode int
		var publicMessage string

		var httpErr *HTTPError
		switch {
		case errors.As(err, &httpErr):
			statusCode = httpErr.Code
			publicMessage = httpErr.Message

			level := slog.LevelWarn
			if statusCode >= 500 {
				level = slog.LevelError
			}
			args := []any{
				"code", statusCode,
				"msg", publicMessage,
				"path", r.URL.Path,
				"method", r.Method,
			}
			if cause := errors.Unwrap(httpErr); cause != nil && cause.Error() != publicMessage {
				args = append(args, "cause", cause)
			}
			slog.Log(r.Context(), level, "Request failed", args...)

		case errors.Is(err, sql.ErrNoRows):
			statusCode = http.StatusNotFound
			publicMessage = "Resource not found"
			slog.Info("Resource not found", "path", r.URL.Path, "method", r.Method, "error", err)

		default:
			statusCode = http.StatusInternalServerError
			publicMessage = "Internal Server Error"
			slog.Error("Unhandled internal error", "path", r.URL.Path, "method", r.Method, "error", err)
		}

		if tracker.wroteHeader {
			// The handler already committed a response; all that can be
			// done with the error is log it.
			slog.Warn("Handler returned error after writing a response",
				"path", r.URL.Path,
				"method", r.Method,
				"error", err,
			)
			return
		}

		RespondWithJSON(tracker, statusCode, map[string]string{"error": publicMessage})
	}
}
