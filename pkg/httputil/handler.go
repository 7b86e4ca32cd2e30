package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// HandlerFunc is a handler that returns its failure instead of writing it
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// Handler adapts h to net/http, answering any returned error with RespondError
func Handler(h HandlerFunc, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			RespondError(w, r, err, log)
		}
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id"`
	Details   any    `json:"details,omitempty"`
}

// RespondError writes err as JSON. 5xx are logged as errors, the rest as
// warnings carrying the domain code.
func RespondError(w http.ResponseWriter, r *http.Request, err error, log *slog.Logger) {
	httpErr := toHTTPError(err)

	reqID := middleware.GetReqID(r.Context())
	if reqID == "" {
		reqID = "unknown"
	}

	level, msg := slog.LevelWarn, "client error"
	if httpErr.Status >= http.StatusInternalServerError {
		level, msg = slog.LevelError, "request failed"
	}
	log.Log(r.Context(), level, msg,
		"error", err,
		"code", httpErr.Code,
		"status", httpErr.Status,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", reqID,
	)

	_ = RespondJSON(w, httpErr.Status, errorBody{
		Error:     httpErr.Message,
		Code:      httpErr.Code,
		RequestID: reqID,
		Details:   httpErr.Details,
	})
}

func RespondJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
