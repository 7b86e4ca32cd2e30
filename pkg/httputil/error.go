package httputil

import (
	"errors"
	"net/http"

	"github.com/rx3lixir/bookclub/pkg/apperr"
)

// HTTPError is what RespondError writes. Domain errors are converted on the way out.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Cause   error
	Details any
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// BadRequest rejects malformed input. One detail value is sent as is,
// several as a list.
func BadRequest(msg string, details ...any) error {
	e := &HTTPError{Status: http.StatusBadRequest, Message: msg}
	switch len(details) {
	case 0:
	case 1:
		e.Details = details[0]
	default:
		e.Details = details
	}
	return e
}

func Unauthorized(msg string) error {
	return &HTTPError{Status: http.StatusUnauthorized, Message: msg}
}

// FromDomain converts a domain error into its HTTP shape
func FromDomain(err *apperr.Error) *HTTPError {
	return &HTTPError{
		Status:  kindStatus[err.Kind],
		Code:    err.Code,
		Message: err.Message,
		Cause:   err,
	}
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindInvalid:      http.StatusBadRequest,
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindConflict:     http.StatusConflict,
	apperr.KindForbidden:    http.StatusForbidden,
	apperr.KindUnauthorized: http.StatusUnauthorized,
}

// toHTTPError picks the response shape for any handler error. Unknown
// errors become a 500 that hides the cause.
func toHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if appErr, ok := apperr.As(err); ok {
		if converted := FromDomain(appErr); converted.Status != 0 {
			return converted
		}
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Message: "Internal Server Error",
		Cause:   err,
	}
}
