package remote

import (
	"errors"
	"net/http"
	"strconv"

	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/pkg/httputil"
)

// StatusError is returned for every non-2xx answer of the store.
type StatusError struct {
	Code    int
	Message string
	Details string
	// sentinel the status maps to, nil when there is none
	Err error
}

func (e *StatusError) Error() string {
	msg := "remote store answered " + strconv.Itoa(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// statusMapping overrides the default status -> sentinel table for a single call.
type statusMapping map[int]error

var defaultMapping = statusMapping{
	http.StatusBadRequest:   errorvalues.ErrInvalidSession,
	http.StatusUnauthorized: errorvalues.ErrUnauthenticated,
	http.StatusForbidden:    errorvalues.ErrWrongOwner,
	http.StatusNotFound:     errorvalues.ErrSessionNotFound,
	http.StatusConflict:     errorvalues.ErrUserExists,
}

func newStatusError(resp *http.Response, override statusMapping) *StatusError {
	body := httputil.ReadErrorResponse(resp)
	sentinel, ok := override[resp.StatusCode]
	if !ok {
		sentinel = defaultMapping[resp.StatusCode]
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		sentinel = errorvalues.ErrRemoteUnavailable
	}
	return &StatusError{
		Code:    resp.StatusCode,
		Message: body.Message,
		Details: body.Details,
		Err:     sentinel,
	}
}

// IsUnavailable reports whether err means the store could not be reached or failed on its side.
func IsUnavailable(err error) bool {
	return errors.Is(err, errorvalues.ErrRemoteUnavailable)
}
