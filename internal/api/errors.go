package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/beekhof/tripcal/internal/event"
	"github.com/beekhof/tripcal/internal/ics"
)

// errBadRequest marks input rejected before reaching the store, such as a
// malformed body or query parameter.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

// writeError maps err to a status code and writes the JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		status, code = http.StatusRequestEntityTooLarge, "too_large"
		err = fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, event.ErrValidation):
		status, code = http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, event.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ics.ErrNoEvents):
		status, code = http.StatusBadRequest, "no_events"
	case errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, event.ErrPersist):
		code = "persist_error"
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: unwrapMessage(err)}})
}

// unwrapMessage drops the sentinel prefix from a wrapped error.
// e.g. "validation error: title is required" → "title is required"
func unwrapMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{event.ErrValidation, errBadRequest} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}
