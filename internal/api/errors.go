package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/djpki/ejbca-rest-gateway/internal/ejbca"
)

// apiError is a JSON error response with a fixed HTTP status.
type apiError struct {
	status int
	desc   string
}

func (e *apiError) Error() string {
	return e.desc
}

// Write sends the error to the client.
func (e *apiError) Write(w http.ResponseWriter) {
	writeJSON(w, e.status, map[string]string{"error": e.desc})
}

func errInvalidRequest(format string, args ...interface{}) *apiError {
	return &apiError{status: http.StatusBadRequest, desc: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...interface{}) *apiError {
	return &apiError{status: http.StatusNotFound, desc: fmt.Sprintf(format, args...)}
}

// errorFrom maps a dispatch error to its HTTP representation. Remote fault
// subtypes are classified by message text; the remote reports application
// conditions only through fault strings.
func errorFrom(err error) *apiError {
	var known *apiError
	if errors.As(err, &known) {
		return known
	}

	if errors.Is(err, ejbca.ErrNotInitialized) {
		return &apiError{
			status: http.StatusServiceUnavailable,
			desc:   "certificate authority connection is not available",
		}
	}

	if ejbca.IsUnknownOperation(err) {
		return &apiError{status: http.StatusBadRequest, desc: err.Error()}
	}

	if fault, ok := ejbca.IsRemoteFault(err); ok {
		msg := strings.ToLower(fault.Message)
		switch {
		case strings.Contains(msg, "already exists"):
			return &apiError{status: http.StatusConflict, desc: fault.Message}
		case strings.Contains(msg, "not found"), strings.Contains(msg, "does not exist"),
			strings.Contains(msg, "could not find"):
			return &apiError{status: http.StatusNotFound, desc: fault.Message}
		case strings.Contains(msg, "not authorized"), strings.Contains(msg, "authorization denied"):
			return &apiError{status: http.StatusForbidden, desc: fault.Message}
		default:
			return &apiError{status: http.StatusBadGateway, desc: fault.Message}
		}
	}

	var transportErr *ejbca.TransportError
	if errors.As(err, &transportErr) {
		return &apiError{
			status: http.StatusBadGateway,
			desc:   "certificate authority request failed",
		}
	}

	return &apiError{status: http.StatusInternalServerError, desc: "internal error"}
}
