package ejbca

import (
	"errors"
	"fmt"
)

// errDetailLimit bounds the length of remote error detail kept in logs and
// error values. SOAP fault bodies can carry whole stack traces.
const errDetailLimit = 200

// ErrNotInitialized is returned when the client could not establish a
// session with the remote service. Callers should treat it as a temporary
// condition and map it to a "service unavailable" response.
var ErrNotInitialized = errors.New("ejbca client not initialized")

// UnknownOperationError is returned when an operation name is not present
// in the discovered operation catalog. No network call is made.
type UnknownOperationError struct {
	Operation string
}

// Error implements the error interface.
func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("operation %q not found in catalog", e.Operation)
}

// RemoteFault is an application-level fault signalled by the remote service
// despite a successful transport exchange. The message is the remote fault
// text, truncated; classification of fault subtypes is left to callers.
type RemoteFault struct {
	Operation string
	Code      string
	Message   string
}

// Error implements the error interface.
func (e *RemoteFault) Error() string {
	return fmt.Sprintf("%s: remote fault: %s", e.Operation, e.Message)
}

// TransportError wraps a network, TLS or timeout failure for a single
// operation call.
type TransportError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, truncate(e.Err.Error(), errDetailLimit))
}

// Unwrap exposes the nested error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnknownOperation returns true when err indicates an operation name
// missing from the catalog.
func IsUnknownOperation(err error) bool {
	var unknownErr *UnknownOperationError
	return errors.As(err, &unknownErr)
}

// IsRemoteFault returns true when err carries a remote application fault,
// extracting the fault when it does.
func IsRemoteFault(err error) (*RemoteFault, bool) {
	var fault *RemoteFault
	if errors.As(err, &fault) {
		return fault, true
	}
	return nil, false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
