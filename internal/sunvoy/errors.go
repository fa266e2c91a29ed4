package sunvoy

import (
	"errors"
	"fmt"
)

// ErrAuthentication is returned (wrapped) when the login protocol does not yield a
// session cookie.
var ErrAuthentication = errors.New("authentication failed")

// TransportError means an endpoint could not be reached or answered with a non-2xx status.
type TransportError struct {
	Endpoint string
	// Status is 0 when no response was received.
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s → %d", e.Endpoint, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ShapeMismatchError means an endpoint answered, but not with the JSON shape the
// resource requires.
type ShapeMismatchError struct {
	Endpoint string
	Reason   string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %s", e.Endpoint, e.Reason)
}

// ExtractionError means every HTML strategy came up empty for a target.
type ExtractionError struct {
	Target string
	Page   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract %s from %s", e.Target, e.Page)
}

// ValidationError means a raw record is missing a field required to build a User.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid user payload: missing %s", e.Field)
}
