package completion

import (
	"errors"
	"fmt"
)

// ErrCanceled is returned when an operation was aborted through its
// cancellation token rather than failing on its own. Callers can show
// "stopped by user" instead of a generic failure.
var ErrCanceled = errors.New("completion canceled")

// HTTPError is a non-success response from the provider. Status and Body
// carry the upstream status code and response body verbatim.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// NetworkError is a transport-level or response-parsing failure wrapping
// the underlying cause.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
