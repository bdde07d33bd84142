package resilience

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned without invoking the operation while the
	// breaker is open or a half-open trial is already in flight.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTimeout is returned when an operation exceeds the per-call budget.
	// The operation itself is not cancelled and may finish in the background.
	ErrTimeout = errors.New("operation timed out")
)

// StatusError carries an HTTP-style status code so the retry predicate can
// distinguish client errors from server errors.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// StatusCode implements StatusCoder.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// StatusCoder is implemented by errors that carry an HTTP-style status code.
type StatusCoder interface {
	StatusCode() int
}

// statusOf extracts a status code from an error chain. The second return is
// false for network-level failures that never produced a response.
func statusOf(err error) (int, bool) {
	var coder StatusCoder
	if errors.As(err, &coder) {
		return coder.StatusCode(), true
	}
	return 0, false
}
