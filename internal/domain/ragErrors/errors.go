package ragErrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidConfig is raised before any provider call when chunking, index or
	// assembly parameters cannot work together.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch is a configuration error: a vector did not match the
	// dimension the index was built with.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrInvalidConfig)

	ErrEmbeddingProvider = errors.New("embedding provider error")
	ErrSearchProvider    = errors.New("search provider error")
	ErrSynthesisProvider = errors.New("synthesis provider error")

	// ErrInvalidDocument covers uploads that cannot be read or hold no text.
	ErrInvalidDocument = errors.New("invalid document")

	ErrIndexNotReady     = errors.New("index not ready")
	ErrStreamInterrupted = errors.New("answer stream interrupted")
)

// StreamInterruptedError reports a provider failure after part of the answer
// was already handed to the caller.
type StreamInterruptedError struct {
	Emitted int
	Cause   error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("%s after %d fragments: %v", ErrStreamInterrupted, e.Emitted, e.Cause)
}

func (e *StreamInterruptedError) Unwrap() []error {
	return []error{ErrStreamInterrupted, e.Cause}
}

func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// IsProviderError is true for failures that happened at a provider boundary.
func IsProviderError(err error) bool {
	return errors.Is(err, ErrEmbeddingProvider) ||
		errors.Is(err, ErrSearchProvider) ||
		errors.Is(err, ErrSynthesisProvider)
}

// StatusCode maps an error to the HTTP status reported to clients.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexNotReady):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case IsProviderError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable is true when the same request may succeed later.
func Retryable(err error) bool {
	return IsProviderError(err) || errors.Is(err, context.DeadlineExceeded)
}
