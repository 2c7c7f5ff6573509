package deploy

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is a non-2xx response from a hosting backend. Conflict
// responses are recoverable and are converted to a success path by the
// orchestrators; everything else aborts the remaining phases.
type ProviderError struct {
	// Op is the protocol operation that failed (e.g. "create repository").
	Op string

	// StatusCode is the HTTP status returned by the backend.
	StatusCode int

	// Message is the most specific error text available from the response.
	Message string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("deploy: %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("deploy: %s: status %d", e.Op, e.StatusCode)
}

// Conflict reports whether the provider signaled that the target already
// exists or the feature is already enabled.
func (e *ProviderError) Conflict() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusUnprocessableEntity
}

// IsConflict reports whether err is a recoverable already-exists conflict.
func IsConflict(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Conflict()
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}
