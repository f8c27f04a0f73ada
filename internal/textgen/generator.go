package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// Generator defines the interface for text-generation backends.
// Implementations send a fixed instruction plus user content and return
// the model's raw text response.
type Generator interface {
	// Generate sends instructions and user content, returning the raw response text
	Generate(ctx context.Context, instructions, userContent string) (string, error)
	// Close closes the generator and releases resources
	Close() error
}

// QuotaError indicates the backend rejected a request for rate or quota reasons
type QuotaError struct {
	Backend string
	Message string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %s", e.Backend, e.Message)
}

// IsQuotaError reports whether an error indicates a rate/quota condition
// that should trip the circuit breaker.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted")
}
