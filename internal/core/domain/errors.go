package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider, store or layout.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrDimensionMismatch indicates an embedding whose length differs from the
	// configured store dimension. It is a configuration error and never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreUnavailable indicates the document store cannot be reached.
	// Fatal for the request; never converted into an empty result.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrNoResults indicates a query succeeded but matched nothing.
	// Callers treat it as "no grounding available", not as a failure.
	ErrNoResults = errors.New("no results")

	// ErrProvider indicates an embedding or generation provider call failed.
	ErrProvider = errors.New("provider error")

	// ErrClassificationAmbiguous indicates classifier output did not parse to a
	// known label. It is recovered locally with a documented default.
	ErrClassificationAmbiguous = errors.New("classification ambiguous")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates a local or remote rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// DimensionMismatchError reports the configured and observed embedding sizes.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: store expects %d, got %d", e.Want, e.Got)
}

// Is makes the error match ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CheckDimension returns a DimensionMismatchError when len(vec) != want.
func CheckDimension(vec []float32, want int) error {
	if want > 0 && len(vec) != want {
		return &DimensionMismatchError{Want: want, Got: len(vec)}
	}
	return nil
}

// ProviderError is a failed embedding or generation call. StatusCode is
// zero when the request never got a response.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

// Unwrap returns the underlying transport error, if any.
func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes the error match ErrProvider, and ErrRateLimited for HTTP 429.
func (e *ProviderError) Is(target error) bool {
	if target == ErrProvider {
		return true
	}
	return target == ErrRateLimited && e.StatusCode == 429
}

// Transient reports whether retrying the call may succeed: transport
// failures, rate limiting and server errors. A cancelled call is never
// transient.
func (e *ProviderError) Transient() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// TransportError wraps a failed round trip to provider. When ctx is done
// the caller gave up, so the context error is returned instead of a
// ProviderError: it is neither retried nor held against the provider.
func TransportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", provider, ctxErr)
	}
	return &ProviderError{Provider: provider, Err: err}
}

// IsTransient reports whether err is a ProviderError worth retrying.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return false
}
