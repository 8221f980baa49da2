package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// RetryConfig defines configuration for retries.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration

	// RetryIf decides whether an error is retried. Nil means domain.IsTransient.
	RetryIf func(error) bool
}

// DefaultRetryConfig retries a transient failure once.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      1,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Retry runs operation until it succeeds, returns a non-retryable error,
// exhausts MaxRetries or ctx is done.
func Retry(ctx context.Context, config RetryConfig, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialInterval
	b.MaxInterval = config.MaxInterval
	if config.Multiplier > 0 {
		b.Multiplier = config.Multiplier
	}
	b.MaxElapsedTime = config.MaxElapsedTime

	var policy backoff.BackOff = b
	if config.MaxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(config.MaxRetries))
	}

	retryIf := config.RetryIf
	if retryIf == nil {
		retryIf = domain.IsTransient
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryIf(err) {
			return backoff.Permanent(err)
		}
		logger.Debug("Attempt %d failed, retrying: %v", attempt, err)
		return err
	}, backoff.WithContext(policy, ctx))
}

// RetryWithResult is Retry for operations returning a value.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, operation func() (T, error)) (T, error) {
	var result T
	err := Retry(ctx, config, func() error {
		var err error
		result, err = operation()
		return err
	})
	return result, err
}
