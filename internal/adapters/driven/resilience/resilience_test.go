package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

var (
	errTransient = &domain.ProviderError{Provider: "test", StatusCode: 503, Message: "unavailable"}
	errClient    = &domain.ProviderError{Provider: "test", StatusCode: 400, Message: "bad request"}
)

// scriptedLLM fails with errs in order, then succeeds.
type scriptedLLM struct {
	mu        sync.Mutex
	errs      []error
	calls     int
	fragments []string
}

func (s *scriptedLLM) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	if err := s.next(); err != nil {
		return "", err
	}
	return "ok", nil
}

func (s *scriptedLLM) Chat(_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	if err := s.next(); err != nil {
		return "", err
	}
	return "ok", nil
}

func (s *scriptedLLM) ChatStream(
	_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions, onFragment func(string) error,
) error {
	for _, f := range s.fragments {
		if err := onFragment(f); err != nil {
			return err
		}
	}
	return s.next()
}

func (s *scriptedLLM) ModelName() string           { return "scripted" }
func (s *scriptedLLM) Ping(_ context.Context) error { return nil }
func (s *scriptedLLM) Close() error                 { return nil }

func TestRetry_TransientRetriedOnce(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(1), func() error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Equal(t, 2, calls)
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		return errClient
	})

	assert.Equal(t, errClient, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_DimensionMismatchNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		return &domain.DimensionMismatchError{Want: 768, Got: 1024}
	})

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(2), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errTransient
		}
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestLLMService_RetriesTransientChat(t *testing.T) {
	inner := &scriptedLLM{errs: []error{errTransient}}
	svc := NewLLMService(inner, Options{Retry: fastRetry(1), Breaker: DefaultBreakerConfig("llm")})

	got, err := svc.Chat(context.Background(), nil, driven.ChatOptions{})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, inner.calls)
}

func TestLLMService_StreamNotRetriedAfterFragment(t *testing.T) {
	inner := &scriptedLLM{errs: []error{errTransient}, fragments: []string{"부분"}}
	svc := NewLLMService(inner, Options{Retry: fastRetry(3), Breaker: DefaultBreakerConfig("llm")})

	var got []string
	err := svc.ChatStream(context.Background(), nil, driven.ChatOptions{}, func(s string) error {
		got = append(got, s)
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Equal(t, []string{"부분"}, got)
	assert.Equal(t, 1, inner.calls)
}

func TestLLMService_StreamRetriedBeforeFragment(t *testing.T) {
	inner := &scriptedLLM{errs: []error{errTransient}}
	svc := NewLLMService(inner, Options{Retry: fastRetry(1), Breaker: DefaultBreakerConfig("llm")})

	err := svc.ChatStream(context.Background(), nil, driven.ChatOptions{}, func(string) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestBreaker_OpensOnTransientFailures(t *testing.T) {
	cfg := DefaultBreakerConfig("embed")
	cfg.MinRequests = 2
	cfg.Timeout = time.Hour
	b := NewBreaker(cfg)

	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return errTransient })
		require.Error(t, err)
	}

	assert.True(t, b.IsOpen())
	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestBreaker_DefaultTripsOnFailureRatio(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig("ollama"))
	fail := func(context.Context) error { return errTransient }
	ok := func(context.Context) error { return nil }

	for _, fn := range []func(context.Context) error{fail, ok, fail, ok} {
		_ = b.Execute(context.Background(), fn)
	}
	assert.False(t, b.IsOpen(), "fewer than five requests never trip")

	_ = b.Execute(context.Background(), fail)
	assert.True(t, b.IsOpen(), "three of five requests failed")
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	cfg := DefaultBreakerConfig("llm")
	cfg.MinRequests = 2
	b := NewBreaker(cfg)

	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return errClient })
		require.Error(t, err)
	}

	assert.False(t, b.IsOpen())
	assert.Equal(t, "llm", b.Name())
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	cfg := DefaultBreakerConfig("openai")
	cfg.Timeout = time.Hour
	b := NewBreaker(cfg)

	abandoned := []error{
		fmt.Errorf("openai: %w", context.DeadlineExceeded),
		&domain.ProviderError{Provider: "openai", Err: context.Canceled},
		context.Canceled,
	}
	for i := 0; i < 10; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return abandoned[i%len(abandoned)] })
		require.Error(t, err)
	}
	assert.False(t, b.IsOpen())

	err := b.Execute(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestLLMService_CancelledChatNotRetried(t *testing.T) {
	inner := &scriptedLLM{errs: []error{fmt.Errorf("test: %w", context.DeadlineExceeded)}}
	svc := NewLLMService(inner, Options{Retry: fastRetry(3), Breaker: DefaultBreakerConfig("test")})

	_, err := svc.Chat(context.Background(), nil, driven.ChatOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimiter_BackoffAfter429(t *testing.T) {
	l := NewRateLimiter(RateLimitConfig{})
	assert.True(t, l.Allow())

	l.RecordRateLimitError(time.Hour)

	assert.False(t, l.Allow())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestKeyedLimiter(t *testing.T) {
	k := NewKeyedLimiter(60, 2)
	now := time.Unix(1_700_000_000, 0)
	k.now = func() time.Time { return now }

	assert.True(t, k.Allow("10.0.0.1"))
	assert.True(t, k.Allow("10.0.0.1"))
	assert.False(t, k.Allow("10.0.0.1"))
	assert.True(t, k.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, k.Allow("10.0.0.1"))

	now = now.Add(time.Hour)
	k.Allow("10.0.0.3")
	assert.Equal(t, 1, k.Len())
}

func TestEmbeddingService_EmptyBatchSkipsProvider(t *testing.T) {
	svc := NewEmbeddingService(nil, DefaultOptions("embed"))

	got, err := svc.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestErrorsAsThroughStreamStarted(t *testing.T) {
	err := error(&streamStarted{err: errTransient})
	var pe *domain.ProviderError
	assert.True(t, errors.As(err, &pe))
}
