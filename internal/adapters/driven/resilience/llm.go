package resilience

import (
	"context"
	"errors"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Options configures a resilient provider decorator.
type Options struct {
	Retry     RetryConfig
	Breaker   BreakerConfig
	RateLimit RateLimitConfig
}

// DefaultOptions returns the default decorator configuration for a provider.
func DefaultOptions(name string) Options {
	return Options{
		Retry:   DefaultRetryConfig(),
		Breaker: DefaultBreakerConfig(name),
	}
}

// guard bundles the three policies shared by the decorators.
type guard struct {
	retry   RetryConfig
	breaker *Breaker
	limiter *RateLimiter
}

func newGuard(opts Options) *guard {
	retry := opts.Retry
	retryIf := retry.RetryIf
	if retryIf == nil {
		retryIf = domain.IsTransient
	}
	retry.RetryIf = func(err error) bool {
		var started *streamStarted
		if errors.As(err, &started) {
			return false
		}
		return retryIf(err)
	}
	return &guard{
		retry:   retry,
		breaker: NewBreaker(opts.Breaker),
		limiter: NewRateLimiter(opts.RateLimit),
	}
}

// do runs op under the limiter, breaker and retry policy.
func (g *guard) do(ctx context.Context, op func(context.Context) error) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return Retry(ctx, g.retry, func() error {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
			err := op(ctx)
			if errors.Is(err, domain.ErrRateLimited) {
				g.limiter.RecordRateLimitError(0)
			}
			return err
		})
	})
}

// LLMService decorates an LLM provider with rate limiting, a circuit
// breaker and retry of transient failures.
type LLMService struct {
	inner driven.LLMService
	g     *guard
}

// NewLLMService wraps inner.
func NewLLMService(inner driven.LLMService, opts Options) *LLMService {
	return &LLMService{inner: inner, g: newGuard(opts)}
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	var out string
	err := s.g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.Generate(ctx, prompt, opts)
		return err
	})
	return out, err
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	var out string
	err := s.g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.Chat(ctx, messages, opts)
		return err
	})
	return out, err
}

// ChatStream streams a conversation. A failure after the first delivered
// fragment is returned as is, without retry.
func (s *LLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions, onFragment func(string) error,
) error {
	delivered := false
	return s.g.do(ctx, func(ctx context.Context) error {
		err := s.inner.ChatStream(ctx, messages, opts, func(fragment string) error {
			delivered = true
			return onFragment(fragment)
		})
		if err != nil && delivered {
			return &streamStarted{err: err}
		}
		return err
	})
}

// streamStarted marks a stream failure that must not be retried.
type streamStarted struct{ err error }

func (e *streamStarted) Error() string { return e.err.Error() }
func (e *streamStarted) Unwrap() error { return e.err }

// ModelName returns the wrapped model name.
func (s *LLMService) ModelName() string { return s.inner.ModelName() }

// Ping checks the wrapped provider directly.
func (s *LLMService) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close closes the wrapped provider.
func (s *LLMService) Close() error { return s.inner.Close() }

// BreakerOpen reports whether the provider's circuit is open.
func (s *LLMService) BreakerOpen() bool { return s.g.breaker.IsOpen() }
