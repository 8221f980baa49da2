package resilience

import (
	"context"

	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService decorates an embedding provider with rate limiting, a
// circuit breaker and retry of transient failures.
type EmbeddingService struct {
	inner driven.EmbeddingService
	g     *guard
}

// NewEmbeddingService wraps inner.
func NewEmbeddingService(inner driven.EmbeddingService, opts Options) *EmbeddingService {
	return &EmbeddingService{inner: inner, g: newGuard(opts)}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := s.g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var out [][]float32
	err := s.g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int { return s.inner.Dimensions() }

// ModelName returns the wrapped service's model.
func (s *EmbeddingService) ModelName() string { return s.inner.ModelName() }

// Ping checks the wrapped provider directly.
func (s *EmbeddingService) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close closes the wrapped provider.
func (s *EmbeddingService) Close() error { return s.inner.Close() }
