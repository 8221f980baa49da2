// Package cached provides an LRU-caching decorator for embedding services.
package cached

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultSize is the number of cached vectors when no size is given.
const DefaultSize = 512

// EmbeddingService caches vectors by text. Repeated questions skip the
// provider round trip.
type EmbeddingService struct {
	inner driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// New wraps inner with a cache holding up to size vectors.
func New(inner driven.EmbeddingService, size int) (*EmbeddingService, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &EmbeddingService{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text or embeds and caches it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache, in one inner call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if vec, ok := s.cache.Get(t); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	logger.Debug("Embedding cache: %d hits, %d misses", len(texts)-len(missing), len(missing))

	vecs, err := s.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedding batch: expected %d vectors, got %d", len(missing), len(vecs))
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		s.cache.Add(missing[j], vec)
	}
	return out, nil
}

// Len returns the number of cached vectors.
func (s *EmbeddingService) Len() int {
	return s.cache.Len()
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int { return s.inner.Dimensions() }

// ModelName returns the wrapped service's model.
func (s *EmbeddingService) ModelName() string { return s.inner.ModelName() }

// Ping checks the wrapped service.
func (s *EmbeddingService) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close purges the cache and closes the wrapped service.
func (s *EmbeddingService) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}
