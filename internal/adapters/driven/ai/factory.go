// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/druginfo/internal/adapters/driven/embedding/cached"
	ollamaembed "github.com/custodia-labs/druginfo/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/druginfo/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/druginfo/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/druginfo/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/druginfo/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/druginfo/internal/adapters/driven/resilience"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Services holds the provider adapters used by the question router.
type Services struct {
	Embedding driven.EmbeddingService
	LLM       driven.LLMService
}

// Close releases all resources held by the services.
func (s *Services) Close() {
	if s.Embedding != nil {
		s.Embedding.Close()
	}
	if s.LLM != nil {
		s.LLM.Close()
	}
}

// NewServices creates both providers wrapped with resilience policies and,
// for embeddings, an LRU cache. Neither provider is pinged.
func NewServices(settings domain.AppSettings) (*Services, error) {
	embedding, err := NewEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	llm, err := NewLLMService(&settings.LLM)
	if err != nil {
		embedding.Close()
		return nil, err
	}
	return &Services{Embedding: embedding, LLM: llm}, nil
}

// NewEmbeddingService creates the configured embedding provider with retry,
// circuit breaking and caching applied.
func NewEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
	}

	var wrapped driven.EmbeddingService = resilience.NewEmbeddingService(svc,
		resilience.DefaultOptions("embedding/"+settings.Provider.String()))
	if settings.CacheSize > 0 {
		c, err := cached.New(wrapped, settings.CacheSize)
		if err != nil {
			svc.Close()
			return nil, err
		}
		wrapped = c
	}
	return wrapped, nil
}

// NewLLMService creates the configured LLM provider with retry, circuit
// breaking and rate limiting applied.
func NewLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, fmt.Errorf("%w: no LLM provider configured", domain.ErrLLMUnavailable)
	}

	opts := resilience.DefaultOptions("llm/" + settings.Provider.String())
	if settings.RequestsPerSecond > 0 {
		opts.RateLimit = resilience.RateLimitConfig{
			RequestsPerSecond: settings.RequestsPerSecond,
			BurstSize:         int(settings.RequestsPerSecond) + 1,
		}
	}
	return resilience.NewLLMService(svc, opts), nil
}

// Ping validates connectivity of both providers.
func Ping(ctx context.Context, s *Services) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.Embedding.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	if err := s.LLM.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderAnthropic {
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")
	}
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s: %w", settings.Provider, domain.ErrUnsupportedType)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s: %w", settings.Provider, domain.ErrUnsupportedType)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := domain.EmbeddingDimensions()[settings.Model]

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
