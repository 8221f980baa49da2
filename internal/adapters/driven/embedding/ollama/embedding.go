// Package ollama embeds passages and questions with a local Ollama model.
package ollama

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768
)

const providerName = "ollama"

// Config holds the Ollama embedding settings. Dimensions is looked up
// from the model when zero.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService implements driven.EmbeddingService over /api/embed,
// which accepts a whole batch in one call.
type EmbeddingService struct {
	http       *http.Client
	endpoint   string
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewEmbeddingService creates the adapter.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	model := cmp.Or(cfg.Model, DefaultModel)
	dims := cfg.Dimensions
	if dims == 0 {
		dims = DefaultDimensions
		if known, ok := domain.EmbeddingDimensions()[model]; ok {
			dims = known
		}
	}
	return &EmbeddingService{
		http:       &http.Client{Timeout: cmp.Or(cfg.Timeout, DefaultTimeout)},
		endpoint:   strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/"),
		model:      model,
		dimensions: dims,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	raw, err := json.Marshal(embedRequest{Model: s.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama: encode embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/api/embed", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var res embedResponse
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return nil, fmt.Errorf("ollama: decode embed response: %w", err)
	}
	switch {
	case res.Error != "":
		return nil, &domain.ProviderError{Provider: providerName, Message: res.Error}
	case len(res.Embeddings) != len(texts):
		return nil, &domain.ProviderError{
			Provider: providerName,
			Message:  fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(res.Embeddings)),
		}
	}

	out := make([][]float32, len(texts))
	for i, vec := range res.Embeddings {
		out[i] = make([]float32, len(vec))
		for j, f := range vec {
			out[i][j] = float32(f)
		}
	}
	return out, nil
}

func (s *EmbeddingService) do(req *http.Request) (io.ReadCloser, error) {
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, domain.TransportError(req.Context(), providerName, err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(resp.Body)
	return nil, &domain.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
}

// Dimensions returns the configured vector size.
func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists the installed models.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: build ping request: %w", err)
	}
	body, err := s.do(req)
	if err != nil {
		return err
	}
	return body.Close()
}

// Close is a no-op.
func (s *EmbeddingService) Close() error { return nil }
