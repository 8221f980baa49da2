// Package openai embeds passages and questions through the OpenAI
// embeddings endpoint or any API that mirrors it.
package openai

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
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second

	// fallbackDimensions applies to models missing from the dimension table.
	fallbackDimensions = 1536

	// maxInputsPerRequest is the API limit on inputs in one call.
	maxInputsPerRequest = 2048
)

const providerName = "openai"

// Config holds the OpenAI embedding settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions shortens text-embedding-3-* vectors. Zero keeps the
	// model's native size.
	Dimensions int
}

// EmbeddingService implements driven.EmbeddingService over HTTP.
type EmbeddingService struct {
	http       *http.Client
	endpoint   string
	apiKey     string
	model      string
	dimensions int
	shortens   bool
}

type embedPayload struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResult struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type apiError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewEmbeddingService returns ErrEmbeddingUnavailable when no API key is set.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required: %w", domain.ErrEmbeddingUnavailable)
	}

	baseURL := strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/")
	model := cmp.Or(cfg.Model, DefaultModel)
	timeout := cmp.Or(cfg.Timeout, DefaultTimeout)

	dims := cfg.Dimensions
	if dims == 0 {
		if known, ok := domain.EmbeddingDimensions()[model]; ok {
			dims = known
		} else {
			dims = fallbackDimensions
		}
	}

	return &EmbeddingService{
		http:       &http.Client{Timeout: timeout},
		endpoint:   baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dims,
		shortens:   strings.HasPrefix(model, "text-embedding-3-"),
	}, nil
}

// Embed embeds a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in input order, splitting large batches across
// several calls.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxInputsPerRequest {
		end := min(start+maxInputsPerRequest, len(texts))
		vecs, err := s.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *EmbeddingService) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	payload := embedPayload{Model: s.model, Input: texts}
	if s.shortens {
		payload.Dimensions = s.dimensions
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: encode embedding request: %w", err)
	}

	body, err := s.call(ctx, http.MethodPost, "/embeddings", raw)
	if err != nil {
		return nil, err
	}

	var res embedResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("openai: decode embedding response: %w", err)
	}
	return placeByIndex(res, len(texts))
}

// placeByIndex reorders the response rows to match the request inputs.
func placeByIndex(res embedResult, n int) ([][]float32, error) {
	vecs := make([][]float32, n)
	for _, row := range res.Data {
		if row.Index < 0 || row.Index >= n {
			return nil, &domain.ProviderError{Provider: providerName, Message: fmt.Sprintf("embedding index %d out of range", row.Index)}
		}
		vec := make([]float32, len(row.Embedding))
		for i, f := range row.Embedding {
			vec[i] = float32(f)
		}
		vecs[row.Index] = vec
	}
	for i := range vecs {
		if vecs[i] == nil {
			return nil, &domain.ProviderError{Provider: providerName, Message: fmt.Sprintf("no embedding for input %d", i)}
		}
	}
	return vecs, nil
}

// call sends an authorised request and returns the body of a 200 response.
// Other statuses become a ProviderError carrying the API's error message.
func (s *EmbeddingService) call(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, domain.TransportError(ctx, providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.TransportError(ctx, providerName, err)
	}
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	msg := string(body)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
		msg = apiErr.Error.Message
	}
	return nil, &domain.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: msg}
}

// Dimensions returns the configured vector size.
func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping checks the key by listing models.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.call(ctx, http.MethodGet, "/models", nil)
	return err
}

// Close is a no-op.
func (s *EmbeddingService) Close() error { return nil }

