// Package openai talks to the OpenAI chat completions API, or any server
// that speaks the same protocol, for guard, classification and answer
// generation.
package openai

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/druginfo/internal/adapters/driven/llm/sse"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

const (
	providerName = "openai"
	streamDone   = "[DONE]"
)

// LLMConfig holds the OpenAI chat settings. Only APIKey is required.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService implements driven.LLMService against /chat/completions.
type LLMService struct {
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletion covers both the full response and a streamed chunk: the
// former fills Message, the latter Delta.
type chatCompletion struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewLLMService returns ErrLLMUnavailable when no API key is set.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required: %w", domain.ErrLLMUnavailable)
	}
	return &LLMService{
		http:     &http.Client{Timeout: cmp.Or(cfg.Timeout, DefaultLLMTimeout)},
		endpoint: strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/"),
		apiKey:   cfg.APIKey,
		model:    cmp.Or(cfg.Model, DefaultLLMModel),
	}, nil
}

// Generate sends prompt as a single user message.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := s.request(
		[]driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}},
		driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature},
	)
	req.Stop = opts.StopWords
	return s.complete(ctx, req)
}

// Chat returns the first choice of a non-streamed completion.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.complete(ctx, s.request(messages, opts))
}

// ChatStream relays content deltas until the [DONE] sentinel or end of body.
func (s *LLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions, onFragment func(string) error,
) error {
	req := s.request(messages, opts)
	req.Stream = true

	body, err := s.send(ctx, http.MethodPost, "/chat/completions", req)
	if err != nil {
		return err
	}
	defer body.Close()

	events := sse.NewReader(body)
	for {
		ev, err := events.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			return &domain.ProviderError{Provider: providerName, Err: err}
		case ev.Data == streamDone:
			return nil
		}

		var chunk chatCompletion
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return fmt.Errorf("openai: decode stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return &domain.ProviderError{Provider: providerName, Message: chunk.Error.Message}
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			if err := onFragment(c.Delta.Content); err != nil {
				return err
			}
		}
	}
}

func (s *LLMService) complete(ctx context.Context, req chatCompletionRequest) (string, error) {
	body, err := s.send(ctx, http.MethodPost, "/chat/completions", req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var res chatCompletion
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return "", fmt.Errorf("openai: decode completion: %w", err)
	}
	switch {
	case res.Error != nil:
		return "", &domain.ProviderError{Provider: providerName, Message: res.Error.Message}
	case len(res.Choices) == 0:
		return "", &domain.ProviderError{Provider: providerName, Message: "no response choices returned"}
	}
	return res.Choices[0].Message.Content, nil
}

func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions) chatCompletionRequest {
	msgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, chatMessage(m))
	}
	return chatCompletionRequest{
		Model:       s.model,
		Messages:    msgs,
		MaxTokens:   max(opts.MaxTokens, 0),
		Temperature: temperature(opts.Temperature),
	}
}

// temperature clamps t at zero and always yields a value to send.
func temperature(t float64) *float64 {
	t = max(t, 0)
	return &t
}

// send performs an authorised call and hands back the body of a 200
// response for the caller to close. payload is JSON-encoded when non-nil.
func (s *LLMService) send(ctx context.Context, method, path string, payload any) (io.ReadCloser, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("openai: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
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
	if resp.StatusCode == http.StatusOK {
		return resp.Body, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	msg := string(raw)
	var apiErr chatCompletion
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != nil {
		msg = apiErr.Error.Message
	}
	return nil, &domain.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: msg}
}

// ModelName returns the chat model.
func (s *LLMService) ModelName() string { return s.model }

// Ping checks the key by listing models.
func (s *LLMService) Ping(ctx context.Context) error {
	body, err := s.send(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return err
	}
	return body.Close()
}

// Close is a no-op.
func (s *LLMService) Close() error { return nil }
