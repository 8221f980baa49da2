// Package anthropic talks to the Anthropic Messages API.
package anthropic

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
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
)

const providerName = "anthropic"

// Config holds the Anthropic settings. Only APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService implements driven.LLMService against /v1/messages.
type LLMService struct {
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	StopSeqs    []string  `json:"stop_sequences,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// envelope decodes full responses, error bodies and stream events alike.
type envelope struct {
	Type    string         `json:"type"`
	Content []contentBlock `json:"content"`
	Delta   contentBlock   `json:"delta"`
	Error   *apiError      `json:"error,omitempty"`
}

func (e envelope) err(fallback string) error {
	msg := fallback
	if e.Error != nil {
		msg = e.Error.Message
	}
	return &domain.ProviderError{Provider: providerName, Message: msg}
}

// NewLLMService returns ErrLLMUnavailable when no API key is set.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required: %w", domain.ErrLLMUnavailable)
	}
	return &LLMService{
		http:     &http.Client{Timeout: cmp.Or(cfg.Timeout, DefaultTimeout)},
		endpoint: strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/"),
		apiKey:   cfg.APIKey,
		model:    cmp.Or(cfg.Model, DefaultModel),
	}, nil
}

// Generate sends prompt as a single user turn.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := s.request(
		[]driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}},
		driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature},
	)
	req.StopSeqs = opts.StopWords
	return s.complete(ctx, req)
}

// Chat returns the concatenated text blocks of the reply. System messages
// travel in the request's system field.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.complete(ctx, s.request(messages, opts))
}

// ChatStream relays text deltas until message_stop or end of body.
func (s *LLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions, onFragment func(string) error,
) error {
	req := s.request(messages, opts)
	req.Stream = true

	body, err := s.send(ctx, http.MethodPost, "/v1/messages", req)
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
		}

		var payload envelope
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return fmt.Errorf("anthropic: decode stream event: %w", err)
		}
		switch payload.Type {
		case "content_block_delta":
			if payload.Delta.Type != "text_delta" || payload.Delta.Text == "" {
				continue
			}
			if err := onFragment(payload.Delta.Text); err != nil {
				return err
			}
		case "message_stop":
			return nil
		case "error":
			return payload.err("stream error")
		}
	}
}

func (s *LLMService) complete(ctx context.Context, req messagesRequest) (string, error) {
	body, err := s.send(ctx, http.MethodPost, "/v1/messages", req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var res envelope
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	switch {
	case res.Error != nil:
		return "", res.err("")
	case len(res.Content) == 0:
		return "", res.err("no response content returned")
	}

	var text strings.Builder
	for _, block := range res.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// request lifts system messages out of the conversation and merges
// consecutive turns of the same role, which the API rejects.
func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions) messagesRequest {
	var system []string
	turns := make([]message, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.Role == driven.RoleSystem:
			system = append(system, m.Content)
		case len(turns) > 0 && turns[len(turns)-1].Role == m.Role:
			turns[len(turns)-1].Content += "\n\n" + m.Content
		default:
			turns = append(turns, message{Role: m.Role, Content: m.Content})
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return messagesRequest{
		Model:       s.model,
		System:      strings.Join(system, "\n\n"),
		Messages:    turns,
		MaxTokens:   maxTokens,
		Temperature: temperature(opts.Temperature),
	}
}

// temperature clamps t to the API's range and always yields a value to send.
func temperature(t float64) *float64 {
	t = min(max(t, 0), 1)
	return &t
}

// send performs an authenticated call and returns the body of a 200
// response for the caller to close.
func (s *LLMService) send(ctx context.Context, method, path string, payload any) (io.ReadCloser, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("anthropic: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
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
	var res envelope
	if json.Unmarshal(raw, &res) == nil && res.Error != nil {
		msg = res.Error.Message
	}
	return nil, &domain.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: msg}
}

// ModelName returns the model.
func (s *LLMService) ModelName() string { return s.model }

// Ping checks the key by listing models.
func (s *LLMService) Ping(ctx context.Context) error {
	body, err := s.send(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return err
	}
	return body.Close()
}

// Close is a no-op.
func (s *LLMService) Close() error { return nil }
