// Package ollama runs guard, classification and answer prompts against a
// local Ollama server.
package ollama

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

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

const providerName = "ollama"

// LLMConfig holds the Ollama chat settings.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService implements driven.LLMService over /api/generate and /api/chat.
type LLMService struct {
	http     *http.Client
	endpoint string
	model    string
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

// newOptions always carries the temperature so that zero reaches the model
// instead of its default.
func newOptions(maxTokens int, temperature float64, stop []string) *options {
	return &options{NumPredict: max(maxTokens, 0), Temperature: max(temperature, 0), Stop: stop}
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is a full reply, or one line of a streamed reply.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// NewLLMService creates the adapter. Ollama needs no credentials.
func NewLLMService(cfg LLMConfig) *LLMService {
	return &LLMService{
		http:     &http.Client{Timeout: cmp.Or(cfg.Timeout, DefaultLLMTimeout)},
		endpoint: strings.TrimRight(cmp.Or(cfg.BaseURL, DefaultBaseURL), "/"),
		model:    cmp.Or(cfg.Model, DefaultLLMModel),
	}
}

// Generate runs a single-prompt completion.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	body, err := s.post(ctx, "/api/generate", generateRequest{
		Model:   s.model,
		Prompt:  prompt,
		Options: newOptions(opts.MaxTokens, opts.Temperature, opts.StopWords),
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	var res generateResponse
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if res.Error != "" {
		return "", &domain.ProviderError{Provider: providerName, Message: res.Error}
	}
	return res.Response, nil
}

// Chat returns the assistant reply to messages.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	body, err := s.post(ctx, "/api/chat", s.chatRequest(messages, opts, false))
	if err != nil {
		return "", err
	}
	defer body.Close()

	var res chatResponse
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if res.Error != "" {
		return "", &domain.ProviderError{Provider: providerName, Message: res.Error}
	}
	return res.Message.Content, nil
}

// ChatStream decodes the newline-delimited reply objects until one reports
// done.
func (s *LLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions, onFragment func(string) error,
) error {
	body, err := s.post(ctx, "/api/chat", s.chatRequest(messages, opts, true))
	if err != nil {
		return err
	}
	defer body.Close()

	dec := json.NewDecoder(body)
	for {
		var chunk chatResponse
		err := dec.Decode(&chunk)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			return fmt.Errorf("ollama: decode stream chunk: %w", err)
		case chunk.Error != "":
			return &domain.ProviderError{Provider: providerName, Message: chunk.Error}
		}

		if chunk.Message.Content != "" {
			if err := onFragment(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
}

func (s *LLMService) chatRequest(messages []driven.ChatMessage, opts driven.ChatOptions, stream bool) chatRequest {
	msgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, chatMessage(m))
	}
	return chatRequest{
		Model:    s.model,
		Messages: msgs,
		Stream:   stream,
		Options:  newOptions(opts.MaxTokens, opts.Temperature, nil),
	}
}

// post sends payload as JSON and returns the body of a 200 response for
// the caller to close.
func (s *LLMService) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *LLMService) do(req *http.Request) (io.ReadCloser, error) {
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

// ModelName returns the chat model.
func (s *LLMService) ModelName() string { return s.model }

// Ping lists the installed models.
func (s *LLMService) Ping(ctx context.Context) error {
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
func (s *LLMService) Close() error { return nil }
