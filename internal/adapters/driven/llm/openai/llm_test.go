package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/druginfo/internal/adapters/driven/resilience"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)
	return svc
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestLLMService_Generate(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, driven.RoleUser, req.Messages[0].Role)
		assert.Equal(t, 4, req.MaxTokens)
		assert.False(t, req.Stream)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"NO"},"finish_reason":"stop"}]}`))
	})

	got, err := svc.Generate(context.Background(), "prompt", driven.GenerateOptions{MaxTokens: 4})

	require.NoError(t, err)
	assert.Equal(t, "NO", got)
}

func TestLLMService_ChatNoChoices(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := svc.Chat(context.Background(), nil, driven.ChatOptions{})

	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestLLMService_ChatStream(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"게보린", "은 ", "두통약"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var got strings.Builder
	err := svc.ChatStream(context.Background(), nil, driven.ChatOptions{}, func(s string) error {
		got.WriteString(s)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "게보린은 두통약", got.String())
}

func TestLLMService_Unauthorized(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	})

	err := svc.ChatStream(context.Background(), nil, driven.ChatOptions{}, func(string) error { return nil })

	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestLLMService_SendsZeroTemperature(t *testing.T) {
	var body map[string]any
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"답변"}}]}`))
	})

	_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "질문"}},
		driven.ChatOptions{Temperature: 0})

	require.NoError(t, err)
	require.Contains(t, body, "temperature")
	assert.InDelta(t, 0.0, body["temperature"], 1e-9)
}

func TestLLMService_CallerDeadlineSparesBreaker(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"답변"}}]}`))
	}))
	t.Cleanup(server.Close)

	inner, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)
	svc := resilience.NewLLMService(inner, resilience.DefaultOptions(providerName))

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := svc.Chat(ctx, nil, driven.ChatOptions{})
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, domain.IsTransient(err))
	}

	slow.Store(false)
	got, err := svc.Chat(context.Background(), nil, driven.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "답변", got)
}

func TestLLMService_ClientTimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	svc, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), nil, driven.ChatOptions{})

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.True(t, domain.IsTransient(err))
}
