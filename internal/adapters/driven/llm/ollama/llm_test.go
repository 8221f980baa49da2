package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

func TestLLMService_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 4, req.Options.NumPredict)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "YES", Done: true})
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})

	got, err := svc.Generate(context.Background(), "prompt", driven.GenerateOptions{MaxTokens: 4})

	require.NoError(t, err)
	assert.Equal(t, "YES", got)
}

func TestLLMService_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, driven.RoleSystem, req.Messages[0].Role)
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "답변"}, Done: true})
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})

	got, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "sys"},
		{Role: driven.RoleUser, Content: "질문"},
	}, driven.ChatOptions{Temperature: 0.2})

	require.NoError(t, err)
	assert.Equal(t, "답변", got)
}

func TestLLMService_ChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		for _, part := range []string{"타이", "레놀"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})

	var got strings.Builder
	err := svc.ChatStream(context.Background(), nil, driven.ChatOptions{}, func(s string) error {
		got.WriteString(s)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "타이레놀", got.String())
}

func TestLLMService_ChatStreamHandlerAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"b"},"done":false}`)
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})
	stop := errors.New("stop")

	calls := 0
	err := svc.ChatStream(context.Background(), nil, driven.ChatOptions{}, func(string) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestLLMService_StreamErrorLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})

	err := svc.ChatStream(context.Background(), nil, driven.ChatOptions{}, func(string) error { return nil })

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Contains(t, err.Error(), "model crashed")
}

func TestLLMService_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})

	_, err := svc.Chat(context.Background(), nil, driven.ChatOptions{})

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.True(t, domain.IsTransient(err))
}

func TestLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}

func TestLLMService_SendsZeroTemperature(t *testing.T) {
	var body struct {
		Options map[string]any `json:"options"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "답변"}, Done: true})
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})
	_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "질문"}},
		driven.ChatOptions{})

	require.NoError(t, err)
	require.Contains(t, body.Options, "temperature")
	assert.InDelta(t, 0.0, body.Options["temperature"], 1e-9)
	assert.NotContains(t, body.Options, "num_predict")
}
