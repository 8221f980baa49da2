package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Texts containing a registered keyword embed to that keyword's vector;
// anything else embeds to fallback.
type mockEmbeddingService struct {
	keywords   map[string][]float32
	fallback   []float32
	dimensions int
	err        error
	calls      int
}

func newMockEmbedding(dim int) *mockEmbeddingService {
	fallback := make([]float32, dim)
	fallback[dim-1] = 1
	return &mockEmbeddingService{keywords: map[string][]float32{}, fallback: fallback, dimensions: dim}
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	for kw, vec := range m.keywords {
		if strings.Contains(text, kw) {
			return vec, nil
		}
	}
	return m.fallback, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int             { return m.dimensions }
func (m *mockEmbeddingService) ModelName() string           { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockLLMService implements driven.LLMService for testing.
// Generate answers come from generateFn; Chat returns chatReply.
type mockLLMService struct {
	mu sync.Mutex

	generateFn  func(prompt string) string
	generateErr error
	chatReply   string
	chatErr     error
	fragments   []string
	streamErr   error

	generateCalls   int
	generateOptions []driven.GenerateOptions
	chatCalls       int
	lastMessages    []driven.ChatMessage
	lastOptions     driven.ChatOptions
}

func newMockLLM() *mockLLMService {
	return &mockLLMService{generateFn: func(string) string { return "" }}
}

// scriptedLLM answers the guard prompt with verdict and the classify prompt with label.
func scriptedLLM(verdict, label string) *mockLLMService {
	m := newMockLLM()
	m.generateFn = func(prompt string) string {
		if strings.Contains(prompt, "YES") {
			return verdict
		}
		return label
	}
	return m
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateCalls++
	m.generateOptions = append(m.generateOptions, opts)
	if m.generateErr != nil {
		return "", m.generateErr
	}
	return m.generateFn(prompt), nil
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatCalls++
	m.lastMessages = messages
	m.lastOptions = opts
	return m.chatReply, m.chatErr
}

func (m *mockLLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions, onFragment func(string) error,
) error {
	m.mu.Lock()
	m.chatCalls++
	m.lastMessages = messages
	m.lastOptions = opts
	fragments := m.fragments
	streamErr := m.streamErr
	m.mu.Unlock()

	for _, f := range fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onFragment(f); err != nil {
			return err
		}
	}
	return streamErr
}

func (m *mockLLMService) ModelName() string           { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

func (m *mockLLMService) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls + m.chatCalls
}

// failingVectorStore implements driven.VectorStore and fails every call.
type failingVectorStore struct {
	err       error
	dimension int
}

func (f *failingVectorStore) Insert(_ context.Context, _ []domain.Document) (int, error) {
	return 0, f.err
}

func (f *failingVectorStore) Nearest(
	_ context.Context, _ []float32, _ int, _ domain.MetadataFilter,
) ([]domain.ScoredDocument, error) {
	return nil, f.err
}

func (f *failingVectorStore) FindByProduct(_ context.Context, _ string, _ int) ([]domain.Document, error) {
	return nil, f.err
}

func (f *failingVectorStore) Count(_ context.Context) (int, error) { return 0, f.err }
func (f *failingVectorStore) Dimension() int                       { return f.dimension }
func (f *failingVectorStore) Metric() domain.DistanceMetric        { return domain.MetricCosine }
func (f *failingVectorStore) Ping(_ context.Context) error         { return f.err }
func (f *failingVectorStore) Close() error                         { return nil }

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m *mockPromptStore) Reload() {}

var errNetwork = errors.New("connection reset by peer")
