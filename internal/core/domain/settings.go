package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// StoreBackend selects the document store implementation.
type StoreBackend string

// Available store backends.
const (
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendSQLite   StoreBackend = "sqlite"
	StoreBackendMemory   StoreBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendPostgres, StoreBackendSQLite, StoreBackendMemory:
		return true
	default:
		return false
	}
}

// StoreLayout selects the table layout of the document store.
type StoreLayout string

// Available layouts.
const (
	// LayoutChunks stores one row per free-text chunk with JSON metadata.
	LayoutChunks StoreLayout = "chunks"

	// LayoutQA stores QA pairs split across qa_text and qa_embedding.
	LayoutQA StoreLayout = "qa"
)

// IsValid returns true if the layout is recognised.
func (l StoreLayout) IsValid() bool {
	return l == LayoutChunks || l == LayoutQA
}

// StoreSettings holds document store configuration.
type StoreSettings struct {
	// Backend is the store implementation.
	Backend StoreBackend

	// DSN is the connection string (postgres URL or sqlite file path).
	DSN string

	// Collection is the chunk table name.
	Collection string

	// Layout is the table layout.
	Layout StoreLayout

	// Dimensions is the embedding vector size every row must have.
	Dimensions int

	// Metric is the distance metric used for nearest-neighbour ordering.
	Metric DistanceMetric
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// CacheSize is the number of query embeddings kept in memory. Zero disables caching.
	CacheSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// RequestsPerSecond throttles provider calls. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RouterSettings holds question routing policy.
type RouterSettings struct {
	// BypassRetrieval sends symptom, drug_info and side_effect questions
	// straight to generation without grounding.
	BypassRetrieval bool

	// DefaultInDomain is the guard result used when the classifier output
	// cannot be parsed.
	DefaultInDomain bool

	// FanOut is the candidate count fetched before re-ranking.
	FanOut int

	// TopN is the final result count.
	TopN int

	// Temperature is the generation determinism knob.
	Temperature float64
}

// HTTPSettings holds the API server configuration.
type HTTPSettings struct {
	// Addr is the listen address.
	Addr string

	// RequestsPerMinute is the per-client rate limit. Zero disables limiting.
	RequestsPerMinute int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Store     StoreSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Router    RouterSettings
	HTTP      HTTPSettings
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Store: StoreSettings{
			Backend:    StoreBackendPostgres,
			Collection: "drug_info",
			Layout:     LayoutChunks,
			Dimensions: 768, // nomic-embed-text default
			Metric:     MetricCosine,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			CacheSize: 512,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModels()[AIProviderOllama],
		},
		Router: RouterSettings{
			DefaultInDomain: true,
			FanOut:          6,
			TopN:            4,
			Temperature:     0.2,
		},
		HTTP: HTTPSettings{
			Addr:              ":8080",
			RequestsPerMinute: 60,
		},
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"bge-m3":            1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
