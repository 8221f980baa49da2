// Package app wires settings into a running service graph: the document
// store backend, the provider adapters and the core services built on them.
// Every handle is created once here and passed down by constructor.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/druginfo/internal/adapters/driven/ai"
	"github.com/custodia-labs/druginfo/internal/adapters/driven/config/file"
	"github.com/custodia-labs/druginfo/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/druginfo/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/druginfo/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/core/services"
	"github.com/custodia-labs/druginfo/internal/logger"
	"github.com/custodia-labs/druginfo/internal/postprocessors/chunker"
)

// DefaultBatchSize is the number of documents committed per transaction.
const DefaultBatchSize = 100

// Options tune construction beyond the resolved settings.
type Options struct {
	// PromptDir overrides ~/.druginfo/prompts.
	PromptDir string

	// BatchSize overrides DefaultBatchSize.
	BatchSize int
}

// App holds the constructed service graph.
type App struct {
	Settings domain.AppSettings

	Store     driven.VectorStore
	Providers *ai.Services
	Prompts   *file.PromptStore

	Documents *services.DocumentStore
	Search    *services.SearchService
	Router    *services.QuestionRouter
	Ingest    *services.IngestService
}

// New opens the store, creates the providers and builds the services.
// On error every handle opened so far is closed.
func New(ctx context.Context, settings domain.AppSettings, opts Options) (*App, error) {
	logger.Section("Bootstrap")

	store, err := OpenStore(ctx, settings.Store)
	if err != nil {
		return nil, err
	}
	logger.Debug("store: %s (%s layout, %d dims, %s)",
		settings.Store.Backend, settings.Store.Layout, settings.Store.Dimensions, settings.Store.Metric)

	providers, err := ai.NewServices(settings)
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Debug("embedding: %s/%s, llm: %s/%s",
		settings.Embedding.Provider, settings.Embedding.Model, settings.LLM.Provider, settings.LLM.Model)

	prompts, err := file.NewPromptStore(opts.PromptDir, services.DefaultPrompts())
	if err != nil {
		providers.Close()
		store.Close()
		return nil, fmt.Errorf("prompt store: %w", err)
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	docs := services.NewDocumentStore(providers.Embedding, store, batch)
	search := services.NewSearchService(docs)

	guard := services.NewDomainGuard(providers.LLM)
	guard.SetDefault(settings.Router.DefaultInDomain)
	guard.SetPromptStore(prompts)

	classifier := services.NewQuestionClassifier(providers.LLM)
	classifier.SetPromptStore(prompts)

	assembler := services.NewAnswerAssembler(providers.LLM, settings.Router.Temperature)
	assembler.SetPromptStore(prompts)

	return &App{
		Settings:  settings,
		Store:     store,
		Providers: providers,
		Prompts:   prompts,
		Documents: docs,
		Search:    search,
		Router:    services.NewQuestionRouter(guard, classifier, search, assembler, settings.Router),
		Ingest:    services.NewIngestService(docs, chunker.New(), settings.Store.Layout),
	}, nil
}

// OpenStore opens the configured document store backend.
func OpenStore(ctx context.Context, s domain.StoreSettings) (driven.VectorStore, error) {
	switch s.Backend {
	case domain.StoreBackendPostgres:
		return postgres.Open(ctx, postgres.Config{
			DSN:        s.DSN,
			Collection: s.Collection,
			Layout:     s.Layout,
			Dimensions: s.Dimensions,
			Metric:     s.Metric,
		})

	case domain.StoreBackendSQLite:
		return sqlite.NewStore(s.DSN, sqlite.Config{
			Collection: s.Collection,
			Layout:     s.Layout,
			Dimensions: s.Dimensions,
			Metric:     s.Metric,
		})

	case domain.StoreBackendMemory:
		return memory.NewVectorStore(s.Dimensions, s.Metric), nil

	default:
		return nil, fmt.Errorf("store backend %q: %w", s.Backend, domain.ErrUnsupportedType)
	}
}

// IndexManager returns the store's ANN index manager, or nil when the
// backend searches exhaustively.
func (a *App) IndexManager() driven.IndexManager {
	if im, ok := a.Store.(driven.IndexManager); ok {
		return im
	}
	return nil
}

// Ping checks the store, then both providers.
func (a *App) Ping(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return err
	}
	return ai.Ping(ctx, a.Providers)
}

// Close releases the providers and the store.
func (a *App) Close() error {
	a.Providers.Close()
	if err := a.Store.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
