package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// DefaultInsertBatchSize is the number of rows committed per transaction.
const DefaultInsertBatchSize = 100

// DocumentStore combines an embedding provider with a vector store to offer
// text-level insert and nearest-neighbour search.
type DocumentStore struct {
	embedder  driven.EmbeddingService
	store     driven.VectorStore
	batchSize int
}

// NewDocumentStore creates a document store. batchSize <= 0 selects
// DefaultInsertBatchSize.
func NewDocumentStore(embedder driven.EmbeddingService, store driven.VectorStore, batchSize int) *DocumentStore {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	return &DocumentStore{
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
	}
}

// Store returns the underlying vector store.
func (s *DocumentStore) Store() driven.VectorStore {
	return s.store
}

// Insert embeds content and persists it as one row.
func (s *DocumentStore) Insert(ctx context.Context, content string, metadata map[string]string) (int64, error) {
	docs := []domain.Document{{Content: content, Metadata: metadata}}
	if _, err := s.InsertBatch(ctx, docs); err != nil {
		return 0, err
	}
	return docs[0].ID, nil
}

// InsertBatch embeds and persists docs. Every embedding is validated against
// the store dimension before anything is written. Rows are committed in
// transactional batches; the returned count is the number of rows committed,
// also on error. IDs are written back into docs.
func (s *DocumentStore) InsertBatch(ctx context.Context, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i := range docs {
		if strings.TrimSpace(docs[i].Content) == "" {
			return 0, fmt.Errorf("document %d: empty content: %w", i, domain.ErrInvalidInput)
		}
		texts[i] = docs[i].Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embed batch: got %d vectors for %d texts: %w", len(vectors), len(docs), domain.ErrProvider)
	}

	dim := s.store.Dimension()
	for i := range docs {
		if err := domain.CheckDimension(vectors[i], dim); err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
		docs[i].Embedding = vectors[i]
	}

	committed := 0
	for start := 0; start < len(docs); start += s.batchSize {
		end := min(start+s.batchSize, len(docs))
		n, err := s.store.Insert(ctx, docs[start:end])
		committed += n
		if err != nil {
			return committed, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		logger.Debug("Committed %d rows (%d/%d)", n, committed, len(docs))
	}

	return committed, nil
}

// Search embeds query and returns the k nearest rows matching filter with
// their raw distance.
func (s *DocumentStore) Search(
	ctx context.Context, query string, k int, filter domain.MetadataFilter,
) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		return []domain.ScoredDocument{}, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := domain.CheckDimension(vector, s.store.Dimension()); err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.store.Nearest(ctx, vector, k, filter)
	if err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
	}
	return hits, nil
}

// SearchWithScore is Search with distances converted to similarity scores.
// Scores are non-increasing with rank.
func (s *DocumentStore) SearchWithScore(
	ctx context.Context, query string, k int, filter domain.MetadataFilter,
) ([]domain.RetrievalResult, error) {
	hits, err := s.Search(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}

	metric := s.store.Metric()
	results := make([]domain.RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = domain.RetrievalResult{
			Content:  h.Document.Content,
			Metadata: h.Document.Metadata,
			Score:    metric.Score(h.Distance),
		}
	}
	return results, nil
}

// FindByProduct returns documents whose product name contains name, or
// ErrNoResults when none does.
func (s *DocumentStore) FindByProduct(ctx context.Context, name string, k int) ([]domain.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("product name: %w", domain.ErrInvalidInput)
	}
	docs, err := s.store.FindByProduct(ctx, name, k)
	if err != nil {
		return nil, fmt.Errorf("find by product: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("product %q: %w", name, domain.ErrNoResults)
	}
	return docs, nil
}

// IsFatal reports whether err must be returned to the caller instead of
// being rendered as an answer.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrDimensionMismatch)
}
