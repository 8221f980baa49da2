// Package memory provides in-memory implementations of the driven ports,
// used by tests and by the "memory" store backend.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory exact nearest-neighbour store.
type VectorStore struct {
	mu        sync.RWMutex
	docs      []domain.Document
	nextID    int64
	dimension int
	metric    domain.DistanceMetric
	closed    bool
}

// NewVectorStore creates an empty store for vectors of the given dimension.
func NewVectorStore(dimension int, metric domain.DistanceMetric) *VectorStore {
	if !metric.IsValid() {
		metric = domain.MetricCosine
	}
	return &VectorStore{dimension: dimension, metric: metric, nextID: 1}
}

// Insert appends docs atomically: either all rows are added or none.
func (s *VectorStore) Insert(_ context.Context, docs []domain.Document) (int, error) {
	for i := range docs {
		if docs[i].Embedding == nil {
			continue
		}
		if err := domain.CheckDimension(docs[i].Embedding, s.dimension); err != nil {
			return 0, fmt.Errorf("document %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, domain.ErrStoreUnavailable
	}

	for i := range docs {
		docs[i].ID = s.nextID
		s.nextID++
		s.docs = append(s.docs, domain.Document{
			ID:        docs[i].ID,
			Content:   docs[i].Content,
			Metadata:  maps.Clone(docs[i].Metadata),
			Embedding: append([]float32(nil), docs[i].Embedding...),
		})
	}
	return len(docs), nil
}

// Nearest scans every row and returns the k closest matches.
func (s *VectorStore) Nearest(
	_ context.Context, vector []float32, k int, filter domain.MetadataFilter,
) ([]domain.ScoredDocument, error) {
	if err := domain.CheckDimension(vector, s.dimension); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreUnavailable
	}

	hits := make([]domain.ScoredDocument, 0, len(s.docs))
	for _, d := range s.docs {
		if d.Embedding == nil || !filter.Matches(d.Metadata) {
			continue
		}
		hits = append(hits, domain.ScoredDocument{
			Document: d,
			Distance: s.metric.Distance(vector, d.Embedding),
		})
	}

	// Rows are kept in insertion order, so a stable sort breaks ties by ID.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// FindByProduct returns rows whose product name contains name, case-insensitively.
func (s *VectorStore) FindByProduct(_ context.Context, name string, k int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreUnavailable
	}

	needle := strings.ToLower(name)
	var out []domain.Document
	for _, d := range s.docs {
		if len(out) >= k {
			break
		}
		if strings.Contains(strings.ToLower(d.ProductName()), needle) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Count returns the number of stored rows.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Dimension is the configured embedding size.
func (s *VectorStore) Dimension() int {
	return s.dimension
}

// Metric is the distance metric.
func (s *VectorStore) Metric() domain.DistanceMetric {
	return s.metric
}

// Ping fails once the store is closed.
func (s *VectorStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreUnavailable
	}
	return nil
}

// Close marks the store unavailable.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
