package driven

import (
	"context"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// VectorStore persists embedded documents and answers nearest-neighbour
// queries. A store handle is opened once at startup and shared by every
// request; implementations scope connections to the individual call.
type VectorStore interface {
	// Insert persists documents with their embeddings in one transaction and
	// assigns their IDs. It returns the number of rows committed. Every
	// embedding must have exactly Dimension() elements.
	Insert(ctx context.Context, docs []domain.Document) (int, error)

	// Nearest returns up to k documents closest to vector, restricted to
	// rows matching filter, ordered by distance then insertion order.
	// Rows without an embedding are never returned.
	Nearest(ctx context.Context, vector []float32, k int, filter domain.MetadataFilter) ([]domain.ScoredDocument, error)

	// FindByProduct returns up to k documents whose product name contains
	// name (case-insensitive), in insertion order.
	FindByProduct(ctx context.Context, name string, k int) ([]domain.Document, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)

	// Dimension is the configured embedding size.
	Dimension() int

	// Metric is the distance metric used by Nearest.
	Metric() domain.DistanceMetric

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// IndexManager is implemented by stores that maintain an approximate
// nearest-neighbour index.
type IndexManager interface {
	// RebuildIndex drops and recreates the ANN index sized to the current row count.
	RebuildIndex(ctx context.Context) error
}
