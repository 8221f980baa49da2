package driving

import (
	"context"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// SearchService provides retrieval over the drug document corpus.
type SearchService interface {
	// Search returns deduplicated, re-ranked results for the query.
	// An empty slice means no grounding is available and is not an error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RetrievalResult, error)
}
