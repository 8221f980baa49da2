package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// IngestService loads corpora into the document store.
type IngestService interface {
	// IngestLabels chunks and stores drug labels. It returns the number of
	// documents committed, which is accurate even when an error is returned.
	IngestLabels(ctx context.Context, labels []domain.DrugLabel) (int, error)

	// IngestQAPairs stores QA pairs for the QA layout.
	IngestQAPairs(ctx context.Context, pairs []domain.QAPair) (int, error)

	// IngestReader parses JSONL or CSV records from r and stores them.
	// format is "jsonl" or "csv".
	IngestReader(ctx context.Context, r io.Reader, format string) (int, error)
}
