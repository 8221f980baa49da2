package mcp

import (
	"context"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
)

// ProductLookup finds stored chunks by product name.
type ProductLookup interface {
	FindByProduct(ctx context.Context, name string, k int) ([]domain.Document, error)
}

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ask answers questions through the router.
	Ask driving.AskService

	// Search provides retrieval without generation.
	Search driving.SearchService

	// Products backs the product resource. Optional.
	Products ProductLookup

	// Search defaults applied when a tool call omits them.
	FanOut int
	TopN   int
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAskService
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
