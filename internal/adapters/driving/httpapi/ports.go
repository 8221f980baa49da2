package httpapi

import (
	"context"
	"errors"

	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
)

// ErrMissingAskService is returned when the ask service is not provided.
var ErrMissingAskService = errors.New("httpapi: ask service is required")

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("httpapi: search service is required")

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ports aggregates the services the HTTP server drives.
type Ports struct {
	Ask    driving.AskService
	Search driving.SearchService

	// Health is checked by /healthz. Optional; nil always reports ok.
	Health Pinger
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
