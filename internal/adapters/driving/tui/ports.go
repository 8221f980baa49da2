// Package tui provides an interactive terminal user interface for druginfo.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the TUI.
type Ports struct {
	// Ask answers questions through the router.
	Ask driving.AskService

	// Search runs retrieval without generation. Optional; the search
	// view reports an error when it is missing.
	Search driving.SearchService

	// FanOut and TopN are the search defaults. Zero uses the service defaults.
	FanOut int
	TopN   int
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(ask driving.AskService, search driving.SearchService) *Ports {
	return &Ports{
		Ask:    ask,
		Search: search,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Ask == nil {
		return ErrMissingAskService
	}
	return nil
}
