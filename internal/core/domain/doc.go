// Package domain defines the core business entities for druginfo.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An embedded drug-label chunk with metadata
//   - RetrievalResult: A scored document produced by one query
//   - QueryState: The per-question record threaded through the router
//   - QAPair: A question/answer row of the QA-pair corpus layout
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
