// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants ask grounded drug questions and search the label corpus.
package mcp

import "errors"

// ErrMissingAskService is returned when the ask service is not provided.
var ErrMissingAskService = errors.New("mcp: ask service is required")

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
