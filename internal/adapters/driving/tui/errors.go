package tui

import "errors"

// ErrMissingAskService is returned when the ask service is not provided.
var ErrMissingAskService = errors.New("tui: ask service is required")

// ErrInvalidPorts is returned when no ports are provided at all.
var ErrInvalidPorts = errors.New("tui: ports are required")
