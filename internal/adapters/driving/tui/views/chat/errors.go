package chat

import "errors"

// ErrNoAskService indicates that no ask service was provided.
var ErrNoAskService = errors.New("ask service is required")

// errStopped marks a turn the user cancelled.
var errStopped = errors.New("stopped")
