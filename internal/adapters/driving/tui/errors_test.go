package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	assert.Contains(t, ErrMissingAskService.Error(), "ask service")
	assert.Contains(t, ErrInvalidPorts.Error(), "ports")
	assert.NotEqual(t, ErrMissingAskService, ErrInvalidPorts)
}
