package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()
	require.NotNil(t, km)

	tests := []struct {
		name    string
		keys    []string
		binding []string
	}{
		{"quit", []string{"ctrl+c"}, km.Quit.Keys()},
		{"send", []string{"enter"}, km.Send.Keys()},
		{"cancel", []string{"esc"}, km.Cancel.Keys()},
		{"switch view", []string{"tab"}, km.SwitchView.Keys()},
		{"up", []string{"up", "k"}, km.Up.Keys()},
		{"down", []string{"down", "j"}, km.Down.Keys()},
		{"page up", []string{"pgup"}, km.PageUp.Keys()},
		{"clear", []string{"ctrl+l"}, km.Clear.Keys()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range tt.keys {
				assert.Contains(t, tt.binding, k)
			}
		})
	}
}

func TestHelpSets(t *testing.T) {
	km := DefaultKeyMap()

	assert.NotEmpty(t, km.ChatHelp())
	assert.NotEmpty(t, km.SearchHelp())
	assert.NotEmpty(t, km.ResultsHelp())

	for _, b := range km.ChatHelp() {
		assert.NotEmpty(t, b.Help().Key)
		assert.NotEmpty(t, b.Help().Desc)
	}
}

func TestMatches(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("k", km.Up))
	assert.True(t, Matches("tab", km.SwitchView))
	assert.False(t, Matches("x", km.Up))
	assert.False(t, Matches("", km.Send))
}
