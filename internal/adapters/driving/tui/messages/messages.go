// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewChat is the question and answer transcript.
	ViewChat ViewType = iota
	// ViewSearch is the retrieval-only search view.
	ViewSearch
)

// String returns the view name.
func (v ViewType) String() string {
	switch v {
	case ViewChat:
		return "chat"
	case ViewSearch:
		return "search"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// AnswerFragment carries one streamed piece of an answer.
// Turn identifies the question the fragment belongs to.
type AnswerFragment struct {
	Turn int
	Text string
}

// AnswerCompleted is sent when the router finished a question.
type AnswerCompleted struct {
	Turn  int
	State *domain.QueryState
	Err   error
}

// SearchCompleted carries search results back to the model. Seq numbers
// the search so results of a superseded query can be dropped.
type SearchCompleted struct {
	Seq     int
	Results []domain.RetrievalResult
	Err     error
}

// ErrorOccurred is sent when an operation fails.
type ErrorOccurred struct {
	Err error
}

// Quit requests the program to exit.
type Quit struct{}
