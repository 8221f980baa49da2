package mcp

import (
	"context"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// mockAskService is a mock implementation of driving.AskService.
type mockAskService struct {
	state    *domain.QueryState
	err      error
	question string
}

func (m *mockAskService) Ask(_ context.Context, question string) (*domain.QueryState, error) {
	m.question = question
	return m.state, m.err
}

func (m *mockAskService) AskStream(
	_ context.Context,
	question string,
	onFragment func(string) error,
) (*domain.QueryState, error) {
	m.question = question
	if m.state != nil {
		if err := onFragment(m.state.Answer); err != nil {
			return nil, err
		}
	}
	return m.state, m.err
}

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.RetrievalResult
	err     error
	query   string
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.RetrievalResult, error) {
	m.query = query
	m.opts = opts
	return m.results, m.err
}

// mockProductLookup is a mock implementation of ProductLookup.
type mockProductLookup struct {
	docs []domain.Document
	err  error
	name string
}

func (m *mockProductLookup) FindByProduct(_ context.Context, name string, _ int) ([]domain.Document, error) {
	m.name = name
	return m.docs, m.err
}
