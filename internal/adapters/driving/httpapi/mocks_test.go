package httpapi

import (
	"context"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

type mockAskService struct {
	state     *domain.QueryState
	err       error
	fragments []string
	question  string
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
	for _, f := range m.fragments {
		if err := onFragment(f); err != nil {
			return nil, err
		}
	}
	return m.state, m.err
}

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

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}
