package tui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// MockAskService answers every question with a fixed state.
type MockAskService struct {
	State    *domain.QueryState
	Err      error
	Question string
}

func (m *MockAskService) Ask(ctx context.Context, question string) (*domain.QueryState, error) {
	return m.AskStream(ctx, question, func(string) error { return nil })
}

func (m *MockAskService) AskStream(
	_ context.Context, question string, onFragment func(string) error,
) (*domain.QueryState, error) {
	m.Question = question
	if m.Err != nil {
		return nil, m.Err
	}
	if err := onFragment(m.State.Answer); err != nil {
		return nil, err
	}
	return m.State, nil
}

// MockSearchService returns fixed results.
type MockSearchService struct {
	Results []domain.RetrievalResult
	Opts    domain.SearchOptions
}

func (m *MockSearchService) Search(
	_ context.Context, _ string, opts domain.SearchOptions,
) ([]domain.RetrievalResult, error) {
	m.Opts = opts
	return m.Results, nil
}

func TestNewPorts(t *testing.T) {
	ask := &MockAskService{}
	search := &MockSearchService{}

	p := NewPorts(ask, search)

	assert.Equal(t, ask, p.Ask)
	assert.Equal(t, search, p.Search)
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ports   *Ports
		wantErr error
	}{
		{"nil ports", nil, ErrInvalidPorts},
		{"missing ask", &Ports{Search: &MockSearchService{}}, ErrMissingAskService},
		{"ask only", &Ports{Ask: &MockAskService{}}, nil},
		{"all", NewPorts(&MockAskService{}, &MockSearchService{}), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
