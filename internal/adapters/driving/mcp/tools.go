package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// maxSearchLimit caps the search tool limit.
const maxSearchLimit = 20

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the drug or symptom question, in Korean or English"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer       string            `json:"answer"`
	QuestionType string            `json:"question_type"`
	InDomain     bool              `json:"in_domain"`
	Citations    []domain.Citation `json:"citations"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query to find drug label passages"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 4)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ProductName string            `json:"product_name"`
	Score       float64           `json:"score"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "ask_drug_question",
		Description: "Answer a question about medicines, dosage, side effects or symptoms " +
			"using the drug label corpus. Returns the answer with the products it was grounded on.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_drug_documents",
		Description: "Search drug label passages by meaning and return the closest matches",
	}, s.handleSearch)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	state, err := s.ports.Ask.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	citations := state.Citations
	if citations == nil {
		citations = []domain.Citation{}
	}
	return nil, AskOutput{
		Answer:       state.Answer,
		QuestionType: state.QuestionType.String(),
		InDomain:     state.InDomain,
		Citations:    citations,
	}, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{FanOut: s.ports.FanOut, TopN: s.ports.TopN}
	if input.Limit > 0 {
		opts.TopN = min(input.Limit, maxSearchLimit)
		opts.FanOut = max(opts.FanOut, opts.TopN)
	}

	results, err := s.ports.Search.Search(ctx, strings.TrimSpace(input.Query), opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = SearchResultOutput{
			ProductName: results[i].ProductName(),
			Score:       results[i].Score,
			Content:     results[i].Content,
			Metadata:    results[i].Metadata,
		}
	}

	return nil, output, nil
}
