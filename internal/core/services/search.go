package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Default retrieval sizes.
const (
	DefaultFanOut = 6
	DefaultTopN   = 4

	// MaxFanOut bounds the candidates fetched for one query, and with it
	// the result count.
	MaxFanOut = 50
)

// minTokenRunes is the shortest question token considered for product matching.
const minTokenRunes = 2

// SearchService is the vector search engine: it fans out a nearest-neighbour
// query, removes duplicate passages and boosts documents naming the product
// the user asked about.
type SearchService struct {
	docs *DocumentStore
}

// NewSearchService creates a new search service.
func NewSearchService(docs *DocumentStore) *SearchService {
	return &SearchService{docs: docs}
}

// Search returns up to opts.TopN results for query.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.RetrievalResult, error) {
	logger.Section("Vector Search")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.RetrievalResult{}, nil
	}

	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	fanOut := opts.FanOut
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	topN = min(topN, MaxFanOut)
	fanOut = min(max(fanOut, topN), MaxFanOut)
	logger.Debug("Fan-out: %d, top-N: %d, filter: %v", fanOut, topN, opts.Filter)

	candidates, err := s.docs.SearchWithScore(ctx, query, fanOut, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	logger.Debug("Candidates: %d", len(candidates))

	results := Deduplicate(candidates)
	if len(results) < len(candidates) {
		logger.Debug("Removed %d duplicate passages", len(candidates)-len(results))
	}

	if opts.DisableBoost {
		return truncate(results, topN), nil
	}
	return BoostProductMatches(query, results, topN), nil
}

// Deduplicate drops results whose content was already seen, keeping the
// first (highest-ranked) occurrence and the original order.
func Deduplicate(results []domain.RetrievalResult) []domain.RetrievalResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]domain.RetrievalResult, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.Content]; dup {
			continue
		}
		seen[r.Content] = struct{}{}
		out = append(out, r)
	}
	return out
}

// BoostProductMatches moves results whose product name is mentioned in the
// question ahead of the rest, keeping relative order within each group, and
// truncates to topN.
func BoostProductMatches(question string, results []domain.RetrievalResult, topN int) []domain.RetrievalResult {
	tokens := questionTokens(question)

	matches := make([]domain.RetrievalResult, 0, len(results))
	others := make([]domain.RetrievalResult, 0, len(results))
	for _, r := range results {
		if MentionsProduct(question, tokens, r.ProductName()) {
			matches = append(matches, r)
		} else {
			others = append(others, r)
		}
	}
	if len(matches) > 0 {
		logger.Debug("Product-name matches boosted: %d", len(matches))
	}

	return truncate(append(matches, others...), topN)
}

// MentionsProduct reports whether product appears verbatim in the question
// or shares a token with it.
func MentionsProduct(question string, tokens []string, product string) bool {
	if product == "" || product == domain.UnknownProduct {
		return false
	}
	if strings.Contains(question, product) {
		return true
	}
	for _, tok := range tokens {
		if strings.Contains(product, tok) {
			return true
		}
	}
	return false
}

// questionTokens splits on whitespace and strips punctuation. Tokens shorter
// than minTokenRunes are dropped so single-syllable particles never match.
func questionTokens(question string) []string {
	fields := strings.Fields(question)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if utf8.RuneCountInString(tok) >= minTokenRunes {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func truncate(results []domain.RetrievalResult, n int) []domain.RetrievalResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}
