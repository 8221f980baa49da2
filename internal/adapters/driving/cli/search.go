package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/services"
)

// snippetLength is the number of runes shown per result.
const snippetLength = 120

var (
	searchFanOut  int
	searchTopN    int
	searchFilters []string
	searchProduct string
	searchNoBoost bool
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search drug label passages",
	Long: `Runs nearest-neighbour retrieval without generating an answer.
Fetches k candidates, removes duplicate passages, moves passages whose
product is named in the query to the front and keeps the top n.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchFanOut, "fanout", "k", 0, "candidates fetched before re-ranking (default from config)")
	searchCmd.Flags().IntVarP(&searchTopN, "limit", "n", 0, "maximum number of results (default from config)")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "exact metadata match, key=value (repeatable)")
	searchCmd.Flags().StringVar(&searchProduct, "product", "", "restrict to one product name")
	searchCmd.Flags().BoolVar(&searchNoBoost, "no-boost", false, "disable product name re-ranking")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd); err != nil {
		return err
	}
	if searchService == nil {
		return errors.New("search service not configured")
	}

	filter, err := parseFilterFlags(searchFilters)
	if err != nil {
		return err
	}
	if searchProduct != "" {
		if filter == nil {
			filter = domain.MetadataFilter{}
		}
		filter[domain.MetaProductName] = searchProduct
	}

	opts := domain.SearchOptions{
		FanOut:       firstPositive(searchFanOut, settings.Router.FanOut),
		TopN:         firstPositive(searchTopN, settings.Router.TopN),
		Filter:       filter,
		DisableBoost: searchNoBoost,
	}

	results, err := searchService.Search(commandContext(cmd), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func parseFilterFlags(values []string) (domain.MetadataFilter, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filter := make(domain.MetadataFilter, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", v)
		}
		filter[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return filter, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func outputSearchJSON(cmd *cobra.Command, results []domain.RetrievalResult) error {
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.RetrievalResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, results[i].ProductName(), results[i].Score)
		if section := results[i].Metadata[domain.MetaSection]; section != "" {
			cmd.Printf("      Section: %s\n", section)
		}
		if snippet := services.Snippet(results[i].Content, snippetLength); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
	return nil
}
