// Package cli implements the druginfo command line using cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/druginfo/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/mcp"
	"github.com/custodia-labs/druginfo/internal/core/domain"
	"github.com/custodia-labs/druginfo/internal/core/ports/driven"
	"github.com/custodia-labs/druginfo/internal/core/ports/driving"
	"github.com/custodia-labs/druginfo/internal/logger"
)

// version is set at build time.
var version = "dev"

// PromptWatcher reloads prompt templates when their files change.
type PromptWatcher interface {
	Watch(ctx context.Context, onReload func(name string)) error
}

// Services holds the handles the commands drive.
type Services struct {
	Ask      driving.AskService
	Search   driving.SearchService
	Ingest   driving.IngestService
	Products mcp.ProductLookup
	Health   httpapi.Pinger

	// Index is nil when the store has no ANN index.
	Index driven.IndexManager

	// Prompts is optional.
	Prompts PromptWatcher

	// Close releases the services. Optional.
	Close func() error
}

// Bootstrap builds services from the resolved settings.
type Bootstrap func(ctx context.Context, settings domain.AppSettings) (*Services, error)

var (
	askService    driving.AskService
	searchService driving.SearchService
	ingestService driving.IngestService
	productLookup mcp.ProductLookup
	healthCheck   httpapi.Pinger
	indexManager  driven.IndexManager
	promptWatcher PromptWatcher
	closeServices func() error

	settings  = domain.DefaultAppSettings()
	bootstrap Bootstrap
)

var rootFlags struct {
	verbose    bool
	store      string
	collection string
	layout     string
	metric     string
}

var rootCmd = &cobra.Command{
	Use:   "druginfo",
	Short: "Answer medicine questions from drug label data",
	Long: `druginfo answers questions about medicines, dosage, side effects and
symptoms using retrieval over an embedded drug label corpus.

Questions are first checked for relevance, then classified and routed to a
symptom, drug information, side effect or general branch. Each branch
retrieves the closest label passages and grounds the generated answer on
them, returning the products it cited.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(rootFlags.verbose)
		return applyStoreFlags(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&rootFlags.store, "store", "", "store backend: postgres, sqlite or memory")
	flags.StringVar(&rootFlags.collection, "collection", "", "chunk table name")
	flags.StringVar(&rootFlags.layout, "layout", "", "store layout: chunks or qa")
	flags.StringVar(&rootFlags.metric, "metric", "", "distance metric: cosine or l2")
}

// Configure sets the base settings and the service builder used on first
// command that needs services.
func Configure(base domain.AppSettings, b Bootstrap) {
	settings = base
	bootstrap = b
}

// SetServices installs ready-made services.
func SetServices(s *Services) {
	askService = s.Ask
	searchService = s.Search
	ingestService = s.Ingest
	productLookup = s.Products
	healthCheck = s.Health
	indexManager = s.Index
	promptWatcher = s.Prompts
	closeServices = s.Close
}

// Execute runs the root command and closes any services it built.
func Execute(ctx context.Context, v string) error {
	version = v
	defer func() {
		if closeServices != nil {
			if err := closeServices(); err != nil {
				logger.Warn("closing services: %v", err)
			}
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// applyStoreFlags overrides store settings with explicitly set flags.
func applyStoreFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("store") {
		b := domain.StoreBackend(rootFlags.store)
		if !b.IsValid() {
			return fmt.Errorf("unknown store backend %q", rootFlags.store)
		}
		settings.Store.Backend = b
	}
	if flags.Changed("collection") {
		settings.Store.Collection = rootFlags.collection
	}
	if flags.Changed("layout") {
		l := domain.StoreLayout(rootFlags.layout)
		if !l.IsValid() {
			return fmt.Errorf("unknown layout %q", rootFlags.layout)
		}
		settings.Store.Layout = l
	}
	if flags.Changed("metric") {
		m := domain.DistanceMetric(rootFlags.metric)
		if !m.IsValid() {
			return fmt.Errorf("unknown metric %q", rootFlags.metric)
		}
		settings.Store.Metric = m
	}
	return nil
}

// ensureServices runs the bootstrap once, when services were not installed.
func ensureServices(cmd *cobra.Command) error {
	if askService != nil || bootstrap == nil {
		return nil
	}
	s, err := bootstrap(commandContext(cmd), settings)
	if err != nil {
		return err
	}
	SetServices(s)
	return nil
}

// startPromptWatcher reloads prompts in the background until ctx ends.
func startPromptWatcher(ctx context.Context) {
	if promptWatcher == nil {
		return
	}
	go func() {
		err := promptWatcher.Watch(ctx, func(name string) {
			logger.Info("prompt %s reloaded", name)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("prompt watcher stopped: %v", err)
		}
	}()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
