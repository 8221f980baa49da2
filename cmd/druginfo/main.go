// Command druginfo answers medicine questions over a drug label corpus.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/druginfo/internal/adapters/driven/config/env"
	"github.com/custodia-labs/druginfo/internal/adapters/driving/cli"
	"github.com/custodia-labs/druginfo/internal/app"
	"github.com/custodia-labs/druginfo/internal/core/domain"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := env.LoadDotEnv(); err != nil {
		return err
	}

	store, err := app.OpenConfigStore("")
	if err != nil {
		return fmt.Errorf("config store: %w", err)
	}

	// Invalid settings are reported by bootstrap, after store flags had a
	// chance to fix them, so commands like version still run.
	settings, err := env.Resolve(store, os.LookupEnv)
	if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Configure(settings, bootstrap)
	return cli.Execute(ctx, version)
}

// bootstrap builds the service graph once flags have been applied.
func bootstrap(ctx context.Context, settings domain.AppSettings) (*cli.Services, error) {
	if err := env.Validate(settings); err != nil {
		return nil, err
	}

	a, err := app.New(ctx, settings, app.Options{})
	if err != nil {
		return nil, err
	}

	return &cli.Services{
		Ask:      a.Router,
		Search:   a.Search,
		Ingest:   a.Ingest,
		Products: a.Documents,
		Health:   a,
		Index:    a.IndexManager(),
		Prompts:  a.Prompts,
		Close:    a.Close,
	}, nil
}
