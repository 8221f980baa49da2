package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/druginfo/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves the question answering API:

  POST /api/ask          {"question": "..."}
  POST /api/ask/stream   server-sent events of answer fragments
  GET  /api/search       ?q=&k=&n=&filter=key=value
  GET  /healthz

Prompt template files are reloaded when they change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd); err != nil {
		return err
	}
	if askService == nil || searchService == nil {
		return errors.New("services not configured")
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Ask:    askService,
		Search: searchService,
		Health: healthCheck,
	}, httpapi.Config{
		RequestsPerMinute: settings.HTTP.RequestsPerMinute,
		FanOut:            settings.Router.FanOut,
		TopN:              settings.Router.TopN,
	})
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = settings.HTTP.Addr
	}

	ctx := commandContext(cmd)
	startPromptWatcher(ctx)

	cmd.Printf("HTTP server listening on %s\n", addr)
	return server.Run(ctx, addr)
}
