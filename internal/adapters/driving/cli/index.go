package cli

import (
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the approximate nearest-neighbour index",
	Long: `Drops and recreates the ivfflat index on the embedding column, sized to
the current row count. Run it after large ingests. Backends that search
exhaustively have no index and the command does nothing.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd); err != nil {
		return err
	}
	if indexManager == nil {
		cmd.Printf("The %s store searches exhaustively; no index to rebuild.\n", settings.Store.Backend)
		return nil
	}
	if err := indexManager.RebuildIndex(commandContext(cmd)); err != nil {
		return err
	}
	cmd.Printf("Index rebuilt (%s).\n", settings.Store.Metric)
	return nil
}
