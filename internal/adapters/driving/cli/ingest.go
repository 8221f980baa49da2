package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/druginfo/internal/core/services"
)

var ingestFormat string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Load drug labels or QA pairs into the store",
	Long: `Reads JSONL or CSV records, chunks each drug label into content, meta
and summary documents, embeds them and commits them in batches.
With --layout qa each record is a {big_category, mid_category, question,
answer} pair stored as one document.

The format is taken from the file extension unless --format is given.
Use "-" to read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "", "input format: jsonl or csv")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := detectFormat(path, ingestFormat)
	if err != nil {
		return err
	}

	if err := ensureServices(cmd); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	n, err := ingestService.IngestReader(commandContext(cmd), r, format)
	cmd.Printf("Stored %d documents from %s\n", n, path)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return nil
}

// detectFormat resolves the record format from the flag or the extension.
func detectFormat(path, flag string) (string, error) {
	format := strings.ToLower(flag)
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = services.FormatCSV
		case ".jsonl", ".ndjson", ".json":
			format = services.FormatJSONL
		default:
			return "", fmt.Errorf("cannot detect format of %q, use --format", path)
		}
	}
	if format != services.FormatJSONL && format != services.FormatCSV {
		return "", fmt.Errorf("unsupported format %q", format)
	}
	return format, nil
}
