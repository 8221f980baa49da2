package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/druginfo/internal/adapters/driving/tui"
)

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for druginfo.

The chat view streams answers to your questions with the documents they
cite. The search view runs retrieval only and shows the matching passages.

Controls:
  Enter    - Ask / Search
  Esc      - Stop answer / New search
  Tab      - Switch between chat and search
  PgUp/Dn  - Scroll the transcript
  Ctrl+L   - Clear the transcript
  Ctrl+C   - Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// newTUIApp builds the TUI model from the configured services.
func newTUIApp(cmd *cobra.Command) (*tui.App, error) {
	ports := tui.NewPorts(askService, searchService)
	ports.FanOut = settings.Router.FanOut
	ports.TopN = settings.Router.TopN

	app, err := tui.NewApp(ports)
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI: %w", err)
	}
	return app.WithContext(commandContext(cmd)), nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	if err := ensureServices(cmd); err != nil {
		return err
	}
	startPromptWatcher(commandContext(cmd))

	app, err := newTUIApp(cmd)
	if err != nil {
		return err
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
