package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/druginfo/internal/core/domain"
)

var (
	askJSON   bool
	askTrace  bool
	askStream bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about a medicine",
	Long: `Routes a single question through the relevance check, the question
classifier and retrieval, then prints the grounded answer and the products it
was based on.

Examples:
  druginfo ask "타이레놀은 하루에 몇 번 먹어요?"
  druginfo ask --stream "두통이 심할 때 먹을 수 있는 약은?"
  druginfo ask --json --trace "이부프로펜 부작용"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the full query state as JSON")
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "print the visited router states")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer as it is generated")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd); err != nil {
		return err
	}
	if askService == nil {
		return errors.New("ask service not configured")
	}

	question := strings.Join(args, " ")
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	var (
		state *domain.QueryState
		err   error
	)
	streamed := askStream && !askJSON
	if streamed {
		state, err = askService.AskStream(ctx, question, func(fragment string) error {
			_, werr := io.WriteString(out, fragment)
			return werr
		})
		fmt.Fprintln(out)
	} else {
		state, err = askService.Ask(ctx, question)
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputAskJSON(cmd, state)
	}
	printAnswer(cmd, state, !streamed, askTrace)
	return nil
}

func outputAskJSON(cmd *cobra.Command, state *domain.QueryState) error {
	out := *state
	if !askTrace {
		out.Trace = nil
	}
	out.Retrieved = nil
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// printAnswer prints the answer (unless it was already streamed), the
// cited products and optionally the router trace.
func printAnswer(cmd *cobra.Command, state *domain.QueryState, withAnswer, withTrace bool) {
	out := cmd.OutOrStdout()
	if withAnswer {
		fmt.Fprintln(out, state.Answer)
	}

	if len(state.Citations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "참고 문서:")
		for i, c := range state.Citations {
			fmt.Fprintf(out, "  [%d] %s (%.2f)\n", i+1, c.ProductName, c.Score)
		}
	}

	if withTrace {
		steps := make([]string, len(state.Trace))
		for i, s := range state.Trace {
			steps[i] = string(s)
		}
		fmt.Fprintf(out, "\nTrace: %s (%s)\n", strings.Join(steps, " -> "), state.QuestionType)
	}
}
