package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// exitWords end a chat session.
var exitWords = map[string]bool{"quit": true, "exit": true, "bye": true}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question session",
	Long: `Reads questions line by line and streams each answer as it is generated.
Type quit, exit or bye to leave. Input can also be piped:

  echo "아스피린 복용법" | druginfo chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd); err != nil {
		return err
	}
	if askService == nil {
		return errors.New("ask service not configured")
	}

	ctx := commandContext(cmd)
	startPromptWatcher(ctx)

	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	interactive := isTerminal(in)
	if interactive {
		fmt.Fprintln(out, "의약품에 대해 질문해 주세요. 종료하려면 quit, exit 또는 bye 를 입력하세요.")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for {
		if interactive {
			fmt.Fprint(out, "\n질문> ")
		}
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if exitWords[strings.ToLower(question)] {
			fmt.Fprintln(out, "안녕히 가세요.")
			return nil
		}

		state, err := askService.AskStream(ctx, question, func(fragment string) error {
			_, werr := io.WriteString(out, fragment)
			return werr
		})
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}
		printAnswer(cmd, state, false, rootFlags.verbose)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
