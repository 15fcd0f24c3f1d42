package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ziadkadry99/minutes/internal/llm"
	"github.com/ziadkadry99/minutes/internal/rag"
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask a question about the meeting notes",
	Long: `Answers a question from the global index, or from one topic with --topic.
Without a question an interactive session starts; follow-up questions are
rewritten against the conversation so far. Type /reset to forget the
conversation and /exit to quit.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("topic", "", "answer from a single topic index")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	topic, _ := cmd.Flags().GetString("topic")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.printUsage()

	ctx := cmd.Context()
	if _, err := a.initialize(ctx); err != nil {
		return err
	}
	sess := a.pipeline.DefaultSession()

	ask := func(q string) error {
		var onDelta llm.DeltaFunc
		if cfg.Stream {
			onDelta = func(d string) error {
				_, err := fmt.Fprint(os.Stdout, d)
				return err
			}
		}
		ans, err := sess.AskTopic(ctx, topic, q, onDelta)
		if err != nil {
			return err
		}
		if onDelta == nil {
			fmt.Print(ans.Text)
		}
		fmt.Println()
		if verbose {
			printSources(ans)
		}
		return nil
	}

	if q, ok := questionArg(args); ok {
		return ask(q)
	}
	return repl(ctx, "ask", func(line string) error {
		if line == "/reset" {
			sess.ResetHistory(ctx)
			fmt.Println("History cleared.")
			return nil
		}
		return ask(line)
	})
}

// questionArg joins an unquoted multi-word question back together.
func questionArg(args []string) (string, bool) {
	q := strings.TrimSpace(strings.Join(args, " "))
	return q, q != ""
}

func printSources(ans *rag.Answer) {
	if ans.Standalone != "" {
		fmt.Fprintf(os.Stderr, "standalone: %s\n", ans.Standalone)
	}
	for _, s := range ans.Sources {
		fmt.Fprintf(os.Stderr, "  %s/%s#%d (%.4f)\n", s.Chunk.Topic, s.Chunk.SourcePath, s.Chunk.Index, s.Similarity)
	}
}

// repl reads questions from stdin until /exit or EOF. Errors from handle
// are printed and the loop goes on.
func repl(ctx context.Context, name string, handle func(line string) error) error {
	fmt.Fprintf(os.Stderr, "minutes %s: type a question, /reset to clear history, /exit to quit\n", name)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !sc.Scan() {
			fmt.Fprintln(os.Stderr)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := handle(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
