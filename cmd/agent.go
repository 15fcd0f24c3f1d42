package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ziadkadry99/minutes/internal/agent"
)

var agentCmd = &cobra.Command{
	Use:   "agent [question...]",
	Short: "Let the routing agent pick the topic for a question",
	Long: `Runs the topic-routing agent. Every configured topic with an index becomes
a tool; the agent decides which one to consult. Without a question an
interactive session starts. Use -v to print every reasoning step.`,
	Args: cobra.ArbitraryArgs,
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
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

	acfg := a.agentConfig()
	if verbose {
		acfg.OnStep = func(s agent.Step) {
			fmt.Fprintf(os.Stderr, "Thought: %s\nAction: %s\nAction Input: %s\nObservation: %s\n\n",
				s.Thought, s.Action, s.ActionInput, s.Observation)
		}
	}
	ag, err := agent.New(a.pipeline.Provider(), sess, acfg)
	if err != nil {
		return err
	}

	run := func(q string) error {
		res, err := ag.Run(ctx, q)
		if err != nil {
			return err
		}
		fmt.Println(res.Answer)
		return nil
	}

	if q, ok := questionArg(args); ok {
		return run(q)
	}
	return repl(ctx, "agent", func(line string) error {
		if line == "/reset" {
			sess.ResetHistory(ctx)
			fmt.Println("History cleared.")
			return nil
		}
		return run(line)
	})
}
