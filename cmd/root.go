package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/minutes/internal/config"
	"github.com/ziadkadry99/minutes/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "minutes",
	Short: "Ask questions about your meeting notes",
	Long: `minutes indexes a folder of meeting notes organised by topic and answers
questions about them with a language model. Follow-up questions are
understood in the context of the conversation, and an agent can route a
question to the topic whose notes answer it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		level := "info"
		if verbose {
			level = "debug"
		}
		logging.Setup(level)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
