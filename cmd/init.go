package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ziadkadry99/minutes/internal/config"
	"github.com/ziadkadry99/minutes/internal/corpus"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a minutes configuration with an interactive wizard",
	Long: `Runs an interactive wizard and writes .minutes.yml. With --scaffold the
notes tree is created as well: one folder per topic with its raw and
processed sub-folders, plus the index folder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard(cfgFile)
		if err != nil {
			return err
		}
		scaffold, _ := cmd.Flags().GetBool("scaffold")
		if !scaffold {
			return nil
		}
		if err := corpus.Scaffold(layoutFromConfig(cfg), cfg.Topics); err != nil {
			return err
		}
		fmt.Printf("Created notes tree under %s for %d topic(s)\n", cfg.NotesDir, len(cfg.Topics))
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("scaffold", false, "also create the topic folders")
	rootCmd.AddCommand(initCmd)
}
