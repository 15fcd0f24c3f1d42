package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/db"
	"github.com/ziadkadry99/minutes/internal/ingest"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget which notes were processed",
	Long: `Empties the processed folders so the next ingest extracts every document
again. With --topic only that topic is reset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := db.Open(filepath.Join(cfg.DataDir, db.FileName))
		if err != nil {
			return err
		}
		defer database.Close()

		tracker := ingest.NewTracker(ingest.Options{
			Layout:  layoutFromConfig(cfg),
			Include: cfg.Include,
			Exclude: cfg.Exclude,
			Audit:   audit.NewStore(database),
			Logger:  slog.Default(),
		})
		if topic != "" {
			if err := tracker.ResetTopic(cmd.Context(), topic); err != nil {
				return err
			}
			fmt.Printf("Reset topic %s\n", topic)
			return nil
		}
		if err := tracker.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Reset all topics")
		return nil
	},
}

func init() {
	resetCmd.Flags().String("topic", "", "reset a single topic")
	rootCmd.AddCommand(resetCmd)
}
