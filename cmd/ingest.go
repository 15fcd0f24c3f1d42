package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest the notes tree and build the topic indexes",
	Long: `Walks every topic folder, extracts new documents into the processed
folders and builds one vector index per topic plus a global index.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		topics, err := a.initialize(cmd.Context())
		if err != nil {
			return err
		}

		if res := a.pipeline.IngestResult(); res != nil {
			fmt.Printf("Ingested %d document(s): %d extracted, %d cached, %d skipped, %d failed\n",
				res.DocumentCount(), res.Extracted, res.Reused, res.Skipped, len(res.Failed))
		}
		if report := a.pipeline.BuildReport(); report != nil {
			for _, ts := range report.Topics {
				fmt.Printf("  %-20s %4d document(s) %5d chunk(s)\n", ts.Topic, ts.Documents, ts.Chunks)
			}
			fmt.Printf("Global index: %d chunk(s) in %s\n", report.GlobalChunks, report.Duration.Round(time.Millisecond))
		}
		fmt.Printf("Ready: %d topic(s)\n", len(topics))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
