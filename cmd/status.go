package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/indexer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the topics on disk and the last index build",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		layout := layoutFromConfig(cfg)

		onDisk, err := layout.Topics()
		if err != nil {
			return fmt.Errorf("listing topics in %s: %w", cfg.NotesDir, err)
		}
		fmt.Printf("Notes:  %s (%d topic folder(s))\n", cfg.NotesDir, len(onDisk))
		printTopicFolders(layout, onDisk)

		m, err := indexer.LoadManifest(layout.IndexPath())
		if err != nil {
			return err
		}
		if m == nil {
			fmt.Println("Index:  never built, run `minutes ingest`")
			return nil
		}
		fmt.Printf("Index:  built %s with %s (chunk %d/%d)\n",
			m.BuiltAt.Local().Format(time.DateTime), m.Embedder, m.ChunkSize, m.ChunkOverlap)
		for _, ts := range m.Topics {
			fmt.Printf("  %-20s %4d document(s) %5d chunk(s)\n", ts.Topic, ts.Documents, ts.Chunks)
		}
		fmt.Printf("  global: %d chunk(s)\n", m.GlobalChunks)
		for _, t := range m.Failed {
			fmt.Printf("  failed: %s\n", t)
		}
		return nil
	},
}

func printTopicFolders(l corpus.Layout, topics []string) {
	for _, t := range topics {
		fmt.Printf("  %s\n", l.TopicDir(t))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
