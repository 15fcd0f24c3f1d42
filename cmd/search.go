package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ziadkadry99/minutes/internal/vectordb"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the note chunks most similar to a query",
	Long:  `Retrieves chunks from the global index, or from one topic with --topic, without calling the chat model.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().String("topic", "", "search a single topic index")
	searchCmd.Flags().Int("limit", 5, "maximum number of results")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchHit struct {
	Topic      string  `json:"topic"`
	Source     string  `json:"source"`
	Index      int     `json:"index"`
	Similarity float32 `json:"similarity"`
	Text       string  `json:"text"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	topic, _ := cmd.Flags().GetString("topic")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.initialize(ctx); err != nil {
		return err
	}
	results, err := a.pipeline.Search(ctx, topic, args[0], limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		hits := make([]searchHit, len(results))
		for i, r := range results {
			hits[i] = searchHit{
				Topic:      r.Chunk.Topic,
				Source:     r.Chunk.SourcePath,
				Index:      r.Chunk.Index,
				Similarity: r.Similarity,
				Text:       r.Chunk.Text,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	fmt.Print(vectordb.FormatResults(results))
	return nil
}
