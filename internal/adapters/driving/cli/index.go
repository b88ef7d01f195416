package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

var (
	indexQueryLimit int
	indexQueryJSON  bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the regulatory knowledge index",
	Long: `Build and inspect the knowledge index over the regulatory corpus.

The corpus directory is set with 'docreview settings set corpus.dir <path>'.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the index from the corpus",
	Long: `Read the corpus, chunk and embed it, and replace the live index.
Reviews running during a build keep using the previous index.`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the index manifest and freshness",
	Args:  cobra.NoArgs,
	RunE:  runIndexStatus,
}

var indexQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Find corpus passages related to text",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexQuery,
}

func init() {
	indexQueryCmd.Flags().IntVarP(&indexQueryLimit, "limit", "n", 5, "maximum number of passages")
	indexQueryCmd.Flags().BoolVar(&indexQueryJSON, "json", false, "output passages as JSON")
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
	indexCmd.AddCommand(indexQueryCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	cmd.Println("Building index...")
	manifest, err := indexService.Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	cmd.Printf("Indexed %d chunks from %d sources\n", manifest.ChunkCount, manifest.SourceCount)
	cmd.Printf("  Model: %s (%d dimensions)\n", manifest.EmbeddingModel, manifest.Dimensions)
	cmd.Printf("  Snapshot: %s\n", manifest.SnapshotID)
	return nil
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	index := indexService.Current()
	if index.Len() == 0 {
		cmd.Println("Index is empty. Run 'docreview index build' to create it.")
		return nil
	}

	m := index.Manifest()
	cmd.Println("Knowledge Index")
	cmd.Println("===============")
	cmd.Printf("  Chunks: %d\n", index.Len())
	cmd.Printf("  Sources: %d\n", m.SourceCount)
	cmd.Printf("  Model: %s (%d dimensions)\n", m.EmbeddingModel, m.Dimensions)
	cmd.Printf("  Chunking: %d chars, %d overlap\n", m.ChunkSize, m.ChunkOverlap)
	cmd.Printf("  Snapshot: %s\n", m.SnapshotID)
	if !m.BuiltAt.IsZero() {
		cmd.Printf("  Built: %s\n", m.BuiltAt.Local().Format("2006-01-02 15:04:05"))
	}

	err := indexService.CheckFreshness(cmd.Context())
	var stale *domain.IndexStaleError
	switch {
	case err == nil:
		cmd.Println("  Status: up to date")
	case errors.As(err, &stale):
		cmd.Printf("  Status: stale (%s)\n", stale.Error())
		cmd.Println("Run 'docreview index build' to rebuild.")
	default:
		return fmt.Errorf("checking index freshness: %w", err)
	}
	return nil
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	results, err := indexService.Query(cmd.Context(), args[0], indexQueryLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if indexQueryJSON {
		type passage struct {
			SourceID string  `json:"source_id"`
			Ordinal  int     `json:"ordinal"`
			Score    float64 `json:"score"`
			Text     string  `json:"text"`
		}
		out := make([]passage, len(results))
		for i, r := range results {
			out[i] = passage{SourceID: r.SourceID, Ordinal: r.Ordinal, Score: r.Score, Text: r.Text}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No passages found.")
		return nil
	}

	for i, r := range results {
		cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, r.SourceID, r.Ordinal, r.Score)
		cmd.Printf("      %s\n\n", snippet(r.Text, 200))
	}
	return nil
}

// snippet collapses whitespace and truncates to maxLen runes.
func snippet(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
