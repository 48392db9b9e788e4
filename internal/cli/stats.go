package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics and chunking parameters",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if engine == nil {
		return errors.New("engine not configured")
	}
	ctx := cmd.Context()

	stats, err := engine.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}
	info, err := engine.ChunkingInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chunking info: %w", err)
	}

	cmd.Println(headingText("Index"))
	cmd.Printf("  Documents:       %d\n", stats.TotalDocuments)
	cmd.Printf("  Chunks:          %d\n", stats.TotalChunks)
	cmd.Printf("  Vocabulary:      %d\n", stats.KeywordVocabulary)
	cmd.Printf("  Embedding:       %s (%d dims)\n", stats.EmbeddingModelName, stats.EmbeddingDim)
	cmd.Printf("  Vector backend:  %s\n", stats.VectorBackend)
	cmd.Printf("  Alpha:           %.2f\n", stats.HybridAlpha)
	cmd.Printf("  Min similarity:  %.2f\n", stats.MinSimilarity)
	cmd.Println()

	cmd.Println(headingText("Chunking"))
	cmd.Printf("  Strategy:        %s (%s)\n", info.Strategy, info.ChunkerVersion)
	cmd.Printf("  Sizes:           min %d, target %d, max %d, overlap %d\n",
		info.MinChunkSize, info.TargetChunkSize, info.MaxChunkSize, info.OverlapTokens)
	cmd.Printf("  Index version:   %s\n", info.IndexVersion)
	if info.ChunkStats.Count > 0 {
		s := info.ChunkStats
		cmd.Printf("  Chunk lengths:   min %d, mean %.1f, p95 %d, max %d\n", s.Min, s.Mean, s.P95, s.Max)
		cmd.Printf("  Mean density:    %.4f\n", s.MeanDensity)
	}
	return nil
}
