package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hybrid-rag/internal/rag"
	"hybrid-rag/internal/service"
)

const snippetLength = 160

var (
	queryTopK    int
	queryMetrics bool
	queryJSON    bool
	askTopK      int
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve passages for a query",
	Long: `Runs hybrid retrieval: dense vector similarity fused with keyword
overlap, filtered by the minimum similarity threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from retrieved passages",
	Long:  `Retrieves passages for the question and generates an answer with the configured LLM.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", rag.DefaultTopK, "maximum number of passages")
	queryCmd.Flags().BoolVar(&queryMetrics, "metrics", false, "print retrieval metrics")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", service.DefaultAskTopK, "number of passages given to the LLM")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("engine not configured")
	}

	result, err := engine.Query(cmd.Context(), args[0], queryTopK, queryMetrics || queryJSON)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if result.NumResults == 0 {
		cmd.Println("No results found.")
	} else {
		cmd.Println(headingText("Results:"))
		cmd.Println()
		for _, chunk := range result.RetrievedChunks {
			cmd.Printf("  [%d] %s (%.4f  dense %.4f  keyword %.4f)\n",
				chunk.Rank, chunk.ChunkID, chunk.Score, chunk.DenseScore, chunk.KeywordScore)
			cmd.Printf("      %s\n\n", snippet(chunk.Text))
		}
	}

	if queryMetrics && result.Metrics != nil {
		m := result.Metrics
		cmd.Printf("%s %.2fms, %d chunks, similarity avg %.4f max %.4f min %.4f\n",
			headingText("Metrics:"), m.QueryTimeMs, m.NumChunksRetrieved,
			m.AvgSimilarityScore, m.MaxSimilarityScore, m.MinSimilarityScore)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askService == nil {
		return errors.New("ask service not configured")
	}

	resp, err := askService.Ask(cmd.Context(), service.AskRequest{Question: args[0], TopK: askTopK})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(resp.Answer)
	if len(resp.Sources) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println(headingText("Sources:"))
	for _, src := range resp.Sources {
		cmd.Printf("  %s (%.4f)\n", src.ChunkID, src.Similarity)
	}
	cmd.Printf("Confidence %.2f, retrieval %.0fms, generation %.0fms\n",
		resp.ConfidenceScore, resp.RetrievalTimeMs, resp.GenerationTimeMs)
	return nil
}

// snippet flattens text to one line of at most snippetLength runes.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}
