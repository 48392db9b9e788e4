package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hybrid-rag/internal/corpus"
	"hybrid-rag/internal/rag"
	"hybrid-rag/internal/service"
)

// Services are set by SetServices before Execute.
var (
	engine     rag.Engine
	askService service.AskService
	syncer     *corpus.Syncer
)

var (
	successText = color.New(color.FgGreen, color.Bold).SprintFunc()
	headingText = color.New(color.FgCyan, color.Bold).SprintFunc()
	warnText    = color.New(color.FgYellow).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Manage and query the hybrid retrieval index",
	Long: `ragctl ingests documents into the hybrid index and queries it directly,
using the same configuration and persisted index as the API server.`,
	SilenceUsage: true,
}

// SetServices wires the commands to a built engine. syncer may be nil.
func SetServices(e rag.Engine, ask service.AskService, s *corpus.Syncer) {
	engine = e
	askService = ask
	syncer = s
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
