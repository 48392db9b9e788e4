package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the corpus directory into the index",
	Long: `Ingests new and changed files under CORPUS_DIR and removes documents
whose files were deleted. Unchanged files are skipped by content hash.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncer == nil {
		return errors.New("CORPUS_DIR is not set")
	}

	report, err := syncer.SyncAll(cmd.Context())
	cmd.Printf("Scanned %d files: %d indexed, %d unchanged, %d empty, %d removed, %d failed\n",
		report.Scanned, report.Indexed, report.Unchanged, report.Empty, report.Removed, report.Failed)
	if err != nil {
		return err
	}
	cmd.Println(successText("Sync complete"))
	return nil
}
