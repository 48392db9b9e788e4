package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocs,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document from the index",
	Long: `Removes every chunk of the document. The vector index is rebuilt from
the remaining chunks and the keyword index is rebuilt after it.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runDocs(cmd *cobra.Command, _ []string) error {
	if engine == nil {
		return errors.New("engine not configured")
	}

	docs, err := engine.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents indexed.")
		return nil
	}

	cmd.Println(headingText("Documents:"))
	cmd.Println()
	for _, doc := range docs {
		cmd.Printf("  %s  (%d chunks)\n", doc.DocumentID, doc.ChunkCount)
	}
	cmd.Println()
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("engine not configured")
	}

	docID := args[0]
	deleted, err := engine.DeleteDocument(cmd.Context(), docID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if !deleted {
		return fmt.Errorf("document not found: %s", docID)
	}

	cmd.Printf("%s %s\n", successText("Deleted"), docID)
	return nil
}
