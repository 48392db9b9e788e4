package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"hybrid-rag/internal/corpus"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/extract"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest text and PDF files",
	Long: `Extracts text from each .txt or .pdf file and indexes it as one document.
Every file gets a fresh document ID derived from its name.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if engine == nil {
		return errors.New("engine not configured")
	}
	ctx := cmd.Context()

	docs := make([]domain.Document, 0, len(args))
	for _, path := range args {
		doc, err := readDocument(cmd, path)
		if err != nil {
			return err
		}
		if doc.Text == "" {
			cmd.Printf("%s %s: no text extracted, skipped\n", warnText("warning:"), path)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return errors.New("no documents to ingest")
	}

	start := time.Now()
	numChunks, err := engine.Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	for _, doc := range docs {
		cmd.Printf("  %s  %s\n", doc.ID, doc.Source)
	}
	cmd.Printf("%s %d documents, %d chunks in %.2fs\n",
		successText("Indexed"), len(docs), numChunks, time.Since(start).Seconds())
	return nil
}

func readDocument(cmd *cobra.Command, path string) (domain.Document, error) {
	ext := filepath.Ext(path)
	if !extract.IsSupported(ext) {
		return domain.Document{}, &domain.UnsupportedFormatError{FileType: ext}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	text, err := extract.Extract(cmd.Context(), content, ext)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to extract %s: %w", path, err)
	}

	base := filepath.Base(path)
	return domain.Document{
		ID:     corpus.NewDocumentID(base),
		Text:   extract.CleanText(text),
		Source: path,
	}, nil
}
