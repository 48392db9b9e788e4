// Package corpus keeps the index in step with a directory of source files.
package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"hybrid-rag/internal/extract"
)

// ScannedFile represents a supported file found during corpus scanning.
type ScannedFile struct {
	RelPath  string // Relative path from corpus root (e.g., "papers/attention.pdf")
	AbsPath  string // Absolute file path
	FileType string // Lowercased extension, e.g. ".txt"
}

// Scan walks root and returns every file the extractor supports.
// Hidden directories are skipped.
func Scan(ctx context.Context, root string) ([]ScannedFile, error) {
	var scannedFiles []ScannedFile

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if path != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		fileType := strings.ToLower(filepath.Ext(path))
		if !extract.IsSupported(fileType) {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}

		scannedFiles = append(scannedFiles, ScannedFile{
			RelPath:  filepath.ToSlash(relPath),
			AbsPath:  path,
			FileType: fileType,
		})
		return nil
	})
	if err != nil {
		return scannedFiles, fmt.Errorf("failed to scan corpus %s: %w", root, err)
	}

	return scannedFiles, nil
}

// NewDocumentID returns a fresh document ID for a file called filename.
func NewDocumentID(filename string) string {
	return fmt.Sprintf("doc_%s_%s", uuid.New().String(), filepath.Base(filename))
}
