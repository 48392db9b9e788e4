package corpus

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/extract"
	"hybrid-rag/internal/metrics"
	"hybrid-rag/internal/storage"
	"hybrid-rag/internal/vectorstore"
)

// DocumentIndexer is the part of the retrieval engine the syncer writes to.
type DocumentIndexer interface {
	Ingest(ctx context.Context, docs []domain.Document) (int, error)
	DeleteDocument(ctx context.Context, documentID string) (bool, error)
	ListDocuments(ctx context.Context) ([]vectorstore.DocumentInfo, error)
}

// Outcome is what SyncFile did with one file.
type Outcome int

const (
	OutcomeIndexed Outcome = iota
	OutcomeUnchanged
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeEmpty:
		return "empty"
	}
	return "unknown"
}

// SyncReport summarizes a SyncAll run.
type SyncReport struct {
	Scanned   int
	Indexed   int
	Unchanged int
	Empty     int
	Removed   int
	Failed    int
}

// Syncer ingests new and changed corpus files and removes documents whose files are gone.
type Syncer struct {
	root    string
	index   DocumentIndexer
	sources storage.SourceStore
	tracker *metrics.Tracker
}

// NewSyncer creates a syncer for the corpus rooted at root. tracker may be nil.
func NewSyncer(root string, index DocumentIndexer, sources storage.SourceStore, tracker *metrics.Tracker) *Syncer {
	return &Syncer{root: root, index: index, sources: sources, tracker: tracker}
}

// SyncAll scans the corpus and syncs every file.
// Errors for individual files are logged but don't stop the sync.
func (s *Syncer) SyncAll(ctx context.Context) (SyncReport, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := Scan(ctx, s.root)
	if err != nil {
		return SyncReport{}, err
	}

	indexed, err := s.indexedDocuments(ctx)
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{Scanned: len(files)}
	logger.InfoContext(ctx, "starting corpus sync", "root", s.root, "total_files", len(files))

	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		seen[file.RelPath] = struct{}{}

		outcome, err := s.syncFile(ctx, file, indexed)
		if err != nil {
			report.Failed++
			logger.ErrorContext(ctx, "failed to sync file", "rel_path", file.RelPath, "error", err)
			s.trackError(ctx, "corpus_sync", err)
			continue
		}
		switch outcome {
		case OutcomeIndexed:
			report.Indexed++
		case OutcomeUnchanged:
			report.Unchanged++
		case OutcomeEmpty:
			report.Empty++
		}
	}

	removed, err := s.removeMissing(ctx, seen)
	report.Removed = removed
	if err != nil {
		return report, err
	}

	logger.InfoContext(ctx, "corpus sync completed",
		"total_files", report.Scanned,
		"indexed", report.Indexed,
		"unchanged", report.Unchanged,
		"removed", report.Removed,
		"errors", report.Failed,
	)

	if report.Failed > 0 {
		return report, fmt.Errorf("corpus sync completed with %d errors", report.Failed)
	}
	return report, nil
}

// SyncFile ingests one file unless its content hash is already recorded and
// its document is still indexed. A changed file is deleted from the index and
// ingested again under the same document ID.
func (s *Syncer) SyncFile(ctx context.Context, file ScannedFile) (Outcome, error) {
	indexed, err := s.indexedDocuments(ctx)
	if err != nil {
		return 0, err
	}
	return s.syncFile(ctx, file, indexed)
}

func (s *Syncer) syncFile(ctx context.Context, file ScannedFile, indexed map[string]struct{}) (Outcome, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read file %s: %w", file.AbsPath, err)
	}
	hashHex := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := s.sources.GetByPath(ctx, file.RelPath)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("failed to check existing source: %w", err)
	}
	if existing != nil && existing.Hash == hashHex {
		_, present := indexed[existing.DocumentID]
		if present || existing.ChunkCount == 0 {
			logger.DebugContext(ctx, "skipping unchanged file", "rel_path", file.RelPath, "hash", hashHex)
			return OutcomeUnchanged, nil
		}
		logger.WarnContext(ctx, "source recorded but missing from index, re-ingesting", "rel_path", file.RelPath)
	}

	text, err := extract.Extract(ctx, content, file.FileType)
	if err != nil {
		return 0, fmt.Errorf("failed to extract text from %s: %w", file.RelPath, err)
	}
	text = extract.CleanText(text)

	var documentID string
	if existing != nil {
		documentID = existing.DocumentID
		if _, err := s.index.DeleteDocument(ctx, documentID); err != nil {
			return 0, fmt.Errorf("failed to delete stale document: %w", err)
		}
	} else {
		documentID = NewDocumentID(filepath.Base(file.RelPath))
	}

	outcome := OutcomeEmpty
	chunkCount := 0
	if text != "" {
		chunkCount, err = s.index.Ingest(ctx, []domain.Document{{ID: documentID, Text: text, Source: file.RelPath}})
		if err != nil {
			return 0, fmt.Errorf("failed to ingest document: %w", err)
		}
		outcome = OutcomeIndexed
	} else {
		logger.WarnContext(ctx, "no text extracted", "rel_path", file.RelPath)
	}

	if err := s.sources.Upsert(ctx, &storage.SourceRecord{
		DocumentID: documentID,
		RelPath:    file.RelPath,
		Hash:       hashHex,
		ChunkCount: chunkCount,
	}); err != nil {
		return 0, fmt.Errorf("failed to upsert source: %w", err)
	}

	if s.tracker != nil && outcome == OutcomeIndexed {
		s.tracker.TrackDocument(ctx, documentID, chunkCount, time.Since(start))
	}
	return outcome, nil
}

func (s *Syncer) indexedDocuments(ctx context.Context) (map[string]struct{}, error) {
	docs, err := s.index.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed documents: %w", err)
	}
	indexed := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		indexed[d.DocumentID] = struct{}{}
	}
	return indexed, nil
}

func (s *Syncer) removeMissing(ctx context.Context, seen map[string]struct{}) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	sources, err := s.sources.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sources: %w", err)
	}

	removed := 0
	for _, src := range sources {
		if _, ok := seen[src.RelPath]; ok {
			continue
		}
		if _, err := s.index.DeleteDocument(ctx, src.DocumentID); err != nil {
			return removed, fmt.Errorf("failed to delete document %s: %w", src.DocumentID, err)
		}
		if err := s.sources.Delete(ctx, src.DocumentID); err != nil {
			return removed, err
		}
		removed++
		logger.InfoContext(ctx, "removed document for missing file", "rel_path", src.RelPath, "document_id", src.DocumentID)
	}
	return removed, nil
}

func (s *Syncer) trackError(ctx context.Context, errorType string, err error) {
	if s.tracker != nil {
		s.tracker.TrackError(ctx, errorType, err.Error())
	}
}
