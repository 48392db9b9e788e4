package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_source_store.go -package=mocks hybrid-rag/internal/storage SourceStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hybrid-rag/internal/domain"
)

// SourceStore defines the interface for the corpus source registry.
type SourceStore interface {
	// GetByPath gets a source by relative path.
	// Returns nil and domain.ErrNotFound if not found.
	GetByPath(ctx context.Context, relPath string) (*SourceRecord, error)
	// Upsert inserts a new source or updates the hash and chunk count of an existing one.
	Upsert(ctx context.Context, source *SourceRecord) error
	// Delete removes the source registered for documentID.
	Delete(ctx context.Context, documentID string) error
	// List returns every registered source ordered by path.
	List(ctx context.Context) ([]SourceRecord, error)
}

// SourceRepo implements SourceStore on SQLite.
type SourceRepo struct {
	db *sql.DB
}

// NewSourceRepo creates a new SourceRepo.
func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

// GetByPath gets a source by relative path.
func (r *SourceRepo) GetByPath(ctx context.Context, relPath string) (*SourceRecord, error) {
	var src SourceRecord
	var updatedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT document_id, rel_path, hash, chunk_count, updated_at FROM sources WHERE rel_path = ?",
		relPath,
	).Scan(&src.DocumentID, &src.RelPath, &src.Hash, &src.ChunkCount, &updatedAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}

	src.UpdatedAt, err = parseTimestamp(updatedAtStr)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// Upsert inserts a new source or updates an existing one keyed by rel_path.
// The document ID of an existing row is preserved and written back to source.
func (r *SourceRepo) Upsert(ctx context.Context, source *SourceRecord) error {
	existing, err := r.GetByPath(ctx, source.RelPath)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to check existing source: %w", err)
	}
	if existing != nil {
		source.DocumentID = existing.DocumentID
	}
	if source.DocumentID == "" {
		return &domain.ValidationError{Field: "document_id", Message: "cannot be empty"}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sources (document_id, rel_path, hash, chunk_count, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (rel_path) DO UPDATE SET
		 hash = excluded.hash, chunk_count = excluded.chunk_count, updated_at = CURRENT_TIMESTAMP`,
		source.DocumentID, source.RelPath, source.Hash, source.ChunkCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// Delete removes the source registered for documentID. Deleting an unknown ID is not an error.
func (r *SourceRepo) Delete(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sources WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}

// List returns every registered source ordered by path.
func (r *SourceRepo) List(ctx context.Context) ([]SourceRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT document_id, rel_path, hash, chunk_count, updated_at FROM sources ORDER BY rel_path",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sources []SourceRecord
	for rows.Next() {
		var src SourceRecord
		var updatedAtStr string
		if err := rows.Scan(&src.DocumentID, &src.RelPath, &src.Hash, &src.ChunkCount, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if src.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sources, nil
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return ts, nil
	}
	// SQLite may hand back RFC3339 depending on driver settings
	ts, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return ts, nil
}
