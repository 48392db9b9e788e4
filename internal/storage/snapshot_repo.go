package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/vectorstore"
)

const metaDimensionKey = "dimension"

// SnapshotRepo persists vector index snapshots in SQLite.
// It implements vectorstore.Persister. Each Save replaces the stored index
// inside one transaction.
type SnapshotRepo struct {
	db *sql.DB
}

// NewSnapshotRepo creates a new SnapshotRepo.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save replaces the stored snapshot with snap.
func (r *SnapshotRepo) Save(ctx context.Context, snap *vectorstore.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// index_entries cascade from index_documents
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_documents"); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}

	for docID, positions := range snap.DocumentMap {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO index_documents (document_id, chunk_count) VALUES (?, ?)",
			docID, len(positions),
		); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", docID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO index_entries (position, chunk_id, document_id, chunk_index, text, char_start, char_end,
		 semantic_density, overlap_previous, overlap_next, vector)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for pos, c := range snap.Chunks {
		m := c.Metadata
		if _, err := stmt.ExecContext(ctx,
			pos, m.ChunkID, m.DocumentID, m.ChunkIndex, c.Text, m.CharStart, m.CharEnd,
			m.SemanticDensity, m.OverlapPrevious, m.OverlapNext, vectorstore.EncodeVector(snap.Vectors[pos]),
		); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", m.ChunkID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		metaDimensionKey, strconv.Itoa(snap.Dimension),
	); err != nil {
		return fmt.Errorf("failed to write index meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. It returns nil, nil when nothing has been saved.
func (r *SnapshotRepo) Load(ctx context.Context) (*vectorstore.Snapshot, error) {
	var dimStr string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", metaDimensionKey).Scan(&dimStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query index meta: %w", err)
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return nil, fmt.Errorf("%w: dimension %q", vectorstore.ErrCorruptSnapshot, dimStr)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT chunk_id, document_id, chunk_index, text, char_start, char_end,
		 semantic_density, overlap_previous, overlap_next, vector
		 FROM index_entries ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	snap := &vectorstore.Snapshot{
		Dimension:   dim,
		DocumentMap: make(map[string][]int),
	}
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		m := &c.Metadata
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.ChunkIndex, &c.Text, &m.CharStart, &m.CharEnd,
			&m.SemanticDensity, &m.OverlapPrevious, &m.OverlapNext, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		vec, err := vectorstore.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		snap.DocumentMap[m.DocumentID] = append(snap.DocumentMap[m.DocumentID], len(snap.Chunks))
		snap.Chunks = append(snap.Chunks, c)
		snap.Vectors = append(snap.Vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	var docCount int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_documents").Scan(&docCount); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if docCount != len(snap.DocumentMap) {
		return nil, fmt.Errorf("%w: %d documents registered, %d referenced by entries",
			vectorstore.ErrCorruptSnapshot, docCount, len(snap.DocumentMap))
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", vectorstore.ErrCorruptSnapshot, err)
	}
	return snap, nil
}
