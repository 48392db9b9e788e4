package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
)

// FlatIndex is an exact inner-product index held in memory. With unit vectors
// the inner product equals cosine similarity.
//
// All mutations are serialized and followed by a synchronous snapshot save.
// Searches run concurrently under a read lock. The index has no native
// deletion: removing a document re-embeds and re-adds every remaining chunk.
type FlatIndex struct {
	writeMu sync.Mutex // serializes Add and DeleteDocument including their save

	mu          sync.RWMutex
	dim         int
	vectors     [][]float32
	chunks      []domain.Chunk
	documentMap map[string][]int
	positions   map[string]int // chunk ID -> latest position

	embedder  Embedder
	persister Persister
}

// NewFlatIndex creates an index of the given dimension and hydrates it from persister.
// A nil persister disables persistence. A load failure or an inconsistent
// snapshot is logged and the index starts empty.
func NewFlatIndex(ctx context.Context, dim int, embedder Embedder, persister Persister) *FlatIndex {
	idx := &FlatIndex{
		dim:         dim,
		documentMap: make(map[string][]int),
		positions:   make(map[string]int),
		embedder:    embedder,
		persister:   persister,
	}
	idx.hydrate(ctx)
	return idx
}

func (f *FlatIndex) hydrate(ctx context.Context) {
	if f.persister == nil {
		return
	}
	logger := contextutil.LoggerFromContext(ctx)

	snap, err := f.persister.Load(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to load persisted vector index, starting empty", "error", err)
		return
	}
	if snap == nil {
		logger.InfoContext(ctx, "no persisted vector index found, starting empty")
		return
	}
	if snap.Dimension != f.dim {
		logger.WarnContext(ctx, "persisted vector index has a different dimension, starting empty",
			"persisted_dim", snap.Dimension, "configured_dim", f.dim)
		return
	}
	if err := snap.Validate(); err != nil {
		logger.WarnContext(ctx, "persisted vector index is inconsistent, starting empty", "error", err)
		return
	}

	f.vectors = snap.Vectors
	f.chunks = snap.Chunks
	f.documentMap = snap.DocumentMap
	f.positions = buildPositions(f.chunks)
	logger.InfoContext(ctx, "vector index loaded", "chunks", len(f.chunks), "documents", len(f.documentMap))
}

// Add appends chunks and embeddings under documentID and persists the index.
func (f *FlatIndex) Add(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32, documentID string) error {
	if documentID == "" {
		return &domain.ValidationError{Field: "document_id", Message: "cannot be empty"}
	}
	if len(chunks) != len(embeddings) {
		return &domain.DimensionMismatchError{Expected: len(chunks), Got: len(embeddings), What: "embeddings count"}
	}
	for i, vec := range embeddings {
		if len(vec) != f.dim {
			return &domain.DimensionMismatchError{Expected: f.dim, Got: len(vec), What: fmt.Sprintf("embedding %d", i)}
		}
	}
	for _, c := range chunks {
		if c.DocumentID() != documentID {
			return &domain.ValidationError{
				Field:   "document_id",
				Message: fmt.Sprintf("chunk %s belongs to %q, not %q", c.ID(), c.DocumentID(), documentID),
			}
		}
	}
	if len(chunks) == 0 {
		return nil
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.Lock()
	for i, c := range chunks {
		pos := len(f.chunks)
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		f.vectors = append(f.vectors, vec)
		f.chunks = append(f.chunks, c)
		f.documentMap[documentID] = append(f.documentMap[documentID], pos)
		f.positions[c.ID()] = pos
	}
	snap := f.snapshotLocked()
	f.mu.Unlock()

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "added chunks to vector index",
		"document_id", documentID, "count", len(chunks), "total_chunks", len(snap.Chunks))

	f.persist(ctx, snap)
	return nil
}

// Search returns up to k chunks by descending inner product with query.
// Equal scores keep index order. k larger than the index is clamped.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, &domain.ValidationError{Field: "k", Message: "must be greater than 0"}
	}
	if len(query) != f.dim {
		return nil, &domain.DimensionMismatchError{Expected: f.dim, Got: len(query), What: "query vector"}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 {
		contextutil.LoggerFromContext(ctx).DebugContext(ctx, "vector index is empty, no results")
		return []SearchResult{}, nil
	}

	type scored struct {
		pos   int
		score float64
	}
	all := make([]scored, len(f.vectors))
	for i, vec := range f.vectors {
		all[i] = scored{pos: i, score: innerProduct(query, vec)}
	}
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].score > all[b].score
	})

	k = min(k, len(all))
	results := make([]SearchResult, k)
	for i := 0; i < k; i++ {
		results[i] = SearchResult{Chunk: f.chunks[all[i].pos], Score: all[i].score}
	}
	return results, nil
}

// DeleteDocument removes documentID and rebuilds the index from the remaining
// chunks by re-embedding their text. Returns false if the document is unknown.
func (f *FlatIndex) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.RLock()
	_, ok := f.documentMap[documentID]
	remaining := make([]domain.Chunk, 0, len(f.chunks))
	if ok {
		for _, c := range f.chunks {
			if c.DocumentID() != documentID {
				remaining = append(remaining, c)
			}
		}
	}
	f.mu.RUnlock()

	if !ok {
		logger.InfoContext(ctx, "document not found in vector index", "document_id", documentID)
		return false, nil
	}

	vectors, err := f.reembed(ctx, remaining)
	if err != nil {
		return false, fmt.Errorf("failed to rebuild index after deleting %s: %w", documentID, err)
	}

	f.mu.Lock()
	f.vectors = vectors
	f.chunks = remaining
	f.documentMap = buildDocumentMap(remaining)
	f.positions = buildPositions(remaining)
	snap := f.snapshotLocked()
	f.mu.Unlock()

	logger.InfoContext(ctx, "deleted document and rebuilt vector index",
		"document_id", documentID, "remaining_chunks", len(remaining))

	f.persist(ctx, snap)
	return true, nil
}

func (f *FlatIndex) reembed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if f.embedder == nil {
		return nil, fmt.Errorf("no embedder configured for rebuild: %w", domain.ErrBackendUnavailable)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := f.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to re-embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, &domain.DimensionMismatchError{Expected: len(chunks), Got: len(vectors), What: "re-embedded count"}
	}
	for i, vec := range vectors {
		if len(vec) != f.dim {
			return nil, &domain.DimensionMismatchError{Expected: f.dim, Got: len(vec), What: fmt.Sprintf("re-embedded vector %d", i)}
		}
	}
	return vectors, nil
}

// Stats returns chunk, document and dimension counts.
func (f *FlatIndex) Stats(_ context.Context) (Stats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Stats{
		Chunks:       len(f.chunks),
		Documents:    len(f.documentMap),
		EmbeddingDim: f.dim,
	}, nil
}

// ListDocuments returns every document with its chunk count, ordered by ID.
func (f *FlatIndex) ListDocuments(_ context.Context) ([]DocumentInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	docs := make([]DocumentInfo, 0, len(f.documentMap))
	for id, positions := range f.documentMap {
		docs = append(docs, DocumentInfo{DocumentID: id, ChunkCount: len(positions)})
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].DocumentID < docs[j].DocumentID
	})
	return docs, nil
}

// GetChunks resolves chunk IDs to their chunks.
func (f *FlatIndex) GetChunks(_ context.Context, chunkIDs []string) (map[string]domain.Chunk, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	found := make(map[string]domain.Chunk, len(chunkIDs))
	for _, id := range chunkIDs {
		if pos, ok := f.positions[id]; ok {
			found[id] = f.chunks[pos]
		}
	}
	return found, nil
}

// AllChunks returns a copy of every chunk in index order.
func (f *FlatIndex) AllChunks(_ context.Context) ([]domain.Chunk, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]domain.Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out, nil
}

// snapshotLocked copies the index state. Vectors are never mutated after
// insertion, so they are shared rather than copied. Caller holds f.mu.
func (f *FlatIndex) snapshotLocked() *Snapshot {
	vectors := make([][]float32, len(f.vectors))
	copy(vectors, f.vectors)
	chunks := make([]domain.Chunk, len(f.chunks))
	copy(chunks, f.chunks)
	docMap := make(map[string][]int, len(f.documentMap))
	for id, positions := range f.documentMap {
		docMap[id] = append([]int(nil), positions...)
	}
	return &Snapshot{
		Dimension:   f.dim,
		Vectors:     vectors,
		Chunks:      chunks,
		DocumentMap: docMap,
	}
}

// persist saves snap. Failures are logged only: the in-memory mutation stays committed.
func (f *FlatIndex) persist(ctx context.Context, snap *Snapshot) {
	if f.persister == nil {
		return
	}
	if err := f.persister.Save(ctx, snap); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to persist vector index",
			slog.Any("error", &domain.PersistenceError{Op: "save", Err: err}))
	}
}

func innerProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func buildDocumentMap(chunks []domain.Chunk) map[string][]int {
	m := make(map[string][]int)
	for pos, c := range chunks {
		m[c.DocumentID()] = append(m[c.DocumentID()], pos)
	}
	return m
}

func buildPositions(chunks []domain.Chunk) map[string]int {
	m := make(map[string]int, len(chunks))
	for pos, c := range chunks {
		m[c.ID()] = pos
	}
	return m
}
