package indexer

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/vectorstore"
)

// Embedder produces one vector per text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// KeywordIndexer receives every committed chunk.
type KeywordIndexer interface {
	Index(chunkID, text string)
}

// IngestResult reports what an ingest call committed.
type IngestResult struct {
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	Skipped   []string `json:"skipped,omitempty"` // document IDs that produced no chunks
}

// Pipeline chunks, embeds and indexes documents.
// Chunking and embedding run per document in parallel. Commits to the vector
// store and the keyword index happen in input order.
type Pipeline struct {
	chunker     *SemanticChunker
	embedder    Embedder
	store       vectorstore.VectorStore
	keywords    KeywordIndexer
	concurrency int
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(chunker *SemanticChunker, embedder Embedder, store vectorstore.VectorStore, keywords KeywordIndexer) *Pipeline {
	return &Pipeline{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		keywords:    keywords,
		concurrency: runtime.GOMAXPROCS(0),
	}
}

type preparedDocument struct {
	chunks  []domain.Chunk
	vectors [][]float32
}

// Ingest indexes docs and returns what was committed. A document ID that is
// empty, repeated in the batch, or already indexed fails the whole call
// before anything is committed.
func (p *Pipeline) Ingest(ctx context.Context, docs []domain.Document) (IngestResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if p.embedder == nil || p.store == nil {
		return IngestResult{}, fmt.Errorf("ingest pipeline is not configured: %w", domain.ErrBackendUnavailable)
	}
	if err := p.validate(ctx, docs); err != nil {
		return IngestResult{}, err
	}

	prepared := make([]preparedDocument, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			chunks := p.chunker.Chunk(doc.Text, doc.ID)
			if len(chunks) == 0 {
				return nil
			}

			texts := make([]string, len(chunks))
			for j, c := range chunks {
				texts[j] = c.Text
			}
			vectors, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
			prepared[i] = preparedDocument{chunks: chunks, vectors: vectors}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IngestResult{}, err
	}

	var result IngestResult
	for i, doc := range docs {
		prep := prepared[i]
		if len(prep.chunks) == 0 {
			logger.WarnContext(ctx, "no chunks generated", "document_id", doc.ID, "source", doc.Source)
			result.Skipped = append(result.Skipped, doc.ID)
			continue
		}

		if err := p.store.Add(ctx, prep.chunks, prep.vectors, doc.ID); err != nil {
			return result, fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		if p.keywords != nil {
			for _, c := range prep.chunks {
				p.keywords.Index(c.ID(), c.Text)
			}
		}

		result.Documents++
		result.Chunks += len(prep.chunks)
		logger.InfoContext(ctx, "indexed document", "document_id", doc.ID, "source", doc.Source, "chunks", len(prep.chunks))
	}

	logger.InfoContext(ctx, "ingest completed", "documents", result.Documents, "chunks", result.Chunks, "skipped", len(result.Skipped))
	return result, nil
}

func (p *Pipeline) validate(ctx context.Context, docs []domain.Document) error {
	existing, err := p.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexed documents: %w", err)
	}
	indexed := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		indexed[d.DocumentID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return &domain.ValidationError{Field: "id", Message: fmt.Sprintf("document %d has an empty id", i)}
		}
		if _, dup := seen[doc.ID]; dup {
			return &domain.ValidationError{Field: "id", Message: fmt.Sprintf("document %s appears more than once", doc.ID)}
		}
		if _, ok := indexed[doc.ID]; ok {
			return &domain.ValidationError{Field: "id", Message: fmt.Sprintf("document %s is already indexed", doc.ID)}
		}
		seen[doc.ID] = struct{}{}
	}
	return nil
}
