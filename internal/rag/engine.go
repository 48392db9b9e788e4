package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks hybrid-rag/internal/rag Engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/indexer"
	"hybrid-rag/internal/vectorstore"
)

// Engine is the retrieval orchestrator: it ingests documents, answers
// retrieval queries and keeps a query history.
type Engine interface {
	// Ingest chunks, embeds and indexes docs. It returns the number of chunks created.
	Ingest(ctx context.Context, docs []domain.Document) (int, error)
	// Query runs hybrid retrieval and records its metrics in the history.
	Query(ctx context.Context, text string, topK int, returnMetrics bool) (QueryResult, error)
	// DeleteDocument removes a document from every index. Returns false if it was not indexed.
	DeleteDocument(ctx context.Context, documentID string) (bool, error)
	// ListDocuments returns indexed documents with their chunk counts.
	ListDocuments(ctx context.Context) ([]vectorstore.DocumentInfo, error)
	// Stats describes the indexes and retrieval parameters.
	Stats(ctx context.Context) (IndexStats, error)
	// ChunkingInfo returns chunker parameters and statistics over indexed chunks.
	ChunkingInfo(ctx context.Context) (indexer.ChunkingInfo, error)
	// MetricsSummary aggregates the query history.
	MetricsSummary() MetricsSummary
	// SetMinSimilarity changes the fused score threshold for later queries.
	SetMinSimilarity(v float64) error
	// RebuildKeywordIndex rebuilds keyword postings from the vector index.
	RebuildKeywordIndex(ctx context.Context) error
}

// Embedder embeds queries and chunk batches.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// EngineConfig holds retrieval parameters and labels reported by Stats.
type EngineConfig struct {
	Alpha          float64
	MinSimilarity  float64
	EmbeddingModel string
	VectorBackend  string
}

// DefaultEngineConfig returns the default fusion weight and threshold.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Alpha:         DefaultAlpha,
		MinSimilarity: DefaultMinSimilarity,
		VectorBackend: "flat",
	}
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	// writeMu serializes ingest, delete and keyword rebuilds
	writeMu sync.Mutex

	chunker   *indexer.SemanticChunker
	pipeline  *indexer.Pipeline
	retriever *HybridRetriever
	store     vectorstore.VectorStore
	keywords  *KeywordIndex

	paramsMu      sync.RWMutex
	alpha         float64
	minSimilarity float64

	embeddingModel string
	vectorBackend  string

	historyMu sync.Mutex
	history   []QueryRecord
}

// NewEngine creates an engine over store and rebuilds the keyword index from
// whatever store already holds.
func NewEngine(ctx context.Context, cfg EngineConfig, chunker *indexer.SemanticChunker, embedder Embedder, store vectorstore.VectorStore) (Engine, error) {
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		return nil, &domain.ValidationError{Field: "alpha", Message: "must be between 0 and 1"}
	}
	if cfg.MinSimilarity < 0 || cfg.MinSimilarity > 1 {
		return nil, &domain.ValidationError{Field: "min_similarity", Message: "must be between 0 and 1"}
	}
	if embedder == nil || store == nil {
		return nil, fmt.Errorf("engine requires an embedder and a vector index: %w", domain.ErrBackendUnavailable)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector index stats: %w", err)
	}
	if stats.EmbeddingDim != embedder.Dimensions() {
		return nil, &domain.DimensionMismatchError{Expected: stats.EmbeddingDim, Got: embedder.Dimensions(), What: "embedding provider"}
	}

	keywords := NewKeywordIndex()
	e := &ragEngine{
		chunker:        chunker,
		pipeline:       indexer.NewPipeline(chunker, embedder, store, keywords),
		retriever:      NewHybridRetriever(embedder, store, keywords),
		store:          store,
		keywords:       keywords,
		alpha:          cfg.Alpha,
		minSimilarity:  cfg.MinSimilarity,
		embeddingModel: cfg.EmbeddingModel,
		vectorBackend:  cfg.VectorBackend,
	}

	if err := e.RebuildKeywordIndex(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Ingest indexes docs in the vector and keyword indexes.
func (e *ragEngine) Ingest(ctx context.Context, docs []domain.Document) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	result, err := e.pipeline.Ingest(ctx, docs)
	if err != nil {
		return result.Chunks, err
	}
	return result.Chunks, nil
}

// Query runs hybrid retrieval with the engine's alpha and threshold.
func (e *ragEngine) Query(ctx context.Context, text string, topK int, returnMetrics bool) (QueryResult, error) {
	e.paramsMu.RLock()
	alpha, minSimilarity := e.alpha, e.minSimilarity
	e.paramsMu.RUnlock()

	chunks, metrics, err := e.retriever.Retrieve(ctx, text, topK, alpha, minSimilarity)
	if err != nil {
		return QueryResult{}, err
	}

	e.historyMu.Lock()
	e.history = append(e.history, QueryRecord{Query: text, Timestamp: time.Now(), Metrics: metrics})
	e.historyMu.Unlock()

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "query completed",
		"results", len(chunks),
		"query_time_ms", metrics.QueryTimeMs,
		"avg_similarity", metrics.AvgSimilarityScore,
	)

	result := QueryResult{
		Query:           text,
		RetrievedChunks: chunks,
		NumResults:      len(chunks),
	}
	if returnMetrics {
		result.Metrics = &metrics
	}
	return result, nil
}

// DeleteDocument removes the document from the vector index, then rebuilds
// the keyword index so no stale postings remain.
func (e *ragEngine) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	if documentID == "" {
		return false, &domain.ValidationError{Field: "document_id", Message: "cannot be empty"}
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	deleted, err := e.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	if !deleted {
		return false, nil
	}

	if err := e.rebuildKeywordsLocked(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// ListDocuments returns indexed documents.
func (e *ragEngine) ListDocuments(ctx context.Context) ([]vectorstore.DocumentInfo, error) {
	return e.store.ListDocuments(ctx)
}

// Stats describes the indexes.
func (e *ragEngine) Stats(ctx context.Context) (IndexStats, error) {
	s, err := e.store.Stats(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("failed to get vector index stats: %w", err)
	}

	e.paramsMu.RLock()
	defer e.paramsMu.RUnlock()
	return IndexStats{
		TotalChunks:        s.Chunks,
		TotalDocuments:     s.Documents,
		EmbeddingDim:       s.EmbeddingDim,
		KeywordVocabulary:  e.keywords.VocabularySize(),
		HybridAlpha:        e.alpha,
		MinSimilarity:      e.minSimilarity,
		VectorBackend:      e.vectorBackend,
		EmbeddingModelName: e.embeddingModel,
	}, nil
}

// ChunkingInfo reports the chunker configuration and indexed chunk statistics.
func (e *ragEngine) ChunkingInfo(ctx context.Context) (indexer.ChunkingInfo, error) {
	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return indexer.ChunkingInfo{}, fmt.Errorf("failed to list chunks: %w", err)
	}
	return indexer.NewChunkingInfo(e.chunker.Config(), e.embeddingModel, chunks), nil
}

// MetricsSummary aggregates the query history.
func (e *ragEngine) MetricsSummary() MetricsSummary {
	e.historyMu.Lock()
	records := make([]QueryRecord, len(e.history))
	copy(records, e.history)
	e.historyMu.Unlock()

	return summarize(records)
}

// SetMinSimilarity sets the fused score threshold.
func (e *ragEngine) SetMinSimilarity(v float64) error {
	if v < 0 || v > 1 {
		return &domain.ValidationError{Field: "min_similarity", Message: "must be between 0 and 1"}
	}
	e.paramsMu.Lock()
	e.minSimilarity = v
	e.paramsMu.Unlock()
	return nil
}

// RebuildKeywordIndex rebuilds keyword postings from the vector index.
func (e *ragEngine) RebuildKeywordIndex(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.rebuildKeywordsLocked(ctx)
}

func (e *ragEngine) rebuildKeywordsLocked(ctx context.Context) error {
	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to rebuild keyword index: %w", err)
	}
	e.keywords.Rebuild(chunks)
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "keyword index rebuilt",
		"chunks", len(chunks), "vocabulary", e.keywords.VocabularySize())
	return nil
}

func summarize(records []QueryRecord) MetricsSummary {
	if len(records) == 0 {
		return MetricsSummary{Empty: true}
	}

	times := make([]float64, len(records))
	var timeSum, scoreSum float64
	for i, r := range records {
		times[i] = r.Metrics.QueryTimeMs
		timeSum += r.Metrics.QueryTimeMs
		scoreSum += r.Metrics.AvgSimilarityScore
	}
	sort.Float64s(times)

	n := float64(len(records))
	return MetricsSummary{
		TotalQueries:       len(records),
		AvgQueryTimeMs:     timeSum / n,
		MedianQueryTimeMs:  percentile(times, 50),
		P95QueryTimeMs:     percentile(times, 95),
		AvgSimilarityScore: scoreSum / n,
	}
}

// percentile interpolates linearly between closest ranks of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
