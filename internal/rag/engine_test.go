package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/indexer"
	"hybrid-rag/internal/llm"
	"hybrid-rag/internal/vectorstore"
)

var testDocs = []domain.Document{
	{ID: "a", Text: "Python is a programming language."},
	{ID: "b", Text: "The weather is sunny today."},
}

func newTestEngine(t *testing.T, persister vectorstore.Persister) Engine {
	t.Helper()
	ctx := context.Background()
	embedder := llm.NewHashEmbedder(llm.DefaultEmbeddingDim)
	store := vectorstore.NewFlatIndex(ctx, embedder.Dimensions(), embedder, persister)

	engine, err := NewEngine(ctx, DefaultEngineConfig(), indexer.NewSemanticChunker(indexer.DefaultChunkerConfig()), embedder, store)
	require.NoError(t, err)
	return engine
}

func TestEngine_EndToEndRanking(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	n, err := engine.Ingest(ctx, testDocs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, engine.SetMinSimilarity(0))
	result, err := engine.Query(ctx, "What is Python?", 2, true)
	require.NoError(t, err)
	require.Len(t, result.RetrievedChunks, 2)

	assert.Equal(t, "a_chunk_0", result.RetrievedChunks[0].ChunkID)
	assert.Equal(t, "b_chunk_0", result.RetrievedChunks[1].ChunkID)
	assert.Greater(t, result.RetrievedChunks[0].Score, result.RetrievedChunks[1].Score)
	assert.Equal(t, 2, result.NumResults)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, 2, result.Metrics.NumChunksRetrieved)
}

func TestEngine_DefaultThresholdFilters(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	_, err := engine.Ingest(ctx, testDocs)
	require.NoError(t, err)

	result, err := engine.Query(ctx, "What is Python?", 5, false)
	require.NoError(t, err)
	require.Len(t, result.RetrievedChunks, 1)
	assert.Equal(t, "a", result.RetrievedChunks[0].Metadata.DocumentID)
	assert.GreaterOrEqual(t, result.RetrievedChunks[0].Score, DefaultMinSimilarity)
	assert.Nil(t, result.Metrics)
}

func TestEngine_Deterministic(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil)
	_, err := engine.Ingest(ctx, testDocs)
	require.NoError(t, err)
	require.NoError(t, engine.SetMinSimilarity(0))

	first, err := engine.Query(ctx, "sunny weather", 2, false)
	require.NoError(t, err)
	second, err := engine.Query(ctx, "sunny weather", 2, false)
	require.NoError(t, err)
	assert.Equal(t, first.RetrievedChunks, second.RetrievedChunks)
}

func TestEngine_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil)
	_, err := engine.Ingest(ctx, testDocs)
	require.NoError(t, err)
	require.NoError(t, engine.SetMinSimilarity(0))

	deleted, err := engine.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 1, stats.TotalChunks)

	result, err := engine.Query(ctx, "python programming language", 5, false)
	require.NoError(t, err)
	for _, c := range result.RetrievedChunks {
		assert.NotEqual(t, "a", c.Metadata.DocumentID)
		// keyword postings for the deleted document are gone
		assert.Zero(t, c.KeywordScore)
	}

	deleted, err = engine.DeleteDocument(ctx, "a")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = engine.DeleteDocument(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEngine_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	engine := newTestEngine(t, vectorstore.NewFileSnapshotter(dir))
	_, err := engine.Ingest(ctx, testDocs)
	require.NoError(t, err)
	require.NoError(t, engine.SetMinSimilarity(0))
	before, err := engine.Query(ctx, "programming language", 2, false)
	require.NoError(t, err)

	reloaded := newTestEngine(t, vectorstore.NewFileSnapshotter(dir))
	require.NoError(t, reloaded.SetMinSimilarity(0))
	after, err := reloaded.Query(ctx, "programming language", 2, false)
	require.NoError(t, err)

	require.Len(t, after.RetrievedChunks, len(before.RetrievedChunks))
	for i := range before.RetrievedChunks {
		assert.Equal(t, before.RetrievedChunks[i].ChunkID, after.RetrievedChunks[i].ChunkID)
		assert.InDelta(t, before.RetrievedChunks[i].Score, after.RetrievedChunks[i].Score, 1e-5)
	}

	docs, err := reloaded.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestEngine_MetricsSummary(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil)

	assert.True(t, engine.MetricsSummary().Empty)

	_, err := engine.Ingest(ctx, testDocs)
	require.NoError(t, err)
	for _, q := range []string{"What is Python?", "sunny", "nothing matches here"} {
		_, err := engine.Query(ctx, q, 3, false)
		require.NoError(t, err)
	}

	// failed queries are not recorded
	_, err = engine.Query(ctx, "", 3, false)
	require.Error(t, err)

	summary := engine.MetricsSummary()
	assert.False(t, summary.Empty)
	assert.Equal(t, 3, summary.TotalQueries)
	assert.GreaterOrEqual(t, summary.P95QueryTimeMs, summary.MedianQueryTimeMs)
}

func TestEngine_IngestValidation(t *testing.T) {
	engine := newTestEngine(t, nil)

	_, err := engine.Ingest(context.Background(), []domain.Document{{ID: "", Text: "text"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEngine_SetMinSimilarity(t *testing.T) {
	engine := newTestEngine(t, nil)

	assert.Error(t, engine.SetMinSimilarity(1.5))
	assert.Error(t, engine.SetMinSimilarity(-0.1))
	require.NoError(t, engine.SetMinSimilarity(0.5))

	stats, err := engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.5, stats.MinSimilarity)
	assert.Equal(t, DefaultAlpha, stats.HybridAlpha)
}

func TestEngine_ChunkingInfo(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, nil)
	_, err := engine.Ingest(ctx, testDocs)
	require.NoError(t, err)

	info, err := engine.ChunkingInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, indexer.DefaultTargetChunkSize, info.TargetChunkSize)
	assert.Equal(t, 2, info.ChunkStats.Count)
}

func TestNewEngine_Validation(t *testing.T) {
	ctx := context.Background()
	embedder := llm.NewHashEmbedder(16)
	chunker := indexer.NewSemanticChunker(indexer.DefaultChunkerConfig())

	cfg := DefaultEngineConfig()
	cfg.Alpha = 2
	_, err := NewEngine(ctx, cfg, chunker, embedder, vectorstore.NewFlatIndex(ctx, 16, embedder, nil))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewEngine(ctx, DefaultEngineConfig(), chunker, embedder, vectorstore.NewFlatIndex(ctx, 32, embedder, nil))
	var dErr *domain.DimensionMismatchError
	assert.ErrorAs(t, err, &dErr)
}

func TestNewEngine_RebuildsKeywordsFromStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newTestEngine(t, vectorstore.NewFileSnapshotter(dir))
	_, err := first.Ingest(ctx, testDocs)
	require.NoError(t, err)

	second := newTestEngine(t, vectorstore.NewFileSnapshotter(dir))
	stats, err := second.Stats(ctx)
	require.NoError(t, err)
	assert.Positive(t, stats.KeywordVocabulary)
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{name: "empty", values: nil, p: 50, want: 0},
		{name: "single", values: []float64{7}, p: 95, want: 7},
		{name: "even median", values: []float64{1, 2, 3, 4}, p: 50, want: 2.5},
		{name: "odd median", values: []float64{1, 2, 3}, p: 50, want: 2},
		{name: "p95 interpolates", values: []float64{1, 2, 3, 4}, p: 95, want: 3.85},
		{name: "p100", values: []float64{1, 2, 3, 4}, p: 100, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, percentile(tt.values, tt.p), 1e-9)
		})
	}
}

func TestSummarize(t *testing.T) {
	records := []QueryRecord{
		{Metrics: RetrievalMetrics{QueryTimeMs: 10, AvgSimilarityScore: 0.5}},
		{Metrics: RetrievalMetrics{QueryTimeMs: 30, AvgSimilarityScore: 0.7}},
		{Metrics: RetrievalMetrics{QueryTimeMs: 20, AvgSimilarityScore: 0.0}},
	}

	got := summarize(records)
	assert.Equal(t, 3, got.TotalQueries)
	assert.InDelta(t, 20, got.AvgQueryTimeMs, 1e-9)
	assert.InDelta(t, 20, got.MedianQueryTimeMs, 1e-9)
	assert.InDelta(t, 29, got.P95QueryTimeMs, 1e-9)
	assert.InDelta(t, 0.4, got.AvgSimilarityScore, 1e-9)
	assert.Equal(t, MetricsSummary{Empty: true}, summarize(nil))
}
