package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/vectorstore"
)

// QueryEmbedder embeds a single query.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HybridRetriever fuses dense vector similarity with keyword scores.
type HybridRetriever struct {
	embedder QueryEmbedder
	store    vectorstore.VectorStore
	keywords *KeywordIndex
}

// NewHybridRetriever creates a retriever over store and keywords.
func NewHybridRetriever(embedder QueryEmbedder, store vectorstore.VectorStore, keywords *KeywordIndex) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		store:    store,
		keywords: keywords,
	}
}

type candidate struct {
	chunkID string
	chunk   domain.Chunk
	dense   float64
	keyword float64
	fused   float64
}

// Retrieve returns up to topK chunks ranked by alpha*dense + (1-alpha)*keyword,
// dropping any whose fused score is below minSimilarity.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int, alpha, minSimilarity float64) ([]domain.RetrievedChunk, RetrievalMetrics, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	if err := validateRetrieval(query, topK, alpha, minSimilarity); err != nil {
		return nil, RetrievalMetrics{}, err
	}
	if r.embedder == nil || r.store == nil {
		return nil, RetrievalMetrics{}, fmt.Errorf("retriever is not configured: %w", domain.ErrBackendUnavailable)
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, RetrievalMetrics{}, fmt.Errorf("failed to embed query: %w", err)
	}

	dense, err := r.store.Search(ctx, queryVec, min(2*topK, maxDenseCandidates))
	if err != nil {
		return nil, RetrievalMetrics{}, fmt.Errorf("failed to search vector index: %w", err)
	}

	var keywordHits []KeywordHit
	if r.keywords != nil {
		keywordHits = r.keywords.Search(query, 2*topK)
	}

	// dense candidates first in rank order, then keyword-only ones
	candidates := make([]*candidate, 0, len(dense)+len(keywordHits))
	byID := make(map[string]*candidate, cap(candidates))
	for _, d := range dense {
		id := d.Chunk.ID()
		if _, ok := byID[id]; ok {
			continue
		}
		c := &candidate{chunkID: id, chunk: d.Chunk, dense: d.Score}
		byID[id] = c
		candidates = append(candidates, c)
	}

	var missing []string
	for _, hit := range keywordHits {
		if c, ok := byID[hit.ChunkID]; ok {
			c.keyword = hit.Score
			continue
		}
		c := &candidate{chunkID: hit.ChunkID, keyword: hit.Score}
		byID[hit.ChunkID] = c
		candidates = append(candidates, c)
		missing = append(missing, hit.ChunkID)
	}

	if len(missing) > 0 {
		resolved, err := r.store.GetChunks(ctx, missing)
		if err != nil {
			return nil, RetrievalMetrics{}, fmt.Errorf("failed to resolve keyword candidates: %w", err)
		}
		kept := candidates[:0]
		for _, c := range candidates {
			if c.chunk.ID() == "" {
				chunk, ok := resolved[c.chunkID]
				if !ok {
					logger.WarnContext(ctx, "keyword candidate not in vector index", "chunk_id", c.chunkID)
					continue
				}
				c.chunk = chunk
			}
			kept = append(kept, c)
		}
		candidates = kept
	}

	filtered := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		c.fused = alpha*c.dense + (1-alpha)*c.keyword
		if c.fused >= minSimilarity {
			filtered = append(filtered, c)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].fused > filtered[j].fused
	})
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}

	results := make([]domain.RetrievedChunk, len(filtered))
	for i, c := range filtered {
		results[i] = domain.RetrievedChunk{
			ChunkID:      c.chunkID,
			Text:         c.chunk.Text,
			Metadata:     c.chunk.Metadata,
			DenseScore:   c.dense,
			KeywordScore: c.keyword,
			Score:        c.fused,
			Rank:         i + 1,
		}
	}

	metrics := computeMetrics(time.Since(start), results)
	logger.DebugContext(ctx, "hybrid retrieval completed",
		"dense_candidates", len(dense),
		"keyword_candidates", len(keywordHits),
		"results", len(results),
		"query_time_ms", metrics.QueryTimeMs,
	)
	return results, metrics, nil
}

func validateRetrieval(query string, topK int, alpha, minSimilarity float64) error {
	if strings.TrimSpace(query) == "" {
		return &domain.ValidationError{Field: "query", Message: "cannot be empty"}
	}
	if topK < 1 || topK > MaxTopK {
		return &domain.ValidationError{Field: "top_k", Message: fmt.Sprintf("must be between 1 and %d", MaxTopK)}
	}
	if alpha < 0 || alpha > 1 {
		return &domain.ValidationError{Field: "alpha", Message: "must be between 0 and 1"}
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return &domain.ValidationError{Field: "min_similarity", Message: "must be between 0 and 1"}
	}
	return nil
}

func computeMetrics(elapsed time.Duration, results []domain.RetrievedChunk) RetrievalMetrics {
	m := RetrievalMetrics{
		QueryTime:          elapsed,
		QueryTimeMs:        float64(elapsed) / float64(time.Millisecond),
		NumChunksRetrieved: len(results),
	}
	if len(results) == 0 {
		return m
	}

	m.MaxSimilarityScore = results[0].Score
	m.MinSimilarityScore = results[0].Score
	var sum float64
	for _, r := range results {
		sum += r.Score
		m.MaxSimilarityScore = max(m.MaxSimilarityScore, r.Score)
		m.MinSimilarityScore = min(m.MinSimilarityScore, r.Score)
	}
	m.AvgSimilarityScore = sum / float64(len(results))
	return m
}
