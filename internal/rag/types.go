package rag

import (
	"time"

	"hybrid-rag/internal/domain"
)

const (
	// DefaultAlpha weights the dense score in fusion. The keyword score gets 1-alpha.
	DefaultAlpha = 0.7
	// DefaultMinSimilarity drops fused scores below it.
	DefaultMinSimilarity = 0.3
	// DefaultTopK is the result count when a request does not set one.
	DefaultTopK = 5
	// MaxTopK bounds top_k.
	MaxTopK = 100
	// maxDenseCandidates caps the dense candidate pool.
	maxDenseCandidates = 20
)

// RetrievalMetrics describes a single retrieval.
type RetrievalMetrics struct {
	QueryTime          time.Duration `json:"-"`
	QueryTimeMs        float64       `json:"query_time_ms"`
	NumChunksRetrieved int           `json:"num_chunks_retrieved"`
	AvgSimilarityScore float64       `json:"avg_similarity_score"`
	MaxSimilarityScore float64       `json:"max_similarity_score"`
	MinSimilarityScore float64       `json:"min_similarity_score"`
}

// QueryResult is the outcome of Engine.Query.
type QueryResult struct {
	Query           string                  `json:"query"`
	RetrievedChunks []domain.RetrievedChunk `json:"retrieved_chunks"`
	NumResults      int                     `json:"num_results"`
	Metrics         *RetrievalMetrics       `json:"metrics,omitempty"`
}

// QueryRecord is one entry of the query history.
type QueryRecord struct {
	Query     string
	Timestamp time.Time
	Metrics   RetrievalMetrics
}

// MetricsSummary aggregates the query history.
// Empty is set when no query has run yet, and all other fields are zero.
type MetricsSummary struct {
	Empty              bool    `json:"empty,omitempty"`
	TotalQueries       int     `json:"total_queries"`
	AvgQueryTimeMs     float64 `json:"avg_query_time_ms"`
	MedianQueryTimeMs  float64 `json:"median_query_time_ms"`
	P95QueryTimeMs     float64 `json:"p95_query_time_ms"`
	AvgSimilarityScore float64 `json:"avg_similarity_score"`
}

// IndexStats describes the indexes behind the engine.
type IndexStats struct {
	TotalChunks        int     `json:"total_chunks"`
	TotalDocuments     int     `json:"total_documents"`
	EmbeddingDim       int     `json:"embedding_dim"`
	KeywordVocabulary  int     `json:"keyword_vocabulary"`
	HybridAlpha        float64 `json:"hybrid_alpha"`
	MinSimilarity      float64 `json:"min_similarity"`
	VectorBackend      string  `json:"vector_backend"`
	EmbeddingModelName string  `json:"embedding_model"`
}
