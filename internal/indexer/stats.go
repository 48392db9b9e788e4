package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"hybrid-rag/internal/domain"
)

// ChunkerVersion identifies the chunking algorithm.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "semantic-density-v1"

// ChunkLengthStats summarizes chunk lengths in characters.
type ChunkLengthStats struct {
	Count int     `json:"count"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
	Mean  float64 `json:"mean"`
	P95   int     `json:"p95"`
	// MeanDensity is the mean semantic density across chunks.
	MeanDensity float64 `json:"mean_density"`
}

// ChunkingInfo describes the active chunker and the chunks currently indexed.
type ChunkingInfo struct {
	Strategy        string           `json:"strategy"`
	ChunkerVersion  string           `json:"chunker_version"`
	TargetChunkSize int              `json:"target_chunk_size"`
	MinChunkSize    int              `json:"min_chunk_size"`
	MaxChunkSize    int              `json:"max_chunk_size"`
	OverlapTokens   int              `json:"overlap_tokens"`
	IndexVersion    string           `json:"index_version"`
	ChunkStats      ChunkLengthStats `json:"chunk_stats"`
}

// NewChunkingInfo builds chunking info for cfg over the given chunks.
func NewChunkingInfo(cfg ChunkerConfig, embeddingModel string, chunks []domain.Chunk) ChunkingInfo {
	return ChunkingInfo{
		Strategy:        "semantic_density",
		ChunkerVersion:  ChunkerVersion,
		TargetChunkSize: cfg.TargetChunkSize,
		MinChunkSize:    cfg.MinChunkSize,
		MaxChunkSize:    cfg.MaxChunkSize,
		OverlapTokens:   cfg.OverlapTokens,
		IndexVersion:    IndexVersion(cfg, embeddingModel),
		ChunkStats:      ComputeChunkStats(chunks),
	}
}

// ComputeChunkStats computes length statistics over chunk texts.
func ComputeChunkStats(chunks []domain.Chunk) ChunkLengthStats {
	if len(chunks) == 0 {
		return ChunkLengthStats{}
	}

	lengths := make([]int, len(chunks))
	var density float64
	for i, c := range chunks {
		lengths[i] = utf8.RuneCountInString(c.Text)
		density += c.Metadata.SemanticDensity
	}

	stats := computeLengthStats(lengths)
	stats.MeanDensity = math.Round(density/float64(len(chunks))*1000) / 1000
	return stats
}

// computeLengthStats computes count, min, max, mean and p95.
func computeLengthStats(lengths []int) ChunkLengthStats {
	if len(lengths) == 0 {
		return ChunkLengthStats{}
	}

	sorted := make([]int, len(lengths))
	copy(sorted, lengths)
	sort.Ints(sorted)

	sum := 0
	for _, n := range lengths {
		sum += n
	}
	mean := float64(sum) / float64(len(lengths))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkLengthStats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:   sorted[p95Index],
	}
}

// IndexVersion hashes the chunker version, embedding model and chunking
// parameters. Two indexes with the same version were built the same way.
func IndexVersion(cfg ChunkerConfig, embeddingModel string) string {
	input := fmt.Sprintf("%s|%s|target=%d|min=%d|max=%d|overlap=%d",
		ChunkerVersion, embeddingModel, cfg.TargetChunkSize, cfg.MinChunkSize, cfg.MaxChunkSize, cfg.OverlapTokens)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
