package domain

// Document is a unit of ingestion: an identifier plus its cleaned text.
type Document struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"` // File name or path, if any
}

// ChunkMetadata describes where a chunk came from and how it relates to its neighbours.
type ChunkMetadata struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
	ChunkIndex      int     `json:"chunk_index"`
	CharStart       int     `json:"char_start"`
	CharEnd         int     `json:"char_end"`
	SemanticDensity float64 `json:"semantic_density"`
	OverlapPrevious bool    `json:"overlap_previous"`
	OverlapNext     bool    `json:"overlap_next"`
}

// Chunk is the atomic retrievable unit of text. Chunks are never mutated after creation.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ID returns the chunk identifier.
func (c Chunk) ID() string {
	return c.Metadata.ChunkID
}

// DocumentID returns the owning document identifier.
func (c Chunk) DocumentID() string {
	return c.Metadata.DocumentID
}

// RetrievedChunk is a chunk returned by hybrid retrieval, carrying the per-signal
// scores, the fused score and its 1-based rank.
type RetrievedChunk struct {
	ChunkID      string        `json:"chunk_id"`
	Text         string        `json:"text"`
	Metadata     ChunkMetadata `json:"metadata"`
	DenseScore   float64       `json:"dense_score"`
	KeywordScore float64       `json:"keyword_score"`
	Score        float64       `json:"similarity_score"`
	Rank         int           `json:"rank"`
}
