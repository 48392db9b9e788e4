package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks hybrid-rag/internal/vectorstore VectorStore

import (
	"context"

	"hybrid-rag/internal/domain"
)

// SearchResult is a chunk with its similarity to the query (higher is better).
type SearchResult struct {
	Chunk domain.Chunk
	Score float64
}

// Stats summarizes the contents of a vector store.
type Stats struct {
	Chunks       int `json:"chunks"`
	Documents    int `json:"documents"`
	EmbeddingDim int `json:"embedding_dim"`
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// VectorStore defines the dense index used by retrieval and ingestion.
type VectorStore interface {
	// Add appends chunks and their embeddings under documentID.
	// len(chunks) must equal len(embeddings) and every vector must have the store dimension.
	Add(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32, documentID string) error

	// Search returns up to k chunks ordered by descending similarity to query.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// DeleteDocument removes every chunk of documentID. It reports false if the document is unknown.
	DeleteDocument(ctx context.Context, documentID string) (bool, error)

	// Stats returns chunk, document and dimension counts.
	Stats(ctx context.Context) (Stats, error)

	// ListDocuments returns every document with its chunk count, ordered by document ID.
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)

	// GetChunks resolves chunk IDs to chunks. Unknown IDs are omitted from the result.
	GetChunks(ctx context.Context, chunkIDs []string) (map[string]domain.Chunk, error)

	// AllChunks returns every stored chunk in index order.
	AllChunks(ctx context.Context) ([]domain.Chunk, error)
}

// Embedder re-embeds chunk text when an index has to be rebuilt.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Snapshot is the complete persisted state of a FlatIndex: the vector blob plus
// the chunk side table and document map.
type Snapshot struct {
	Dimension   int
	Vectors     [][]float32
	Chunks      []domain.Chunk
	DocumentMap map[string][]int
}

// Persister saves and loads index snapshots. Save must replace the previous
// snapshot atomically. Load returns (nil, nil) when nothing has been saved yet.
type Persister interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}
