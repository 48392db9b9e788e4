package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
)

// pointNamespace seeds deterministic point IDs derived from chunk IDs.
var pointNamespace = uuid.MustParse("6f1c2a7e-0d55-4c1b-9b8e-4a1e3f2d9c10")

// QdrantStore implements VectorStore against a cosine Qdrant collection.
// Scores returned by a cosine collection are already similarities.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// NewQdrantStore creates a Qdrant-backed store.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantStore(urlStr, collection string, dim int) (*QdrantStore, error) {
	host, port, err := qdrantAddress(urlStr)
	if err != nil {
		return nil, err
	}
	if collection == "" {
		return nil, &domain.ValidationError{Field: "collection", Message: "cannot be empty"}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: collection,
		dim:        dim,
	}, nil
}

// qdrantAddress derives the gRPC host and port from the Qdrant HTTP URL.
func qdrantAddress(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// PointID returns the Qdrant point ID for a chunk.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Add upserts chunks and their embeddings as points.
func (s *QdrantStore) Add(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32, documentID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if documentID == "" {
		return &domain.ValidationError{Field: "document_id", Message: "cannot be empty"}
	}
	if len(chunks) != len(embeddings) {
		return &domain.DimensionMismatchError{Expected: len(chunks), Got: len(embeddings), What: "embeddings count"}
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		if len(embeddings[i]) != s.dim {
			return &domain.DimensionMismatchError{Expected: s.dim, Got: len(embeddings[i]), What: fmt.Sprintf("embedding %d", i)}
		}
		if c.DocumentID() != documentID {
			return &domain.ValidationError{
				Field:   "document_id",
				Message: fmt.Sprintf("chunk %s belongs to %q, not %q", c.ID(), c.DocumentID(), documentID),
			}
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(c.ID())),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(chunkPayload(c)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", s.collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", s.collection, "document_id", documentID, "count", len(points))
	return nil
}

// Search performs a cosine similarity search.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, &domain.ValidationError{Field: "k", Message: "must be greater than 0"}
	}
	if len(query) != s.dim {
		return nil, &domain.DimensionMismatchError{Expected: s.dim, Got: len(query), What: "query vector"}
	}

	scoredPoints, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", s.collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		results = append(results, SearchResult{
			Chunk: payloadToChunk(convertPayloadToMap(point.Payload)),
			Score: float64(point.Score),
		})
	}

	logger.DebugContext(ctx, "search completed", "collection", s.collection, "k", k, "results", len(results))
	return results, nil
}

// DeleteDocument removes every point of documentID with a filter delete.
func (s *QdrantStore) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	logger := contextutil.LoggerFromContext(ctx)
	filter := documentFilter(documentID)

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to count document points: %w", err)
	}
	if count == 0 {
		logger.InfoContext(ctx, "document not found in collection", "collection", s.collection, "document_id", documentID)
		return false, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "collection", s.collection, "document_id", documentID, "error", err)
		return false, fmt.Errorf("failed to delete points: %w", err)
	}

	logger.InfoContext(ctx, "deleted document points", "collection", s.collection, "document_id", documentID, "count", count)
	return true, nil
}

// Stats counts points and distinct documents.
func (s *QdrantStore) Stats(ctx context.Context) (Stats, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Documents: len(docs), EmbeddingDim: s.dim}
	for _, d := range docs {
		stats.Chunks += d.ChunkCount
	}
	return stats, nil
}

// ListDocuments aggregates points by document ID.
func (s *QdrantStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	chunks, err := s.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	return summarizeDocuments(chunks), nil
}

// GetChunks fetches points by chunk ID.
func (s *QdrantStore) GetChunks(ctx context.Context, chunkIDs []string) (map[string]domain.Chunk, error) {
	found := make(map[string]domain.Chunk, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return found, nil
	}

	ids := make([]*qdrant.PointId, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		ids = append(ids, qdrant.NewID(PointID(id)))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get points: %w", err)
	}

	for _, point := range points {
		c := payloadToChunk(convertPayloadToMap(point.Payload))
		found[c.ID()] = c
	}
	return found, nil
}

// AllChunks scrolls the whole collection. Qdrant has no insertion order, so
// chunks are ordered by document ID and then chunk index.
func (s *QdrantStore) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	total, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count points: %w", err)
	}
	if total == 0 {
		return []domain.Chunk{}, nil
	}

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          qdrant.PtrOf(uint32(total)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(points))
	for _, point := range points {
		chunks = append(chunks, payloadToChunk(convertPayloadToMap(point.Payload)))
	}
	sortChunks(chunks)
	return chunks, nil
}

// CollectionExists checks if the collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection creates the collection with the store dimension, or
// validates the vector size of an existing one.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", s.collection, "vector_size", s.dim)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	actualSize := collectionVectorSize(info)
	if actualSize == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}
	if actualSize != s.dim {
		return &domain.DimensionMismatchError{Expected: s.dim, Got: actualSize, What: "collection vector size"}
	}

	logger.InfoContext(ctx, "collection validated", "collection", s.collection, "vector_size", s.dim)
	return nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func collectionVectorSize(info *qdrant.CollectionInfo) int {
	if info == nil || info.Config == nil || info.Config.Params == nil {
		return 0
	}
	vectorsConfig := info.Config.Params.GetVectorsConfig()
	if vectorsConfig == nil {
		return 0
	}
	params := vectorsConfig.GetParams()
	if params == nil {
		return 0
	}
	return int(params.Size)
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
	}
}

func chunkPayload(c domain.Chunk) map[string]any {
	m := c.Metadata
	return map[string]any{
		"text":             c.Text,
		"chunk_id":         m.ChunkID,
		"document_id":      m.DocumentID,
		"chunk_index":      int64(m.ChunkIndex),
		"char_start":       int64(m.CharStart),
		"char_end":         int64(m.CharEnd),
		"semantic_density": m.SemanticDensity,
		"overlap_previous": m.OverlapPrevious,
		"overlap_next":     m.OverlapNext,
	}
}

func payloadToChunk(meta map[string]any) domain.Chunk {
	str := func(key string) string {
		v, _ := meta[key].(string)
		return v
	}
	integer := func(key string) int {
		v, _ := meta[key].(int64)
		return int(v)
	}
	boolean := func(key string) bool {
		v, _ := meta[key].(bool)
		return v
	}
	density, _ := meta["semantic_density"].(float64)

	return domain.Chunk{
		Text: str("text"),
		Metadata: domain.ChunkMetadata{
			ChunkID:         str("chunk_id"),
			DocumentID:      str("document_id"),
			ChunkIndex:      integer("chunk_index"),
			CharStart:       integer("char_start"),
			CharEnd:         integer("char_end"),
			SemanticDensity: density,
			OverlapPrevious: boolean("overlap_previous"),
			OverlapNext:     boolean("overlap_next"),
		},
	}
}

func sortChunks(chunks []domain.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].DocumentID() != chunks[j].DocumentID() {
			return chunks[i].DocumentID() < chunks[j].DocumentID()
		}
		return chunks[i].Metadata.ChunkIndex < chunks[j].Metadata.ChunkIndex
	})
}

func summarizeDocuments(chunks []domain.Chunk) []DocumentInfo {
	counts := make(map[string]int)
	for _, c := range chunks {
		counts[c.DocumentID()]++
	}
	docs := make([]DocumentInfo, 0, len(counts))
	for id, n := range counts {
		docs = append(docs, DocumentInfo{DocumentID: id, ChunkCount: n})
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].DocumentID < docs[j].DocumentID
	})
	return docs
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
