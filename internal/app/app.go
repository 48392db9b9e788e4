package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"hybrid-rag/internal/config"
	"hybrid-rag/internal/corpus"
	"hybrid-rag/internal/indexer"
	"hybrid-rag/internal/llm"
	"hybrid-rag/internal/metrics"
	"hybrid-rag/internal/rag"
	"hybrid-rag/internal/service"
	"hybrid-rag/internal/storage"
	"hybrid-rag/internal/vectorstore"
)

// App holds the wired components shared by the API server and the CLI.
type App struct {
	Config     *config.Config
	Engine     rag.Engine
	Tracker    *metrics.Tracker
	AskService service.AskService
	Syncer     *corpus.Syncer // nil when CORPUS_DIR is unset

	db     *sql.DB
	qdrant *vectorstore.QdrantStore
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

// Build wires the embedder, vector index, engine and services described by cfg.
// The caller must Close the returned App.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Tracker: metrics.NewTracker()}
	if err := a.build(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}

	// The database holds the snapshot for PERSIST_BACKEND=sqlite and the
	// corpus source registry.
	if cfg.PersistBackend == config.PersistBackendSQLite || cfg.CorpusDir != "" {
		a.db, err = storage.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := storage.Migrate(a.db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Info("Database initialized", "path", cfg.DBPath)
	}

	store, err := a.newVectorStore(ctx, cfg, embedder)
	if err != nil {
		return err
	}

	chunker := indexer.NewSemanticChunker(indexer.ChunkerConfig{
		TargetChunkSize: cfg.ChunkTargetSize,
		MinChunkSize:    cfg.ChunkMinSize,
		MaxChunkSize:    cfg.ChunkMaxSize,
		OverlapTokens:   cfg.ChunkOverlapTokens,
	})

	a.Engine, err = rag.NewEngine(ctx, rag.EngineConfig{
		Alpha:          cfg.HybridAlpha,
		MinSimilarity:  cfg.MinSimilarity,
		EmbeddingModel: cfg.EmbeddingModelName,
		VectorBackend:  cfg.VectorBackend,
	}, chunker, embedder, store)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	var generator service.AnswerGenerator
	if cfg.LLMEnabled {
		client := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
		generator = llm.NewAnswerGenerator(client, llm.ChatParams{Model: cfg.LLMModelName})
		slog.Info("Answer generation enabled", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	}
	a.AskService = service.NewAskService(a.Engine, generator, a.Tracker)

	if cfg.CorpusDir != "" {
		a.Syncer = corpus.NewSyncer(cfg.CorpusDir, a.Engine, storage.NewSourceRepo(a.db), a.Tracker)
	}

	return nil
}

// Close releases the database and Qdrant connections.
func (a *App) Close() error {
	var firstErr error
	if a.qdrant != nil {
		if err := a.qdrant.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newEmbedder(ctx context.Context, cfg *config.Config) (rag.Embedder, error) {
	if cfg.EmbeddingProvider == config.EmbeddingProviderHash {
		slog.Info("Using feature-hash embedder", "dim", cfg.EmbeddingDim)
		return llm.NewHashEmbedder(cfg.EmbeddingDim), nil
	}

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDim)
	vec, err := embedder.Embed(ctx, "test")
	if err != nil {
		return nil, fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(vec) != cfg.EmbeddingDim {
		return nil, fmt.Errorf("embedding vector size mismatch: expected %d, got %d", cfg.EmbeddingDim, len(vec))
	}
	slog.Info("Embedding client validated", "base_url", cfg.EmbeddingBaseURL, "dim", cfg.EmbeddingDim)
	return embedder, nil
}

func (a *App) newVectorStore(ctx context.Context, cfg *config.Config, embedder rag.Embedder) (vectorstore.VectorStore, error) {
	if cfg.VectorBackend == config.VectorBackendQdrant {
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		a.qdrant = store

		// Ensure collection exists with correct vector size
		if err := store.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.EmbeddingDim)
		return store, nil
	}

	var persister vectorstore.Persister
	if cfg.PersistBackend == config.PersistBackendSQLite {
		persister = storage.NewSnapshotRepo(a.db)
		slog.Info("Flat index persisted to SQLite", "path", cfg.DBPath)
	} else {
		persister = vectorstore.NewFileSnapshotter(cfg.PersistDir)
		slog.Info("Flat index persisted to directory", "dir", cfg.PersistDir)
	}
	return vectorstore.NewFlatIndex(ctx, cfg.EmbeddingDim, embedder, persister), nil
}
