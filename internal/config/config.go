package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported backend names.
const (
	EmbeddingProviderHash = "hash"
	EmbeddingProviderHTTP = "http"

	VectorBackendFlat   = "flat"
	VectorBackendQdrant = "qdrant"

	PersistBackendFile   = "file"
	PersistBackendSQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// Server
	APIPort   string
	LogLevel  string
	LogFormat string
	CorpusDir string // Optional; when set, its .txt and .pdf files are synced at startup

	// Chunker
	ChunkTargetSize    int
	ChunkMinSize       int
	ChunkMaxSize       int
	ChunkOverlapTokens int

	// Retrieval
	HybridAlpha   float64
	MinSimilarity float64
	DefaultTopK   int

	// Embeddings
	EmbeddingProvider  string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingDim       int

	// LLM
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string
	LLMEnabled   bool

	// Vector index
	VectorBackend    string
	PersistBackend   string
	PersistDir       string
	DBPath           string
	QdrantURL        string
	QdrantCollection string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the result.
// If a .env file exists in the current directory or up to 5 parent directories, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "9000"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		CorpusDir:          getEnv("CORPUS_DIR", ""),
		EmbeddingProvider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", EmbeddingProviderHash)),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "feature-hash"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", VectorBackendFlat)),
		PersistBackend:     strings.ToLower(getEnv("PERSIST_BACKEND", PersistBackendFile)),
		PersistDir:         getEnv("PERSIST_DIR", "./data/index"),
		DBPath:             getEnv("DB_PATH", "./data/hybrid-rag.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "chunks"),
	}

	var err error
	if cfg.ChunkTargetSize, err = getEnvInt("CHUNK_TARGET_SIZE", 512); err != nil {
		return nil, err
	}
	if cfg.ChunkMinSize, err = getEnvInt("CHUNK_MIN_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.ChunkMaxSize, err = getEnvInt("CHUNK_MAX_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlapTokens, err = getEnvInt("CHUNK_OVERLAP_TOKENS", 50); err != nil {
		return nil, err
	}
	if cfg.HybridAlpha, err = getEnvFloat("HYBRID_ALPHA", 0.7); err != nil {
		return nil, err
	}
	if cfg.MinSimilarity, err = getEnvFloat("MIN_SIMILARITY", 0.3); err != nil {
		return nil, err
	}
	if cfg.DefaultTopK, err = getEnvInt("DEFAULT_TOP_K", 5); err != nil {
		return nil, err
	}
	// Note: EMBEDDING_DIM must match the output size of the embeddings model when
	// EMBEDDING_PROVIDER=http. Changing it invalidates any persisted index.
	if cfg.EmbeddingDim, err = getEnvInt("EMBEDDING_DIM", 384); err != nil {
		return nil, err
	}
	if cfg.LLMEnabled, err = getEnvBool("LLM_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests, err = getEnvInt("RATE_LIMIT_REQUESTS", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Create data directories if they don't exist
	if cfg.PersistBackend == PersistBackendSQLite || cfg.CorpusDir != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if cfg.VectorBackend == VectorBackendFlat && cfg.PersistBackend == PersistBackendFile {
		if err := os.MkdirAll(cfg.PersistDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks value ranges and backend names.
func (c *Config) Validate() error {
	if c.ChunkMinSize <= 0 {
		return fmt.Errorf("CHUNK_MIN_SIZE must be greater than 0")
	}
	if c.ChunkMinSize > c.ChunkTargetSize || c.ChunkTargetSize > c.ChunkMaxSize {
		return fmt.Errorf("chunk sizes must satisfy CHUNK_MIN_SIZE <= CHUNK_TARGET_SIZE <= CHUNK_MAX_SIZE, got %d, %d, %d",
			c.ChunkMinSize, c.ChunkTargetSize, c.ChunkMaxSize)
	}
	if c.ChunkOverlapTokens < 0 {
		return fmt.Errorf("CHUNK_OVERLAP_TOKENS must not be negative")
	}
	if c.HybridAlpha < 0 || c.HybridAlpha > 1 {
		return fmt.Errorf("HYBRID_ALPHA must be in [0, 1], got %v", c.HybridAlpha)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("MIN_SIMILARITY must be in [0, 1], got %v", c.MinSimilarity)
	}
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("DEFAULT_TOP_K must be greater than 0")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be greater than 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be greater than 0")
	}

	switch c.EmbeddingProvider {
	case EmbeddingProviderHash, EmbeddingProviderHTTP:
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be %q or %q, got %q", EmbeddingProviderHash, EmbeddingProviderHTTP, c.EmbeddingProvider)
	}
	switch c.VectorBackend {
	case VectorBackendFlat, VectorBackendQdrant:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", VectorBackendFlat, VectorBackendQdrant, c.VectorBackend)
	}
	switch c.PersistBackend {
	case PersistBackendFile, PersistBackendSQLite:
	default:
		return fmt.Errorf("PERSIST_BACKEND must be %q or %q, got %q", PersistBackendFile, PersistBackendSQLite, c.PersistBackend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", c.LogFormat)
	}

	if c.VectorBackend == VectorBackendQdrant && c.QdrantCollection == "" {
		return fmt.Errorf("QDRANT_COLLECTION is required when VECTOR_BACKEND=qdrant")
	}
	return nil
}

// loadDotEnv loads .env from the current directory, then from the nearest
// parent directory that has one (up to 5 levels).
func loadDotEnv() {
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
