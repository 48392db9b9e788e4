package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"API_PORT", "LOG_LEVEL", "LOG_FORMAT", "CORPUS_DIR",
	"CHUNK_TARGET_SIZE", "CHUNK_MIN_SIZE", "CHUNK_MAX_SIZE", "CHUNK_OVERLAP_TOKENS",
	"HYBRID_ALPHA", "MIN_SIMILARITY", "DEFAULT_TOP_K",
	"EMBEDDING_PROVIDER", "EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME", "EMBEDDING_DIM",
	"LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY", "LLM_ENABLED",
	"VECTOR_BACKEND", "PERSIST_BACKEND", "PERSIST_DIR", "DB_PATH", "QDRANT_URL", "QDRANT_COLLECTION",
	"RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
}

// isolateEnv clears every config variable and moves into an empty directory
// so that no .env file is picked up.
func isolateEnv(t *testing.T) string {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name:     "default values",
			setupEnv: func(*testing.T) {},
			checkConfig: func(cfg *Config) bool {
				return cfg.APIPort == "9000" &&
					cfg.LogLevel == "info" &&
					cfg.LogFormat == "text" &&
					cfg.CorpusDir == "" &&
					cfg.ChunkTargetSize == 512 &&
					cfg.ChunkMinSize == 100 &&
					cfg.ChunkMaxSize == 1024 &&
					cfg.ChunkOverlapTokens == 50 &&
					cfg.HybridAlpha == 0.7 &&
					cfg.MinSimilarity == 0.3 &&
					cfg.DefaultTopK == 5 &&
					cfg.EmbeddingProvider == EmbeddingProviderHash &&
					cfg.EmbeddingDim == 384 &&
					!cfg.LLMEnabled &&
					cfg.VectorBackend == VectorBackendFlat &&
					cfg.PersistBackend == PersistBackendFile &&
					cfg.QdrantCollection == "chunks" &&
					cfg.RateLimitRequests == 10 &&
					cfg.RateLimitWindow == time.Minute
			},
		},
		{
			name: "custom values",
			setupEnv: func(t *testing.T) {
				t.Setenv("HYBRID_ALPHA", "0.5")
				t.Setenv("MIN_SIMILARITY", "0")
				t.Setenv("EMBEDDING_PROVIDER", "HTTP")
				t.Setenv("EMBEDDING_DIM", "768")
				t.Setenv("LLM_ENABLED", "true")
				t.Setenv("VECTOR_BACKEND", "qdrant")
				t.Setenv("RATE_LIMIT_WINDOW", "30s")
				t.Setenv("LOG_FORMAT", "JSON")
			},
			checkConfig: func(cfg *Config) bool {
				return cfg.HybridAlpha == 0.5 &&
					cfg.MinSimilarity == 0 &&
					cfg.EmbeddingProvider == EmbeddingProviderHTTP &&
					cfg.EmbeddingDim == 768 &&
					cfg.LLMEnabled &&
					cfg.VectorBackend == VectorBackendQdrant &&
					cfg.RateLimitWindow == 30*time.Second &&
					cfg.LogFormat == "json"
			},
		},
		{
			name:        "window in bare seconds",
			setupEnv:    func(t *testing.T) { t.Setenv("RATE_LIMIT_WINDOW", "90") },
			checkConfig: func(cfg *Config) bool { return cfg.RateLimitWindow == 90*time.Second },
		},
		{
			name:     "invalid integer",
			setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_DIM", "invalid") },
			wantErr:  true,
		},
		{
			name:     "zero dimension",
			setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_DIM", "0") },
			wantErr:  true,
		},
		{
			name:     "alpha out of range",
			setupEnv: func(t *testing.T) { t.Setenv("HYBRID_ALPHA", "1.5") },
			wantErr:  true,
		},
		{
			name:     "negative min similarity",
			setupEnv: func(t *testing.T) { t.Setenv("MIN_SIMILARITY", "-0.1") },
			wantErr:  true,
		},
		{
			name: "min above target",
			setupEnv: func(t *testing.T) {
				t.Setenv("CHUNK_MIN_SIZE", "600")
				t.Setenv("CHUNK_TARGET_SIZE", "500")
			},
			wantErr: true,
		},
		{
			name:     "target above max",
			setupEnv: func(t *testing.T) { t.Setenv("CHUNK_TARGET_SIZE", "2048") },
			wantErr:  true,
		},
		{
			name:     "unknown vector backend",
			setupEnv: func(t *testing.T) { t.Setenv("VECTOR_BACKEND", "faiss") },
			wantErr:  true,
		},
		{
			name:     "unknown persist backend",
			setupEnv: func(t *testing.T) { t.Setenv("PERSIST_BACKEND", "s3") },
			wantErr:  true,
		},
		{
			name:     "unknown embedding provider",
			setupEnv: func(t *testing.T) { t.Setenv("EMBEDDING_PROVIDER", "onnx") },
			wantErr:  true,
		},
		{
			name:     "invalid bool",
			setupEnv: func(t *testing.T) { t.Setenv("LLM_ENABLED", "maybe") },
			wantErr:  true,
		},
		{
			name:     "invalid window",
			setupEnv: func(t *testing.T) { t.Setenv("RATE_LIMIT_WINDOW", "soon") },
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed: %+v", cfg)
			}
		})
	}
}

func TestLoad_CreatesDataDirectories(t *testing.T) {
	tmpDir := isolateEnv(t)
	dbPath := filepath.Join(tmpDir, "test", "db.db")
	persistDir := filepath.Join(tmpDir, "index")

	t.Setenv("PERSIST_BACKEND", "sqlite")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("PERSIST_DIR", persistDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Errorf("Load() should create data directory: %v", err)
	}
	// the file snapshot directory is only needed for PERSIST_BACKEND=file
	if _, err := os.Stat(persistDir); !os.IsNotExist(err) {
		t.Errorf("Load() created unused persist directory")
	}
	if cfg.DBPath != dbPath {
		t.Errorf("Load() DBPath = %v, want %v", cfg.DBPath, dbPath)
	}
}

func TestLoad_ReadsDotEnvFromParent(t *testing.T) {
	root := isolateEnv(t)
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("API_PORT=7777\nHYBRID_ALPHA=0.4\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	child := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(child, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	t.Chdir(child)
	// godotenv does not override variables that are already set, even to ""
	if err := os.Unsetenv("API_PORT"); err != nil {
		t.Fatalf("failed to unset API_PORT: %v", err)
	}
	if err := os.Unsetenv("HYBRID_ALPHA"); err != nil {
		t.Fatalf("failed to unset HYBRID_ALPHA: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "7777" || cfg.HybridAlpha != 0.4 {
		t.Errorf("Load() did not apply parent .env: port %s alpha %v", cfg.APIPort, cfg.HybridAlpha)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue string
		want         string
	}{
		{name: "env var set", value: "set-value", defaultValue: "default", want: "set-value"},
		{name: "empty env var uses default", value: "", defaultValue: "default", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_VAR", tt.value)
			got := getEnv("TEST_ENV_VAR", tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", "TEST_ENV_VAR", tt.defaultValue, got, tt.want)
			}
		})
	}
}
