package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Vector store backends.
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Embedding providers.
const (
	EmbeddingHash = "hash"
	EmbeddingHTTP = "http"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
	DBPath    string
	DocsPath  string
	// DocsWatch re-indexes DocsPath files as they change.
	DocsWatch         bool
	DocsWatchDebounce time.Duration

	EmbeddingProvider  string
	EmbeddingBaseURL   string
	EmbeddingModel     string
	EmbeddingAPIKey    string
	EmbeddingDim       int
	EmbeddingNormalize bool
	EmbeddingBatchSize int
	EmbeddingWorkers   int
	EmbeddingRPS       float64
	EmbeddingCacheSize int
	EmbeddingTimeout   time.Duration

	LLMBaseURL     string
	LLMModel       string
	LLMAPIKey      string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration

	VectorBackend string
	QdrantURL     string

	BM25K1        float64
	BM25B         float64
	BM25StopWords bool

	SearchAlpha      float64
	SearchCandidateK int
	DedupEnabled     bool
	DedupThreshold   float64
	MMREnabled       bool
	MMRLambda        float64

	AskTopK            int
	AskPoolK           int
	AskMaxChunksPerDoc int
	AskBudgetChars     int

	ChunkSize    int
	ChunkOverlap int

	PromptDefaultLang      string
	PromptAutoDetect       bool
	PromptRequireCitations bool
	PromptAdmitUnknown     bool
	ParserScanFallback     bool
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates ranges.
// If a .env file exists in the current directory or a parent directory, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	p := &parser{}
	cfg := &Config{
		APIPort:   getEnv("API_PORT", "9000"),
		LogLevel:  p.level("LOG_LEVEL", slog.LevelInfo),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DBPath:    getEnv("DB_PATH", ":memory:"),
		DocsPath:  getEnv("DOCS_PATH", ""),

		DocsWatch:         p.bool("DOCS_WATCH", false),
		DocsWatchDebounce: p.duration("DOCS_WATCH_DEBOUNCE", 500*time.Millisecond),

		EmbeddingProvider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", EmbeddingHash)),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "hashing-v1"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingDim:       p.int("EMBEDDING_DIM", 384),
		EmbeddingNormalize: p.bool("EMBEDDING_NORMALIZE", true),
		EmbeddingBatchSize: p.int("EMBEDDING_BATCH_SIZE", 16),
		EmbeddingWorkers:   p.int("EMBEDDING_WORKERS", 4),
		EmbeddingRPS:       p.float("EMBEDDING_RPS", 0),
		EmbeddingCacheSize: p.int("EMBEDDING_CACHE_SIZE", 512),
		EmbeddingTimeout:   p.duration("EMBEDDING_TIMEOUT", 30*time.Second),

		LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMTemperature: p.float("LLM_TEMPERATURE", 0.2),
		LLMMaxTokens:   p.int("LLM_MAX_TOKENS", 0),
		LLMTimeout:     p.duration("LLM_TIMEOUT", 120*time.Second),

		VectorBackend: strings.ToLower(getEnv("VECTOR_BACKEND", BackendMemory)),
		QdrantURL:     getEnv("QDRANT_URL", "http://localhost:6333"),

		BM25K1:        p.float("BM25_K1", 1.2),
		BM25B:         p.float("BM25_B", 0.75),
		BM25StopWords: p.bool("BM25_STOPWORDS", false),

		SearchAlpha:      p.float("SEARCH_ALPHA", 0.5),
		SearchCandidateK: p.int("SEARCH_CANDIDATE_K", 20),
		DedupEnabled:     p.bool("DEDUP_ENABLED", true),
		DedupThreshold:   p.float("DEDUP_THRESHOLD", 0.9),
		MMREnabled:       p.bool("MMR_ENABLED", false),
		MMRLambda:        p.float("MMR_LAMBDA", 0.7),

		AskTopK:            p.int("ASK_TOP_K", 5),
		AskPoolK:           p.int("ASK_POOL_K", 20),
		AskMaxChunksPerDoc: p.int("ASK_MAX_CHUNKS_PER_DOC", 2),
		AskBudgetChars:     p.int("ASK_BUDGET_CHARS", 6000),

		ChunkSize:    p.int("CHUNK_SIZE", 800),
		ChunkOverlap: p.int("CHUNK_OVERLAP", 100),

		PromptDefaultLang:      getEnv("PROMPT_DEFAULT_LANG", "en"),
		PromptAutoDetect:       p.bool("PROMPT_AUTO_DETECT", true),
		PromptRequireCitations: p.bool("PROMPT_REQUIRE_CITATIONS", true),
		PromptAdmitUnknown:     p.bool("PROMPT_ADMIT_UNKNOWN", true),
		ParserScanFallback:     p.bool("PARSER_SCAN_FALLBACK", true),
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Create the directory of a file-backed catalog if it doesn't exist
	if !strings.Contains(cfg.DBPath, ":memory:") && !strings.HasPrefix(cfg.DBPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	unit := func(v float64) bool { return v >= 0 && v <= 1 }

	check(!c.DocsWatch || c.DocsPath != "", "DOCS_WATCH requires DOCS_PATH")
	check(c.LogFormat == "text" || c.LogFormat == "json", "LOG_FORMAT must be text or json, got %q", c.LogFormat)
	check(c.EmbeddingProvider == EmbeddingHash || c.EmbeddingProvider == EmbeddingHTTP,
		"EMBEDDING_PROVIDER must be %s or %s, got %q", EmbeddingHash, EmbeddingHTTP, c.EmbeddingProvider)
	check(c.EmbeddingDim > 0, "EMBEDDING_DIM must be greater than 0")
	check(c.EmbeddingBatchSize > 0, "EMBEDDING_BATCH_SIZE must be greater than 0")
	check(c.EmbeddingWorkers > 0, "EMBEDDING_WORKERS must be greater than 0")
	check(c.EmbeddingRPS >= 0, "EMBEDDING_RPS must be >= 0")
	check(c.EmbeddingCacheSize >= 0, "EMBEDDING_CACHE_SIZE must be >= 0")
	check(c.LLMMaxTokens >= 0, "LLM_MAX_TOKENS must be >= 0")
	check(c.VectorBackend == BackendMemory || c.VectorBackend == BackendQdrant,
		"VECTOR_BACKEND must be %s or %s, got %q", BackendMemory, BackendQdrant, c.VectorBackend)
	check(c.BM25K1 >= 0, "BM25_K1 must be >= 0")
	check(unit(c.BM25B), "BM25_B must be in [0,1]")
	check(unit(c.SearchAlpha), "SEARCH_ALPHA must be in [0,1]")
	check(c.SearchCandidateK > 0, "SEARCH_CANDIDATE_K must be greater than 0")
	check(unit(c.DedupThreshold), "DEDUP_THRESHOLD must be in [0,1]")
	check(unit(c.MMRLambda), "MMR_LAMBDA must be in [0,1]")
	check(c.AskTopK > 0, "ASK_TOP_K must be greater than 0")
	check(c.AskPoolK >= 0, "ASK_POOL_K must be >= 0")
	check(c.AskMaxChunksPerDoc > 0, "ASK_MAX_CHUNKS_PER_DOC must be greater than 0")
	check(c.AskBudgetChars > 0, "ASK_BUDGET_CHARS must be greater than 0")
	check(c.ChunkSize > 0, "CHUNK_SIZE must be greater than 0")
	check(c.ChunkOverlap >= 0 && c.ChunkOverlap < c.ChunkSize, "CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")

	return errors.Join(errs...)
}

// loadDotEnv loads .env from the current directory, then from the nearest
// parent that has one. godotenv never overrides variables already set.
func loadDotEnv() {
	_ = godotenv.Load()

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
			return
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parser reads typed variables and collects every parse failure.
type parser struct {
	errs []error
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func (p *parser) fail(key, kind string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s must be a valid %s: %w", key, kind, err))
}

func (p *parser) int(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, "integer", err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, "number", err)
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, "boolean", err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, "duration", err)
		return def
	}
	return v
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, "log level", err)
		return def
	}
	return lvl
}
