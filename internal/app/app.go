// Package app wires the stores, indices and pipelines both binaries share.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"citerag/internal/config"
	"citerag/internal/contextutil"
	"citerag/internal/embedding"
	apihttp "citerag/internal/http"
	"citerag/internal/i18n"
	"citerag/internal/indexer"
	"citerag/internal/llm"
	"citerag/internal/rag"
	"citerag/internal/search"
	"citerag/internal/storage"
	"citerag/internal/textindex"
	"citerag/internal/vectorstore"
)

// App holds every long-lived component. Stores are created once here and
// passed by reference.
type App struct {
	Config    *config.Config
	DB        *sql.DB
	Documents *storage.DocumentRepo
	Chunks    *storage.ChunkRepo
	Embedder  embedding.Embedder
	Vectors   vectorstore.VectorStore
	Text      *textindex.Index
	Pipeline  *indexer.Pipeline
	Search    *search.Orchestrator
	Engine    rag.Engine
	// LLM is nil when no generation backend is configured.
	LLM *llm.Client

	closers []func() error
}

// New builds the application from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := contextutil.LoggerFromContext(ctx)
	a := &App{Config: cfg}

	if err := a.openCatalog(ctx); err != nil {
		return nil, err
	}

	var err error
	if a.Embedder, err = newEmbedder(cfg); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.Vectors, err = a.newVectorStore(); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Text, err = textindex.New(textindex.Options{
		TermFrequencySaturation: cfg.BM25K1,
		LengthNormalization:     cfg.BM25B,
		RemoveStopWords:         cfg.BM25StopWords,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create text index: %w", err)
	}

	chunker, err := indexer.NewSlidingWindowChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	a.Pipeline = indexer.NewPipeline(a.Embedder, a.Vectors, a.Text, chunker, a.Documents, a.Chunks)

	if a.Search, err = newSearch(cfg, a.Embedder, a.Vectors, a.Text); err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.LLMBaseURL != "" {
		a.LLM, err = llm.NewClient(llm.Config{
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: float32(cfg.LLMTemperature),
			MaxTokens:   cfg.LLMMaxTokens,
			Timeout:     cfg.LLMTimeout,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
	}

	if a.Engine, err = a.newEngine(); err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "application initialized",
		"embedding", a.Embedder.Spec().Collection().Key(),
		"vector_backend", cfg.VectorBackend,
		"catalog", cfg.DBPath,
		"llm", cfg.LLMBaseURL != "")
	return a, nil
}

func (a *App) openCatalog(ctx context.Context) error {
	db, err := storage.New(a.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	a.Documents = storage.NewDocumentRepo(db)
	a.Chunks = storage.NewChunkRepo(db)
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "database initialized", "path", a.Config.DBPath)
	return nil
}

// newEmbedder builds provider -> normalizing -> caching. Decorators are
// applied here only.
func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.EmbeddingProvider {
	case config.EmbeddingHTTP:
		e, err := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:           cfg.EmbeddingBaseURL,
			APIKey:            cfg.EmbeddingAPIKey,
			Model:             cfg.EmbeddingModel,
			Dimension:         cfg.EmbeddingDim,
			BatchSize:         cfg.EmbeddingBatchSize,
			Workers:           cfg.EmbeddingWorkers,
			RequestsPerSecond: cfg.EmbeddingRPS,
			Timeout:           cfg.EmbeddingTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		base = e
	default:
		e, err := embedding.NewHashingEmbedder(cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		base = e
	}

	if cfg.EmbeddingNormalize {
		base = embedding.NewNormalizing(base)
	}
	if cfg.EmbeddingCacheSize > 0 {
		cached, err := embedding.NewCaching(base, cfg.EmbeddingCacheSize)
		if err != nil {
			return nil, err
		}
		base = cached
	}
	return base, nil
}

func (a *App) newVectorStore() (vectorstore.VectorStore, error) {
	if a.Config.VectorBackend != config.BackendQdrant {
		return vectorstore.NewMemoryStore(), nil
	}
	store, err := vectorstore.NewQdrantStore(a.Config.QdrantURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func newSearch(cfg *config.Config, embedder embedding.Embedder, vectors vectorstore.VectorStore, text *textindex.Index) (*search.Orchestrator, error) {
	aggregator, err := search.NewHybridAggregator(cfg.SearchAlpha)
	if err != nil {
		return nil, err
	}
	opts := search.Options{CandidateK: cfg.SearchCandidateK}
	if cfg.DedupEnabled {
		if opts.Dedup, err = search.NewSoftDedupFilter(cfg.DedupThreshold); err != nil {
			return nil, err
		}
	}
	if cfg.MMREnabled {
		if opts.Reranker, err = search.NewMMRReranker(cfg.MMRLambda); err != nil {
			return nil, err
		}
	}
	return search.NewOrchestrator(embedder, vectors, text, aggregator, opts), nil
}

func (a *App) newEngine() (rag.Engine, error) {
	catalog := i18n.Default()
	components := rag.Components{
		Searcher:  a.Search,
		Titles:    a.Documents,
		Localizer: catalog,
		Prompts: rag.NewLocalizedPromptBuilder(catalog, rag.PromptOptions{
			DefaultLang:      a.Config.PromptDefaultLang,
			AutoDetect:       a.Config.PromptAutoDetect,
			RequireCitations: a.Config.PromptRequireCitations,
			AdmitUnknown:     a.Config.PromptAdmitUnknown,
		}),
		Contexts: rag.BudgetContextBuilder{},
		Parser:   rag.OutputParser{ScanAnswer: a.Config.ParserScanFallback},
	}
	// A nil *llm.Client must stay a nil interface.
	if a.LLM != nil {
		components.Generator = a.LLM
	}
	return rag.NewEngine(components, rag.Config{
		TopK:            a.Config.AskTopK,
		PoolK:           a.Config.AskPoolK,
		MaxChunksPerDoc: a.Config.AskMaxChunksPerDoc,
		BudgetChars:     a.Config.AskBudgetChars,
	})
}

// Handler returns the HTTP API for this application.
func (a *App) Handler() http.Handler {
	deps := &apihttp.Deps{
		RAGEngine:   a.Engine,
		Searcher:    a.Search,
		Ingestor:    a.Pipeline,
		Indexer:     a.Pipeline,
		Coverage:    a.Pipeline,
		Catalog:     a.Documents,
		CatalogPing: a.DB,
		DocsPath:    a.Config.DocsPath,
	}
	if a.LLM != nil {
		deps.LLM = a.LLM
	}
	return apihttp.NewRouter(deps)
}

// IngestDocs indexes Config.DocsPath when set. It returns nil stats when no
// directory is configured.
func (a *App) IngestDocs(ctx context.Context) (*indexer.IngestStats, error) {
	if a.Config.DocsPath == "" {
		return nil, nil
	}
	return a.Pipeline.IndexDirectory(ctx, a.Config.DocsPath)
}

// WatchDocs re-indexes Config.DocsPath files as they change until ctx is
// done. It returns nil at once when no directory is configured.
func (a *App) WatchDocs(ctx context.Context) error {
	if a.Config.DocsPath == "" {
		return nil
	}
	w, err := indexer.NewWatcher(a.Pipeline, a.Config.DocsPath, a.Config.DocsWatchDebounce)
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Close()
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the catalog and vector store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		slog.Warn("failed to close application resources", "error", err)
		return err
	}
	return nil
}
