package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"citerag/internal/handlers"
	"citerag/internal/rag"
	"citerag/internal/storage"
)

// Deps holds dependencies for the HTTP router. Catalog, CatalogPing, LLM and
// Coverage may be nil.
type Deps struct {
	RAGEngine   rag.Engine
	Searcher    rag.Searcher
	Ingestor    handlers.Ingestor
	Indexer     handlers.DirectoryIndexer
	Coverage    handlers.CoverageSource
	Catalog     storage.DocumentStore
	CatalogPing handlers.Pinger
	LLM         handlers.ModelLister
	// DocsPath is the directory re-ingested by POST /api/v1/index.
	DocsPath string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.RAGEngine, deps.Coverage)
	searchHandler := handlers.NewSearchHandler(deps.Searcher)
	documentsHandler := handlers.NewDocumentsHandler(deps.Ingestor, deps.Catalog)
	indexHandler := handlers.NewIndexHandler(deps.Indexer, deps.DocsPath)
	healthHandler := handlers.NewHealthHandler(deps.CatalogPing, deps.LLM)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			r.Method(http.MethodPost, "/ask", askHandler)
			r.Method(http.MethodPost, "/search", searchHandler)
			r.Method(http.MethodPost, "/index", indexHandler)

			r.Post("/documents", documentsHandler.Create)
			r.Get("/documents", documentsHandler.List)
			r.Get("/documents/*", documentsHandler.Get)
			r.Delete("/documents/*", documentsHandler.Delete)
		})
	})

	return r
}
