package handlers

import (
	"context"
	"net/http"
	"sync/atomic"

	"citerag/internal/contextutil"
	"citerag/internal/indexer"
)

// DirectoryIndexer ingests every document below a root directory.
type DirectoryIndexer interface {
	IndexDirectory(ctx context.Context, root string) (*indexer.IngestStats, error)
}

// IndexHandler handles HTTP requests for re-ingesting the configured docs directory.
type IndexHandler struct {
	indexer DirectoryIndexer
	root    string
	running atomic.Bool
	// done is signalled after each background run; used by tests.
	done func(*indexer.IngestStats, error)
}

// NewIndexHandler creates a new IndexHandler for root.
func NewIndexHandler(indexer DirectoryIndexer, root string) *IndexHandler {
	return &IndexHandler{indexer: indexer, root: root}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP handles POST /api/v1/index.
//
// Re-ingestion runs in the background; the response returns immediately.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.root == "" {
		writeError(w, http.StatusConflict, "No documents directory configured")
		return
	}
	if !h.running.CompareAndSwap(false, true) {
		writeJSON(ctx, w, http.StatusConflict, IndexResponse{
			Message: "Indexing already in progress.",
			Status:  "running",
		})
		return
	}

	logger.InfoContext(ctx, "re-indexing triggered via API", "root", h.root)

	// Detach from the request so indexing outlives the response.
	indexCtx := context.WithoutCancel(ctx)
	go func() {
		defer h.running.Store(false)
		stats, err := h.indexer.IndexDirectory(indexCtx, h.root)
		if err != nil {
			logger.ErrorContext(indexCtx, "re-indexing completed with errors", "error", err)
		} else {
			logger.InfoContext(indexCtx, "re-indexing completed successfully",
				"docs", stats.DocsProcessed, "chunks", stats.ChunksEmbedded)
		}
		if h.done != nil {
			h.done(stats, err)
		}
	}()

	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: "Indexing started. Check server logs for progress.",
		Status:  "accepted",
	})
}
