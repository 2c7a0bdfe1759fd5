package handlers

import (
	"net/http"
	"strings"

	"citerag/internal/contextutil"
	"citerag/internal/rag"
	"citerag/internal/search"
)

// SearchHandler exposes hybrid retrieval without generation.
type SearchHandler struct {
	searcher rag.Searcher
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searcher rag.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// SearchRequest is the payload of POST /api/v1/search.
//
// swagger:model SearchRequest
type SearchRequest struct {
	Query  string            `json:"query"`
	TopK   int               `json:"top_k,omitempty"`
	Filter map[string]string `json:"filter,omitempty"`
}

// SearchResult is one ranked chunk.
//
// swagger:model SearchResult
type SearchResult struct {
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Title      string            `json:"title,omitempty"`
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SearchResponse lists results best first.
//
// swagger:model SearchResponse
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// ServeHTTP handles POST /api/v1/search.
//
// swagger:route POST /api/v1/search searchChunks
//
// # Hybrid search
//
// Returns the fused BM25 and vector ranking after deduplication and optional MMR.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(ctx, w, err, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		logger.WarnContext(ctx, "empty search query")
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must be >= 0")
		return
	}
	topK := req.TopK
	if topK == 0 {
		topK = search.DefaultCandidateK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	matches, err := h.searcher.Search(ctx, search.Query{Text: req.Query, TopK: topK, Filter: req.Filter})
	if err != nil {
		handleError(ctx, w, err, "Search failed")
		return
	}

	resp := SearchResponse{Results: make([]SearchResult, 0, len(matches))}
	for _, m := range matches {
		resp.Results = append(resp.Results, SearchResult{
			DocumentID: m.DocumentID,
			ChunkIndex: m.ChunkIndex(),
			Title:      m.Chunk.Title(),
			Text:       m.Chunk.Text,
			Score:      m.Score,
			Metadata:   m.Chunk.Metadata,
		})
	}
	logger.DebugContext(ctx, "search served", "top_k", topK, "results", len(resp.Results))
	writeJSON(ctx, w, http.StatusOK, resp)
}
