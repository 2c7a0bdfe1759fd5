package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"citerag/internal/contextutil"
	"citerag/internal/indexer"
	"citerag/internal/rag"
)

// maxTopK bounds the user-provided top_k.
const maxTopK = 50

// CoverageSource reports ingestion statistics for debug responses.
type CoverageSource interface {
	CatalogStats(ctx context.Context) (*indexer.IngestStats, error)
}

// AskHandler handles HTTP requests for RAG queries.
type AskHandler struct {
	ragEngine rag.Engine
	coverage  CoverageSource
}

// NewAskHandler creates a new AskHandler. coverage may be nil.
func NewAskHandler(ragEngine rag.Engine, coverage CoverageSource) *AskHandler {
	return &AskHandler{
		ragEngine: ragEngine,
		coverage:  coverage,
	}
}

// AskRequest represents the HTTP request payload for RAG queries.
//
// swagger:model AskRequest
type AskRequest struct {
	Question string            `json:"question"`
	TopK     int               `json:"top_k,omitempty"`
	Lang     string            `json:"lang,omitempty"`
	Filter   map[string]string `json:"filter,omitempty"`
}

// AskResponse represents the HTTP response payload for RAG queries.
//
// swagger:model AskResponse
type AskResponse struct {
	// The answer, generated or extracted from the context
	Answer string `json:"answer"`

	// Sources the answer cites, in order of first citation
	Citations []rag.Citation `json:"citations"`

	// Number of chunks placed in the context
	UsedK int `json:"used_k"`

	// How the answer was produced: null, "no-matches", "extractive-fallback" or "llm-no-citations"
	Notes rag.Note `json:"notes"`

	// Debug contains debug information when debug mode is enabled (via ?debug=true query parameter).
	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo contains debug information when debug mode is enabled.
//
// swagger:model DebugInfo
type DebugInfo struct {
	// TotalMs is the time spent answering (milliseconds).
	TotalMs int64 `json:"total_ms"`
	// IndexingCoverage contains catalog statistics.
	IndexingCoverage *indexer.IngestStats `json:"indexing_coverage,omitempty"`
}

// ServeHTTP handles HTTP requests for RAG queries.
//
// swagger:route POST /api/v1/ask askQuestion
//
// # Ask a question using RAG
//
// Retrieves relevant chunks, builds a budgeted context and answers with
// citations. Generation failures fall back to an extractive answer.
//
// responses:
//
//	'200':
//	  description: Answer with citations
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Bad request (blank question or invalid top_k)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'500':
//	  description: Internal server error
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(ctx, w, err, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		logger.WarnContext(ctx, "empty question in request")
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must be >= 0")
		return
	}
	if req.TopK > maxTopK {
		req.TopK = maxTopK
	}

	out, err := h.ragEngine.Ask(ctx, rag.AskRequest{
		Question: req.Question,
		TopK:     req.TopK,
		Lang:     req.Lang,
		Filter:   req.Filter,
	})
	if err != nil {
		handleError(ctx, w, err, "Failed to process RAG query")
		return
	}

	resp := AskResponse{
		Answer:    out.Answer,
		Citations: out.Citations,
		UsedK:     out.UsedK,
		Notes:     out.Notes,
	}
	if resp.Citations == nil {
		resp.Citations = []rag.Citation{}
	}

	if debugEnabled(r) {
		resp.Debug = &DebugInfo{TotalMs: time.Since(start).Milliseconds()}
		if h.coverage != nil {
			stats, err := h.coverage.CatalogStats(ctx)
			if err != nil {
				logger.WarnContext(ctx, "failed to get indexing coverage stats", "error", err)
			} else {
				resp.Debug.IndexingCoverage = stats
			}
		}
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

func debugEnabled(r *http.Request) bool {
	v := strings.ToLower(r.URL.Query().Get("debug"))
	return v == "true" || v == "1"
}
