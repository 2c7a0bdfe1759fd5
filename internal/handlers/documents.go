package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"citerag/internal/contextutil"
	"citerag/internal/indexer"
	"citerag/internal/storage"
)

// Ingestor indexes and removes documents.
type Ingestor interface {
	IndexDocument(ctx context.Context, doc indexer.Document) (*indexer.Result, error)
	DeleteDocument(ctx context.Context, id string) (int, error)
}

// DocumentsHandler serves the document collection under /api/v1/documents.
type DocumentsHandler struct {
	ingestor Ingestor
	catalog  storage.DocumentStore
}

// NewDocumentsHandler creates a new DocumentsHandler. catalog may be nil, in
// which case listing and lookup report an empty collection.
func NewDocumentsHandler(ingestor Ingestor, catalog storage.DocumentStore) *DocumentsHandler {
	return &DocumentsHandler{ingestor: ingestor, catalog: catalog}
}

// DocumentListResponse wraps the catalog listing.
//
// swagger:model DocumentListResponse
type DocumentListResponse struct {
	Documents []*storage.Document `json:"documents"`
}

// DeleteResponse reports how many chunks were removed.
//
// swagger:model DeleteResponse
type DeleteResponse struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// Create handles POST /api/v1/documents.
//
// swagger:route POST /api/v1/documents createDocument
//
// # Ingest a document
//
// Chunks, embeds and indexes the document, replacing any document with the same ID.
func (h *DocumentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var doc indexer.Document
	if err := decodeJSON(w, r, &doc); err != nil {
		handleError(ctx, w, err, "Invalid request body")
		return
	}
	switch doc.Format {
	case "", indexer.FormatMarkdown, indexer.FormatText:
	default:
		writeError(w, http.StatusBadRequest, "format must be markdown or text")
		return
	}

	res, err := h.ingestor.IndexDocument(ctx, doc)
	if err != nil {
		handleError(ctx, w, err, "Failed to index document")
		return
	}
	writeJSON(ctx, w, http.StatusCreated, res)
}

// List handles GET /api/v1/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := DocumentListResponse{Documents: []*storage.Document{}}
	if h.catalog != nil {
		docs, err := h.catalog.List(ctx)
		if err != nil {
			handleError(ctx, w, err, "Failed to list documents")
			return
		}
		resp.Documents = docs
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// documentID reads the ID from the wildcard route segment. IDs are relative
// paths and may contain slashes.
func documentID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "*"))
}

// Get handles GET /api/v1/documents/{id...}.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := documentID(r)

	if h.catalog == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	doc, err := h.catalog.Get(ctx, id)
	if err != nil {
		handleError(ctx, w, err, "Failed to get document")
		return
	}
	writeJSON(ctx, w, http.StatusOK, doc)
}

// Delete handles DELETE /api/v1/documents/{id...}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := documentID(r)

	removed, err := h.ingestor.DeleteDocument(ctx, id)
	if err != nil {
		handleError(ctx, w, err, "Failed to delete document")
		return
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "document deleted via API", "document_id", id, "chunks", removed)
	writeJSON(ctx, w, http.StatusOK, DeleteResponse{DocumentID: id, Chunks: removed})
}
