package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"citerag/internal/apperr"
	"citerag/internal/contextutil"
	"citerag/internal/domain"
	"citerag/internal/embedding"
	"citerag/internal/storage"
	"citerag/internal/vectorstore"
)

// TextIndexer is the lexical index the pipeline writes to.
type TextIndexer interface {
	// Replace swaps a document's chunks atomically with respect to searches.
	Replace(documentID string, chunks []domain.TextChunk) (int, error)
	Delete(documentID string) int
}

// Pipeline turns documents into chunks and writes them to the text index,
// the vector store and the document catalog.
type Pipeline struct {
	embedder embedding.Embedder
	vectors  vectorstore.VectorStore
	text     TextIndexer
	chunker  *SlidingWindowChunker
	docs     storage.DocumentStore
	chunks   storage.ChunkStore

	// mu serializes writes so the indexes never disagree about a document.
	mu sync.Mutex
}

// NewPipeline creates a new ingestion pipeline. docs and chunks may be nil
// when no catalog is kept.
func NewPipeline(
	embedder embedding.Embedder,
	vectors vectorstore.VectorStore,
	text TextIndexer,
	chunker *SlidingWindowChunker,
	docs storage.DocumentStore,
	chunks storage.ChunkStore,
) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		vectors:  vectors,
		text:     text,
		chunker:  chunker,
		docs:     docs,
		chunks:   chunks,
	}
}

// IndexDocument chunks, embeds and stores doc, replacing any earlier version.
// Embedding happens before any index is touched, so a failed batch leaves
// the previous version in place.
func (p *Pipeline) IndexDocument(ctx context.Context, doc Document) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		return nil, apperr.Invalid("id", "cannot be blank")
	}

	title, body := doc.Title, doc.Content
	if doc.format() == FormatMarkdown {
		var extracted string
		extracted, body = MarkdownToText([]byte(doc.Content), doc.Source)
		if strings.TrimSpace(title) == "" {
			title = extracted
		}
	}
	if strings.TrimSpace(title) == "" {
		title = TitleFromFilename(doc.Source)
	}
	if strings.TrimSpace(title) == "" {
		title = id
	}

	chunks := p.chunker.Chunk(body, title, doc.Metadata)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	spec := p.embedder.Spec()
	var vectors []domain.Vector
	if len(texts) > 0 {
		var err error
		vectors, err = p.embedder.EmbedAll(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors))
		}
		for _, v := range vectors {
			if v.Dim() != spec.Dimension {
				return nil, apperr.DimensionMismatch(spec.Dimension, v.Dim())
			}
		}
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i := range chunks {
		entries[i] = vectorstore.Entry{Chunk: chunks[i], Vector: vectors[i]}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.vectors.Upsert(ctx, spec.Collection(), id, entries); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	if _, err := p.text.Replace(id, chunks); err != nil {
		return nil, fmt.Errorf("failed to index text: %w", err)
	}

	if err := p.catalog(ctx, id, title, doc, chunks); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "indexed document", "document_id", id, "chunks", len(chunks), "title", title)
	return &Result{DocumentID: id, Title: title, Chunks: len(chunks), Tokens: tokenCounts(texts)}, nil
}

func (p *Pipeline) catalog(ctx context.Context, id, title string, doc Document, chunks []domain.TextChunk) error {
	if p.docs == nil {
		return nil
	}
	hash := sha256.Sum256([]byte(doc.Content))
	if err := p.docs.Upsert(ctx, &storage.Document{
		ID:         id,
		Title:      title,
		Source:     doc.Source,
		Hash:       hex.EncodeToString(hash[:]),
		ChunkCount: len(chunks),
		Metadata:   doc.Metadata,
	}); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	if p.chunks == nil {
		return nil
	}
	records := make([]storage.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = storage.ChunkRecord{DocumentID: id, ChunkIndex: c.IndexOr(i), Text: c.Text}
	}
	if err := p.chunks.ReplaceForDocument(ctx, id, records); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

// DeleteDocument removes a document from every index and the catalog.
// It returns apperr.ErrNotFound when nothing held the document.
func (p *Pipeline) DeleteDocument(ctx context.Context, id string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(id) == "" {
		return 0, apperr.Invalid("id", "cannot be blank")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	removed, err := p.vectors.DeleteByDocumentID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}
	textRemoved := p.text.Delete(id)

	cataloged := false
	if p.docs != nil {
		if cataloged, err = p.docs.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("failed to delete document: %w", err)
		}
	}

	if removed == 0 && textRemoved == 0 && !cataloged {
		return 0, fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}

	removed = max(removed, textRemoved)
	logger.InfoContext(ctx, "deleted document", "document_id", id, "chunks", removed)
	return removed, nil
}

// IndexDirectory scans root and indexes every markdown and text file, using
// the slash-separated relative path as document ID. Failures of single files
// are logged and counted; the scan goes on.
func (p *Pipeline) IndexDirectory(ctx context.Context, root string) (*IngestStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "starting indexing", "root", root, "total_files", len(files))
	stats := p.newStats()
	var tokens []int

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := p.indexFile(ctx, file)
		if err != nil {
			stats.Errors++
			logger.ErrorContext(ctx, "failed to index file", "rel_path", file.RelPath, "error", err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			continue
		}

		stats.DocsProcessed++
		if res.Chunks == 0 {
			stats.DocsWith0Chunks++
		}
		stats.ChunksEmbedded += res.Chunks
		tokens = append(tokens, res.Tokens...)
	}

	stats.ChunkTokenStats = computeTokenStats(tokens)
	logger.InfoContext(ctx, "indexing completed",
		"total_files", len(files),
		"success", stats.DocsProcessed,
		"errors", stats.Errors,
		"chunks", stats.ChunksEmbedded)

	if stats.Errors > 0 {
		return stats, fmt.Errorf("indexing completed with %d errors", stats.Errors)
	}
	return stats, nil
}

// indexFile reads a scanned file and indexes it under its relative path.
// PDFs are indexed as plain text.
func (p *Pipeline) indexFile(ctx context.Context, file ScannedFile) (*Result, error) {
	doc := Document{
		ID:     file.RelPath,
		Source: file.RelPath,
	}
	if file.Folder != "" {
		doc.Metadata = map[string]string{"folder": file.Folder}
	}

	if strings.EqualFold(filepath.Ext(file.AbsPath), ".pdf") {
		content, err := PDFToText(file.AbsPath)
		if err != nil {
			return nil, err
		}
		doc.Content = content
		doc.Format = FormatText
	} else {
		content, err := os.ReadFile(file.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		doc.Content = string(content)
	}
	return p.IndexDocument(ctx, doc)
}
