package rag

import (
	"encoding/json"

	"citerag/internal/domain"
)

// Note explains how an answer was produced. The zero value is a normal
// generated answer and encodes as JSON null.
type Note string

const (
	NoteNone               Note = ""
	NoteNoMatches          Note = "no-matches"
	NoteExtractiveFallback Note = "extractive-fallback"
	NoteLLMNoCitations     Note = "llm-no-citations"
)

// MarshalJSON encodes NoteNone as null.
func (n Note) MarshalJSON() ([]byte, error) {
	if n == NoteNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(n))
}

// AskRequest represents a RAG query request.
type AskRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// TopK is the number of chunks to put into the context. 0 uses the configured default.
	TopK int `json:"top_k,omitempty"`
	// Lang forces the prompt language ("en", "pt-BR"). Empty means detect or default.
	Lang string `json:"lang,omitempty"`
	// Filter restricts retrieval to chunks whose metadata matches every entry.
	Filter map[string]string `json:"filter,omitempty"`
}

// Citation is a source the answer refers to.
type Citation struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	// ChunkIndex is the chunk index within the document, -1 when unknown.
	ChunkIndex int `json:"chunk_index"`
}

// AskOutput represents the response from a RAG query.
type AskOutput struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	// UsedK is the number of chunks placed in the context.
	UsedK int  `json:"used_k"`
	Notes Note `json:"notes"`
}

// ContextSource is a retrieved chunk as seen by selection and context building.
type ContextSource struct {
	DocumentID string
	Title      string
	ChunkIndex int
	Text       string
	Score      float64
}

// CitationEntry binds a citation number to the chunk it was assigned to.
type CitationEntry struct {
	N          int    `json:"n"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	ChunkIndex int    `json:"chunk_index"`
}

// Citation returns the entry without its number.
func (e CitationEntry) Citation() Citation {
	return Citation{DocumentID: e.DocumentID, Title: e.Title, ChunkIndex: e.ChunkIndex}
}

// BuiltContext is the assembled prompt context and its citation index.
// Citation numbers are 1-based, dense and in build order.
type BuiltContext struct {
	Text      string
	Citations []CitationEntry
	UsedK     int
	Truncated bool
}

// Lookup returns the entry numbered n.
func (b BuiltContext) Lookup(n int) (CitationEntry, bool) {
	if n < 1 || n > len(b.Citations) {
		return CitationEntry{}, false
	}
	// Numbering is dense, so entry n sits at n-1.
	e := b.Citations[n-1]
	return e, e.N == n
}

// ParsedOutput is what the output parser extracted from generated text.
type ParsedOutput struct {
	Answer          string
	CitationNumbers []int
}

// sourceFromMatch converts a search hit into a context source.
func sourceFromMatch(m domain.SearchMatch, title string) ContextSource {
	return ContextSource{
		DocumentID: m.DocumentID,
		Title:      title,
		ChunkIndex: m.ChunkIndex(),
		Text:       m.Chunk.Text,
		Score:      m.Score,
	}
}
