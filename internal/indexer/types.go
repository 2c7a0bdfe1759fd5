package indexer

import "strings"

// Content formats understood by the pipeline.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Document is a unit of ingestion.
type Document struct {
	// ID is the document identity used by every index. Re-ingesting an ID replaces it.
	ID string `json:"id"`
	// Title overrides the title extracted from the content.
	Title string `json:"title,omitempty"`
	// Source records where the content came from (file path, URL).
	Source string `json:"source,omitempty"`
	// Format is FormatMarkdown or FormatText. Empty is inferred from Source.
	Format  string `json:"format,omitempty"`
	Content string `json:"content"`
	// Metadata is copied onto every chunk and can be used as a search filter.
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (d Document) format() string {
	if d.Format != "" {
		return d.Format
	}
	if strings.HasSuffix(strings.ToLower(d.Source), ".txt") {
		return FormatText
	}
	return FormatMarkdown
}

// Result describes one indexed document.
type Result struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Chunks     int    `json:"chunks"`
	// Tokens holds the estimated token count of each chunk.
	Tokens []int `json:"-"`
}
