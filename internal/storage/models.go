package storage

import "time"

// Document is a catalog entry for an ingested document.
type Document struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Source     string            `json:"source,omitempty"` // File path or other origin
	Hash       string            `json:"hash"`             // SHA256 hex of the raw content
	ChunkCount int               `json:"chunk_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ChunkRecord is the stored text of one chunk.
type ChunkRecord struct {
	DocumentID string
	ChunkIndex int
	Text       string
}
