package domain

import (
	"strconv"
	"strings"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaChunkIndex = "chunk_index"
	MetaChunkTotal = "chunk_total"
	MetaTitle      = "title"
)

// NoChunkIndex marks a chunk whose metadata carries no usable chunk index.
const NoChunkIndex = -1

// TextChunk is a piece of a document together with its string-keyed metadata.
type TextChunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChunkIndex parses the chunk_index metadata entry.
func (c TextChunk) ChunkIndex() (int, bool) {
	raw, ok := c.Metadata[MetaChunkIndex]
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// IndexOr returns the chunk index or fallback when the metadata has none.
func (c TextChunk) IndexOr(fallback int) int {
	if idx, ok := c.ChunkIndex(); ok {
		return idx
	}
	return fallback
}

// Title returns the title metadata entry, if any.
func (c TextChunk) Title() string {
	return strings.TrimSpace(c.Metadata[MetaTitle])
}

// MatchesFilter reports whether every filter entry is present in the metadata with the same value.
func (c TextChunk) MatchesFilter(filter map[string]string) bool {
	for k, v := range filter {
		got, ok := c.Metadata[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// CloneMetadata returns a copy of the metadata map so stored chunks stay immutable.
func (c TextChunk) CloneMetadata() TextChunk {
	if c.Metadata == nil {
		return c
	}
	meta := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return TextChunk{Text: c.Text, Metadata: meta}
}
