package indexer

import (
	"strconv"
	"strings"

	"citerag/internal/apperr"
	"citerag/internal/domain"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// breakPoints are the preferred chunk boundaries, strongest first.
var breakPoints = []string{"\n\n", "\n", ". ", "? ", "! ", "; ", ", ", " "}

// SlidingWindowChunker cuts text into windows of at most Size runes, each
// starting Overlap runes before the previous one ended. Windows end on a
// paragraph, line, sentence or word boundary when one lies in their second half.
type SlidingWindowChunker struct {
	size    int
	overlap int
}

// NewSlidingWindowChunker validates size > 0 and 0 <= overlap < size.
func NewSlidingWindowChunker(size, overlap int) (*SlidingWindowChunker, error) {
	if size <= 0 {
		return nil, apperr.Invalid("chunk_size", "must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, apperr.Invalid("chunk_overlap", "must be in [0, %d), got %d", size, overlap)
	}
	return &SlidingWindowChunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in runes.
func (c *SlidingWindowChunker) Size() int { return c.size }

// Overlap returns the overlap in runes.
func (c *SlidingWindowChunker) Overlap() int { return c.overlap }

// Split returns the trimmed, non-blank windows of text.
func (c *SlidingWindowChunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var out []string
	start := 0
	for {
		end := min(start+c.size, n)
		if end < n {
			end = c.breakBefore(runes, start, end)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end >= n {
			break
		}
		start = max(end-c.overlap, start+1)
	}
	return out
}

// breakBefore moves end back to the strongest boundary in the second half of the window.
func (c *SlidingWindowChunker) breakBefore(runes []rune, start, end int) int {
	floor := start + c.size/2
	window := string(runes[floor:end])
	for _, sep := range breakPoints {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return floor + len([]rune(window[:i+len(sep)]))
		}
	}
	return end
}

// Chunk splits text and attaches metadata: a copy of meta plus chunk_index,
// chunk_total and, when non-blank, title.
func (c *SlidingWindowChunker) Chunk(text, title string, meta map[string]string) []domain.TextChunk {
	pieces := c.Split(text)
	chunks := make([]domain.TextChunk, 0, len(pieces))
	total := strconv.Itoa(len(pieces))
	for i, piece := range pieces {
		m := make(map[string]string, len(meta)+3)
		for k, v := range meta {
			m[k] = v
		}
		m[domain.MetaChunkIndex] = strconv.Itoa(i)
		m[domain.MetaChunkTotal] = total
		if t := strings.TrimSpace(title); t != "" {
			m[domain.MetaTitle] = t
		}
		chunks = append(chunks, domain.TextChunk{Text: piece, Metadata: m})
	}
	return chunks
}
