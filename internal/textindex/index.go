// Package textindex implements an in-memory BM25 inverted index over document chunks.
package textindex

import (
	"math"
	"strings"
	"sync"

	"citerag/internal/apperr"
	"citerag/internal/domain"
	"citerag/internal/textutil"
)

const (
	// DefaultTermFrequencySaturation is the BM25 k1 parameter.
	DefaultTermFrequencySaturation = 1.2
	// DefaultLengthNormalization is the BM25 b parameter.
	DefaultLengthNormalization = 0.75
)

// Options configures BM25 scoring and tokenization.
type Options struct {
	// TermFrequencySaturation (k1) controls how quickly repeated terms stop adding score.
	TermFrequencySaturation float64
	// LengthNormalization (b) controls how much long chunks are penalised. Must be in [0,1].
	LengthNormalization float64
	// RemoveStopWords drops common English and Portuguese words from chunks and queries.
	RemoveStopWords bool
}

// DefaultOptions returns the standard BM25 parameters.
func DefaultOptions() Options {
	return Options{
		TermFrequencySaturation: DefaultTermFrequencySaturation,
		LengthNormalization:     DefaultLengthNormalization,
	}
}

type entryKey struct {
	documentID string
	index      int
}

// entry is immutable once stored; upserts replace the pointer.
type entry struct {
	documentID string
	chunk      domain.TextChunk
	terms      map[string]int
	length     int
}

// Index is a BM25 index keyed by (document ID, chunk index).
// It is safe for concurrent use.
type Index struct {
	opts Options

	mu          sync.RWMutex
	entries     map[entryKey]*entry
	byDocument  map[string]map[int]struct{}
	docFreq     map[string]int
	totalLength int
}

// New creates an empty index.
func New(opts Options) (*Index, error) {
	if opts.TermFrequencySaturation < 0 || math.IsNaN(opts.TermFrequencySaturation) {
		return nil, apperr.Invalid("term_frequency_saturation", "must be >= 0, got %v", opts.TermFrequencySaturation)
	}
	if opts.LengthNormalization < 0 || opts.LengthNormalization > 1 || math.IsNaN(opts.LengthNormalization) {
		return nil, apperr.Invalid("length_normalization", "must be in [0,1], got %v", opts.LengthNormalization)
	}
	return &Index{
		opts:       opts,
		entries:    make(map[entryKey]*entry),
		byDocument: make(map[string]map[int]struct{}),
		docFreq:    make(map[string]int),
	}, nil
}

func (ix *Index) tokens(text string) []string {
	tokens := textutil.Tokenize(text)
	if ix.opts.RemoveStopWords {
		tokens = textutil.RemoveStopWords(tokens)
	}
	return tokens
}

// Index upserts chunks for documentID. Each chunk is keyed by its chunk_index
// metadata, or by its position in chunks when the metadata has none.
// It returns the number of entries written.
func (ix *Index) Index(documentID string, chunks []domain.TextChunk) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, apperr.Invalid("document_id", "cannot be blank")
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	prepared := ix.prepare(documentID, chunks)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	keys := ix.byDocument[documentID]
	if keys == nil {
		keys = make(map[int]struct{}, len(prepared))
		ix.byDocument[documentID] = keys
	}
	for idx, e := range prepared {
		key := entryKey{documentID: documentID, index: idx}
		if old, ok := ix.entries[key]; ok {
			ix.unaccount(old)
		}
		ix.entries[key] = e
		keys[idx] = struct{}{}
		ix.account(e)
	}
	return len(prepared), nil
}

// Replace swaps every entry of documentID for chunks in one step: a
// concurrent Search sees either the old entries or the new ones.
// Empty chunks removes the document.
func (ix *Index) Replace(documentID string, chunks []domain.TextChunk) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, apperr.Invalid("document_id", "cannot be blank")
	}
	prepared := ix.prepare(documentID, chunks)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(documentID)
	if len(prepared) == 0 {
		return 0, nil
	}
	keys := make(map[int]struct{}, len(prepared))
	for idx, e := range prepared {
		ix.entries[entryKey{documentID: documentID, index: idx}] = e
		keys[idx] = struct{}{}
		ix.account(e)
	}
	ix.byDocument[documentID] = keys
	return len(prepared), nil
}

// prepare tokenizes chunks outside the lock. Later chunks win on a shared key.
func (ix *Index) prepare(documentID string, chunks []domain.TextChunk) map[int]*entry {
	prepared := make(map[int]*entry, len(chunks))
	for pos, chunk := range chunks {
		tokens := ix.tokens(chunk.Text)
		terms := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			terms[tok]++
		}
		prepared[chunk.IndexOr(pos)] = &entry{
			documentID: documentID,
			chunk:      chunk.CloneMetadata(),
			terms:      terms,
			length:     len(tokens),
		}
	}
	return prepared
}

// Delete removes every entry of documentID and returns how many were removed.
func (ix *Index) Delete(documentID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removeLocked(documentID)
}

func (ix *Index) removeLocked(documentID string) int {
	keys, ok := ix.byDocument[documentID]
	if !ok {
		return 0
	}
	for idx := range keys {
		key := entryKey{documentID: documentID, index: idx}
		if e, ok := ix.entries[key]; ok {
			ix.unaccount(e)
			delete(ix.entries, key)
		}
	}
	delete(ix.byDocument, documentID)
	return len(keys)
}

// Size returns the number of indexed chunks.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// account, unaccount and removeLocked must be called with mu held for writing.
func (ix *Index) account(e *entry) {
	ix.totalLength += e.length
	for term := range e.terms {
		ix.docFreq[term]++
	}
}

func (ix *Index) unaccount(e *entry) {
	ix.totalLength -= e.length
	for term := range e.terms {
		ix.docFreq[term]--
		if ix.docFreq[term] <= 0 {
			delete(ix.docFreq, term)
		}
	}
}
