package textindex

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"

	"citerag/internal/apperr"
	"citerag/internal/domain"
)

func chunk(idx int, text string) domain.TextChunk {
	return domain.TextChunk{
		Text:     text,
		Metadata: map[string]string{domain.MetaChunkIndex: strconv.Itoa(idx)},
	}
}

func newIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ix
}

func TestNew_ValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative k1", Options{TermFrequencySaturation: -1, LengthNormalization: 0.75}},
		{"b above one", Options{TermFrequencySaturation: 1.2, LengthNormalization: 1.5}},
		{"b negative", Options{TermFrequencySaturation: 1.2, LengthNormalization: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("New() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSearch_BM25Score(t *testing.T) {
	ix := newIndex(t)
	if _, err := ix.Index("d1", []domain.TextChunk{chunk(0, "apple banana")}); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Index("d2", []domain.TextChunk{chunk(0, "cherry date")}); err != nil {
		t.Fatal(err)
	}

	hits := ix.Search("apple", 10, nil)
	if len(hits) != 1 {
		t.Fatalf("Search() returned %d hits, want 1", len(hits))
	}
	// N=2, df=1, dl=avgdl: idf = ln(2), term score = 1.
	if want := math.Log(2); math.Abs(hits[0].Score-want) > 1e-9 {
		t.Errorf("score = %f, want %f", hits[0].Score, want)
	}
	if hits[0].DocumentID != "d1" {
		t.Errorf("DocumentID = %q, want d1", hits[0].DocumentID)
	}
}

func TestSearch_HigherTermFrequencyNeverRanksLower(t *testing.T) {
	ix := newIndex(t)
	// Same length (four tokens), different frequency of "raft".
	_, _ = ix.Index("low", []domain.TextChunk{chunk(0, "raft consensus leader log")})
	_, _ = ix.Index("high", []domain.TextChunk{chunk(0, "raft raft raft log")})
	_, _ = ix.Index("other", []domain.TextChunk{chunk(0, "unrelated words in here")})

	hits := ix.Search("raft", 10, nil)
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2", len(hits))
	}
	if hits[0].DocumentID != "high" {
		t.Errorf("top hit = %q, want high", hits[0].DocumentID)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("higher tf scored lower: %f < %f", hits[0].Score, hits[1].Score)
	}
}

func TestSearch_DistinctQueryTerms(t *testing.T) {
	ix := newIndex(t)
	_, _ = ix.Index("d1", []domain.TextChunk{chunk(0, "vector search")})
	_, _ = ix.Index("d2", []domain.TextChunk{chunk(0, "other text")})

	once := ix.Search("vector", 5, nil)
	twice := ix.Search("vector vector VECTOR", 5, nil)
	if len(once) != 1 || len(twice) != 1 {
		t.Fatalf("unexpected hit counts %d, %d", len(once), len(twice))
	}
	if once[0].Score != twice[0].Score {
		t.Errorf("repeated query terms changed score: %f vs %f", once[0].Score, twice[0].Score)
	}
}

func TestSearch_TieBreaks(t *testing.T) {
	ix := newIndex(t)
	_, _ = ix.Index("b", []domain.TextChunk{chunk(1, "golang"), chunk(0, "golang")})
	_, _ = ix.Index("a", []domain.TextChunk{{Text: "golang"}})
	_, _ = ix.Index("a", []domain.TextChunk{chunk(3, "golang")})

	hits := ix.Search("golang", 10, nil)
	if len(hits) != 4 {
		t.Fatalf("Search() returned %d hits, want 4", len(hits))
	}
	type key struct {
		doc string
		idx int
	}
	want := []key{{"a", 3}, {"a", domain.NoChunkIndex}, {"b", 0}, {"b", 1}}
	for i, h := range hits {
		got := key{h.DocumentID, h.ChunkIndex()}
		if got != want[i] {
			t.Errorf("hit %d = %+v, want %+v", i, got, want[i])
		}
	}
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	ix := newIndex(t)
	chunks := []domain.TextChunk{chunk(0, "first version"), chunk(1, "second part")}

	n, err := ix.Index("doc", chunks)
	if err != nil || n != 2 {
		t.Fatalf("Index() = %d, %v; want 2, nil", n, err)
	}
	if _, err := ix.Index("doc", chunks); err != nil {
		t.Fatal(err)
	}
	if ix.Size() != 2 {
		t.Errorf("Size() = %d after re-index, want 2", ix.Size())
	}

	_, _ = ix.Index("doc", []domain.TextChunk{chunk(0, "replacement text")})
	if hits := ix.Search("first", 5, nil); len(hits) != 0 {
		t.Errorf("replaced chunk still searchable: %+v", hits)
	}
	if hits := ix.Search("replacement", 5, nil); len(hits) != 1 {
		t.Errorf("replacement not searchable")
	}
}

func TestIndex_PositionKeyWithoutMetadata(t *testing.T) {
	ix := newIndex(t)
	n, err := ix.Index("doc", []domain.TextChunk{{Text: "one"}, {Text: "two"}, {Text: "three"}})
	if err != nil || n != 3 {
		t.Fatalf("Index() = %d, %v", n, err)
	}
	if ix.Size() != 3 {
		t.Errorf("Size() = %d, want 3", ix.Size())
	}
}

func TestIndex_BlankDocumentID(t *testing.T) {
	ix := newIndex(t)
	if _, err := ix.Index("  ", []domain.TextChunk{chunk(0, "x")}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Index() error = %v, want ErrInvalidInput", err)
	}
}

func TestDelete(t *testing.T) {
	ix := newIndex(t)
	_, _ = ix.Index("doc", []domain.TextChunk{chunk(0, "alpha"), chunk(1, "beta")})
	_, _ = ix.Index("keep", []domain.TextChunk{chunk(0, "alpha")})

	if got := ix.Delete("doc"); got != 2 {
		t.Errorf("Delete() = %d, want 2", got)
	}
	if got := ix.Delete("doc"); got != 0 {
		t.Errorf("second Delete() = %d, want 0", got)
	}
	if ix.Size() != 1 {
		t.Errorf("Size() = %d, want 1", ix.Size())
	}
	hits := ix.Search("alpha", 5, nil)
	if len(hits) != 1 || hits[0].DocumentID != "keep" {
		t.Errorf("Search() after delete = %+v", hits)
	}
}

func TestSearch_EmptyCases(t *testing.T) {
	ix := newIndex(t)
	if hits := ix.Search("anything", 5, nil); hits != nil {
		t.Errorf("empty index returned %v", hits)
	}

	_, _ = ix.Index("doc", []domain.TextChunk{chunk(0, "some content")})
	tests := []struct {
		name   string
		query  string
		width  int
		filter map[string]string
	}{
		{"blank query", "   ", 5, nil},
		{"zero width", "content", 0, nil},
		{"negative width", "content", -3, nil},
		{"filter matches nothing", "content", 5, map[string]string{"lang": "pt"}},
		{"no term overlap", "missing", 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hits := ix.Search(tt.query, tt.width, tt.filter); len(hits) != 0 {
				t.Errorf("Search() = %+v, want empty", hits)
			}
		})
	}
}

func TestSearch_Filter(t *testing.T) {
	ix := newIndex(t)
	_, _ = ix.Index("en", []domain.TextChunk{{Text: "release notes", Metadata: map[string]string{"lang": "en", "team": "core"}}})
	_, _ = ix.Index("pt", []domain.TextChunk{{Text: "release notes", Metadata: map[string]string{"lang": "pt", "team": "core"}}})

	hits := ix.Search("release", 5, map[string]string{"lang": "pt", "team": "core"})
	if len(hits) != 1 || hits[0].DocumentID != "pt" {
		t.Errorf("filtered Search() = %+v", hits)
	}
}

func TestSearch_DiacriticsAndStopWords(t *testing.T) {
	opts := DefaultOptions()
	opts.RemoveStopWords = true
	ix, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = ix.Index("pt", []domain.TextChunk{chunk(0, "A configuração do índice")})

	if hits := ix.Search("configuracao indice", 5, nil); len(hits) != 1 {
		t.Errorf("folded query should match, got %d hits", len(hits))
	}
	if hits := ix.Search("the of do", 5, nil); len(hits) != 0 {
		t.Errorf("stop-word-only query should not match, got %d hits", len(hits))
	}
}

func TestSearch_WidthTruncates(t *testing.T) {
	ix := newIndex(t)
	for i := 0; i < 5; i++ {
		_, _ = ix.Index("doc"+strconv.Itoa(i), []domain.TextChunk{chunk(0, "shared term")})
	}
	if hits := ix.Search("shared", 3, nil); len(hits) != 3 {
		t.Errorf("Search() returned %d hits, want 3", len(hits))
	}
}

func TestIndex_ConcurrentReadersAndWriters(t *testing.T) {
	ix := newIndex(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := "doc" + strconv.Itoa(i)
			_, _ = ix.Index(id, []domain.TextChunk{chunk(0, "concurrent text"), chunk(1, "more text")})
			ix.Delete(id)
			_, _ = ix.Index(id, []domain.TextChunk{chunk(0, "concurrent text")})
		}(i)
		go func() {
			defer wg.Done()
			for _, h := range ix.Search("concurrent text", 10, nil) {
				if h.Score <= 0 {
					t.Errorf("non-positive score %f", h.Score)
				}
			}
		}()
	}
	wg.Wait()
	if ix.Size() != 8 {
		t.Errorf("Size() = %d, want 8", ix.Size())
	}
}

func TestSearchContext(t *testing.T) {
	ix := newIndex(t)
	_, _ = ix.Index("doc", []domain.TextChunk{chunk(0, "context aware")})

	hits, err := ix.SearchContext(context.Background(), "aware", 5, nil)
	if err != nil || len(hits) != 1 {
		t.Errorf("SearchContext() = %v, %v", hits, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ix.SearchContext(ctx, "aware", 5, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("SearchContext() on cancelled context error = %v", err)
	}
}

func TestReplace_SwapsWholeDocument(t *testing.T) {
	ix := newIndex(t)
	_, _ = ix.Index("doc", []domain.TextChunk{chunk(0, "old first"), chunk(1, "old second"), chunk(2, "old third")})
	_, _ = ix.Index("other", []domain.TextChunk{chunk(0, "unrelated")})

	n, err := ix.Replace("doc", []domain.TextChunk{chunk(0, "new text")})
	if err != nil || n != 1 {
		t.Fatalf("Replace() = %d, %v; want 1, nil", n, err)
	}
	if ix.Size() != 2 {
		t.Errorf("Size() = %d, want 2", ix.Size())
	}
	if hits := ix.Search("old", 5, nil); len(hits) != 0 {
		t.Errorf("stale chunks still searchable: %+v", hits)
	}
	if hits := ix.Search("new", 5, nil); len(hits) != 1 {
		t.Errorf("replacement not searchable")
	}

	if n, err := ix.Replace("doc", nil); err != nil || n != 0 {
		t.Errorf("Replace(nil) = %d, %v", n, err)
	}
	if ix.Size() != 1 {
		t.Errorf("Size() = %d after empty replace, want 1", ix.Size())
	}
	if _, err := ix.Replace(" ", nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("Replace() error = %v, want ErrInvalidInput", err)
	}
}

func TestReplace_ReadersNeverSeeGap(t *testing.T) {
	ix := newIndex(t)
	chunks := []domain.TextChunk{chunk(0, "zebra stripes are unique"), chunk(1, "savanna grass")}
	_, _ = ix.Index("zebra", chunks)
	_, _ = ix.Index("lion", []domain.TextChunk{chunk(0, "lions hunt at night")})

	stop := make(chan struct{})
	var missing, searches int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			searches++
			if len(ix.Search("zebra", 5, nil)) != 1 {
				missing++
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		if _, err := ix.Replace("zebra", chunks); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()

	if missing > 0 {
		t.Errorf("%d of %d searches saw the document missing during replace", missing, searches)
	}
}
