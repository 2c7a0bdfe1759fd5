package vectorstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"citerag/internal/apperr"
	"citerag/internal/domain"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var testCollection = domain.CollectionSpec{Provider: "hash", Model: "test", Dimension: 3}

func entry(idx int, text string, values ...float32) Entry {
	return Entry{
		Chunk: domain.TextChunk{
			Text:     text,
			Metadata: map[string]string{domain.MetaChunkIndex: strconv.Itoa(idx)},
		},
		Vector: domain.Vector{Values: values},
	}
}

func vec(values ...float32) domain.Vector {
	return domain.Vector{Values: values}
}

func TestMemoryStore_SearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Upsert(ctx, testCollection, "x", []Entry{entry(0, "x axis", 1, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(ctx, testCollection, "xy", []Entry{entry(0, "diagonal", 1, 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(ctx, testCollection, "neg", []Entry{entry(0, "opposite", -1, 0, 0)}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, testCollection, vec(2, 0, 0), 10, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Search() returned %d hits, want 3", len(hits))
	}
	want := []string{"x", "xy", "neg"}
	for i, h := range hits {
		if h.DocumentID != want[i] {
			t.Errorf("hit %d = %q, want %q", i, h.DocumentID, want[i])
		}
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("score %f outside [0,1]", h.Score)
		}
	}
	if hits[0].Score != 1 {
		t.Errorf("parallel vector score = %f, want 1", hits[0].Score)
	}
	if hits[2].Score != 0 {
		t.Errorf("opposite vector score = %f, want 0 after clamping", hits[2].Score)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Vector
		want float64
	}{
		{"zero norm", vec(0, 0, 0), vec(1, 0, 0), 0},
		{"orthogonal", vec(1, 0, 0), vec(0, 1, 0), 0},
		{"same direction", vec(3, 4, 0), vec(6, 8, 0), 1},
		{"normalized dot product", domain.Vector{Values: []float32{0.6, 0.8}, Normalized: true}, domain.Vector{Values: []float32{0.6, 0.8}, Normalized: true}, 1},
		{"normalized flag trusts dot", domain.Vector{Values: []float32{2, 0}, Normalized: true}, domain.Vector{Values: []float32{2, 0}, Normalized: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("Cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestMemoryStore_EmptyAndUnknownCollection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	hits, err := s.Search(ctx, testCollection, vec(1, 0, 0), 5, nil)
	if err != nil || len(hits) != 0 {
		t.Errorf("Search() on empty store = %v, %v", hits, err)
	}

	_, _ = s.Upsert(ctx, testCollection, "doc", []Entry{entry(0, "a", 1, 0, 0)})
	other := domain.CollectionSpec{Provider: "http", Model: "other", Dimension: 3}
	hits, err = s.Search(ctx, other, vec(1, 0, 0), 5, nil)
	if err != nil || len(hits) != 0 {
		t.Errorf("Search() on unknown collection = %v, %v", hits, err)
	}
}

func TestMemoryStore_TopKNonPositiveBehavesAsOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.Upsert(ctx, testCollection, "a", []Entry{entry(0, "a", 1, 0, 0), entry(1, "b", 0, 1, 0)})

	for _, k := range []int{0, -4} {
		hits, err := s.Search(ctx, testCollection, vec(1, 0, 0), k, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 {
			t.Errorf("topK=%d returned %d hits, want 1", k, len(hits))
		}
	}
}

func TestMemoryStore_TieBreaks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.Upsert(ctx, testCollection, "b", []Entry{entry(1, "", 1, 0, 0), entry(0, "", 1, 0, 0)})
	_, _ = s.Upsert(ctx, testCollection, "a", []Entry{entry(2, "", 1, 0, 0)})

	hits, err := s.Search(ctx, testCollection, vec(1, 0, 0), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, 0, len(hits))
	for _, h := range hits {
		got = append(got, h.DocumentID+"#"+strconv.Itoa(h.ChunkIndex()))
	}
	want := []string{"a#2", "b#0", "b#1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMemoryStore_UpsertReplacesWholeDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.Upsert(ctx, testCollection, "doc", []Entry{entry(0, "a", 1, 0, 0), entry(1, "b", 0, 1, 0), entry(2, "c", 0, 0, 1)})
	if err != nil || n != 3 {
		t.Fatalf("Upsert() = %d, %v", n, err)
	}
	if _, err := s.Upsert(ctx, testCollection, "doc", []Entry{entry(0, "a2", 1, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	count, _ := s.Count(ctx, testCollection)
	if count != 1 {
		t.Errorf("Count() = %d after replace, want 1", count)
	}
	hits, _ := s.Search(ctx, testCollection, vec(0, 1, 0), 5, nil)
	for _, h := range hits {
		if h.Chunk.Text == "b" {
			t.Errorf("chunk omitted from new batch is still stored")
		}
	}
}

func TestMemoryStore_UpsertKeysByChunkIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	n, err := s.Upsert(ctx, testCollection, "doc", []Entry{
		entry(0, "first", 1, 0, 0),
		entry(1, "other", 0, 0, 1),
		entry(0, "second", 1, 0, 0),
	})
	if err != nil || n != 2 {
		t.Fatalf("Upsert() = %d, %v; want 2, nil", n, err)
	}
	if count, _ := s.Count(ctx, testCollection); count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
	hits, _ := s.Search(ctx, testCollection, vec(1, 0, 0), 5, nil)
	var zero []string
	for _, h := range hits {
		if h.ChunkIndex() == 0 {
			zero = append(zero, h.Chunk.Text)
		}
	}
	if len(zero) != 1 || zero[0] != "second" {
		t.Errorf("chunk 0 hits = %v, want [second]", zero)
	}

	// Without chunk_index metadata the position is the key.
	plain := []Entry{{Chunk: domain.TextChunk{Text: "p0"}, Vector: vec(1, 0, 0)}, {Chunk: domain.TextChunk{Text: "p1"}, Vector: vec(0, 1, 0)}}
	if n, err := s.Upsert(ctx, testCollection, "plain", plain); err != nil || n != 2 {
		t.Errorf("Upsert() without metadata = %d, %v; want 2, nil", n, err)
	}
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, _ = s.Upsert(ctx, testCollection, "doc", []Entry{entry(0, "keep", 1, 0, 0)})

	_, err := s.Upsert(ctx, testCollection, "doc", []Entry{entry(0, "ok", 1, 0, 0), entry(1, "bad", 1, 0)})
	if !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Fatalf("Upsert() error = %v, want ErrDimensionMismatch", err)
	}
	hits, _ := s.Search(ctx, testCollection, vec(1, 0, 0), 5, nil)
	if len(hits) != 1 || hits[0].Chunk.Text != "keep" {
		t.Errorf("failed batch modified the store: %+v", hits)
	}

	if _, err := s.Search(ctx, testCollection, vec(1, 0), 5, nil); !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Errorf("Search() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestMemoryStore_DeleteByDocumentID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	wide := domain.CollectionSpec{Provider: "hash", Model: "test", Dimension: 2}

	_, _ = s.Upsert(ctx, testCollection, "doc", []Entry{entry(0, "a", 1, 0, 0), entry(1, "b", 0, 1, 0)})
	_, _ = s.Upsert(ctx, wide, "doc", []Entry{entry(0, "a", 1, 0)})
	_, _ = s.Upsert(ctx, testCollection, "other", []Entry{entry(0, "c", 1, 0, 0)})

	removed, err := s.DeleteByDocumentID(ctx, "doc")
	if err != nil || removed != 3 {
		t.Errorf("DeleteByDocumentID() = %d, %v; want 3, nil", removed, err)
	}
	removed, err = s.DeleteByDocumentID(ctx, "doc")
	if err != nil || removed != 0 {
		t.Errorf("second DeleteByDocumentID() = %d, %v; want 0, nil", removed, err)
	}
	if count, _ := s.Count(ctx, testCollection); count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
	if count, _ := s.Count(ctx, wide); count != 0 {
		t.Errorf("Count(wide) = %d, want 0", count)
	}
}

func TestMemoryStore_Filter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	e := entry(0, "tagged", 1, 0, 0)
	e.Chunk.Metadata["lang"] = "pt"
	_, _ = s.Upsert(ctx, testCollection, "pt", []Entry{e})
	_, _ = s.Upsert(ctx, testCollection, "en", []Entry{entry(0, "plain", 1, 0, 0)})

	hits, err := s.Search(ctx, testCollection, vec(1, 0, 0), 5, map[string]string{"lang": "pt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "pt" {
		t.Errorf("filtered Search() = %+v", hits)
	}
}

func TestMemoryStore_Validation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.Upsert(ctx, testCollection, " ", nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank document id error = %v", err)
	}
	if _, err := s.Upsert(ctx, domain.CollectionSpec{Provider: "p"}, "doc", nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("zero dimension error = %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := "doc" + strconv.Itoa(i)
			_, _ = s.Upsert(ctx, testCollection, id, []Entry{entry(0, "a", 1, 0, 0), entry(1, "b", 0, 1, 0)})
			_, _ = s.DeleteByDocumentID(ctx, id)
			_, _ = s.Upsert(ctx, testCollection, id, []Entry{entry(0, "a", 1, 1, 0)})
		}(i)
		go func() {
			defer wg.Done()
			hits, err := s.Search(ctx, testCollection, vec(1, 0, 0), 20, nil)
			if err != nil {
				t.Errorf("Search() error = %v", err)
			}
			for _, h := range hits {
				if h.Score < 0 || h.Score > 1 {
					t.Errorf("score %f outside [0,1]", h.Score)
				}
			}
		}()
	}
	wg.Wait()
	if count, _ := s.Count(ctx, testCollection); count != 8 {
		t.Errorf("Count() = %d, want 8", count)
	}
}
