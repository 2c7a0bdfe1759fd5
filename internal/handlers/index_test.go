package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"citerag/internal/indexer"
)

type blockingIndexer struct {
	release chan struct{}
	roots   chan string
	err     error
}

func (b *blockingIndexer) IndexDirectory(ctx context.Context, root string) (*indexer.IngestStats, error) {
	b.roots <- root
	<-b.release
	if b.err != nil {
		return nil, b.err
	}
	return &indexer.IngestStats{DocsProcessed: 1}, nil
}

func TestIndexHandler_RunsInBackground(t *testing.T) {
	idx := &blockingIndexer{release: make(chan struct{}), roots: make(chan string, 1)}
	handler := NewIndexHandler(idx, "/srv/docs")
	done := make(chan error, 1)
	handler.done = func(_ *indexer.IngestStats, err error) { done <- err }

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/index", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if root := <-idx.roots; root != "/srv/docs" {
		t.Errorf("root = %q", root)
	}

	// A second trigger while the first is still running is rejected.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/index", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("concurrent trigger status = %d, want 409", w.Code)
	}

	close(idx.release)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("background run error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("background indexing did not finish")
	}
}

func TestIndexHandler_ReportsErrorsInBackground(t *testing.T) {
	idx := &blockingIndexer{release: make(chan struct{}), roots: make(chan string, 1), err: errors.New("indexing completed with 2 errors")}
	close(idx.release)
	handler := NewIndexHandler(idx, "/srv/docs")
	done := make(chan error, 1)
	handler.done = func(_ *indexer.IngestStats, err error) { done <- err }

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/index", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	<-idx.roots
	if err := <-done; err == nil {
		t.Error("expected background error")
	}
}

func TestIndexHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		root       string
		wantStatus int
	}{
		{"wrong method", http.MethodGet, "/srv/docs", http.StatusMethodNotAllowed},
		{"no root configured", http.MethodPost, "", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewIndexHandler(&blockingIndexer{}, tt.root)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/v1/index", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
