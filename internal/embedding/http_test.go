package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"citerag/internal/apperr"
)

func embeddingServer(t *testing.T, dim int, reversed bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		resp := embeddingsResponse{}
		for i := range req.Input {
			vec := make([]float64, dim)
			vec[0] = float64(len(req.Input[i]))
			resp.Data = append(resp.Data, embeddingData{Index: i, Embedding: vec})
		}
		if reversed {
			for i, j := 0, len(resp.Data)-1; i < j; i, j = i+1, j-1 {
				resp.Data[i], resp.Data[j] = resp.Data[j], resp.Data[i]
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewHTTPEmbedder_Validation(t *testing.T) {
	if _, err := NewHTTPEmbedder(HTTPConfig{Dimension: 8}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("blank base url error = %v", err)
	}
	if _, err := NewHTTPEmbedder(HTTPConfig{BaseURL: "http://x", Dimension: 0}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("zero dimension error = %v", err)
	}
}

func TestHTTPEmbedder_EmbedAll(t *testing.T) {
	tests := []struct {
		name     string
		reversed bool
	}{
		{"ordered response", false},
		{"response ordered by index field", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := embeddingServer(t, 4, tt.reversed)
			defer srv.Close()

			e, err := NewHTTPEmbedder(HTTPConfig{
				BaseURL: srv.URL + "/", APIKey: "test-key", Model: "m", Dimension: 4,
				BatchSize: 2, Workers: 2, RequestsPerSecond: 1000,
			})
			if err != nil {
				t.Fatal(err)
			}

			texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
			got, err := e.EmbedAll(context.Background(), texts)
			if err != nil {
				t.Fatalf("EmbedAll() error = %v", err)
			}
			for i, v := range got {
				if int(v.Values[0]) != len(texts[i]) {
					t.Errorf("vector %d = %v, want first value %d", i, v.Values, len(texts[i]))
				}
			}
		})
	}
}

func TestHTTPEmbedder_Spec(t *testing.T) {
	e, err := NewHTTPEmbedder(HTTPConfig{BaseURL: "http://x", Model: "nomic", Dimension: 768})
	if err != nil {
		t.Fatal(err)
	}
	spec := e.Spec()
	if spec.Provider != HTTPProvider || spec.Model != "nomic" || spec.Dimension != 768 || spec.Normalized {
		t.Errorf("Spec() = %+v", spec)
	}
}

func TestHTTPEmbedder_Errors(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		e, _ := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, APIKey: "test-key", Dimension: 4})
		_, err := e.Embed(context.Background(), "hello")
		if !errors.Is(err, apperr.ErrExternalService) {
			t.Errorf("error = %v, want ErrExternalService", err)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		srv := embeddingServer(t, 3, false)
		defer srv.Close()

		e, _ := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, APIKey: "test-key", Dimension: 4})
		_, err := e.Embed(context.Background(), "hello")
		if !errors.Is(err, apperr.ErrDimensionMismatch) {
			t.Errorf("error = %v, want ErrDimensionMismatch", err)
		}
	})

	t.Run("wrong embedding count", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(embeddingsResponse{})
		}))
		defer srv.Close()

		e, _ := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimension: 4})
		if _, err := e.Embed(context.Background(), "hello"); !errors.Is(err, apperr.ErrExternalService) {
			t.Errorf("error = %v, want ErrExternalService", err)
		}
	})
}

func TestIndexedResponse(t *testing.T) {
	if indexedResponse([]embeddingData{{Index: 0}, {Index: 0}}) {
		t.Error("duplicate indexes accepted")
	}
	if !indexedResponse([]embeddingData{{Index: 1}, {Index: 0}}) {
		t.Error("permutation rejected")
	}
}
