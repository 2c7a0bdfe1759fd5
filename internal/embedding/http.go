package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"citerag/internal/apperr"
	"citerag/internal/contextutil"
	"citerag/internal/domain"
)

// HTTPProvider is the provider name of HTTPEmbedder collections.
const HTTPProvider = "http"

// HTTPConfig configures an HTTPEmbedder.
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	// BatchSize is the number of texts sent per request.
	BatchSize int
	// Workers bounds the number of concurrent requests of one EmbedAll call.
	Workers int
	// RequestsPerSecond throttles outbound requests; 0 disables throttling.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// HTTPEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type HTTPEmbedder struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates a new embeddings client. All returned vectors are
// validated against cfg.Dimension.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, apperr.Invalid("embedding.base_url", "cannot be blank")
	}
	if cfg.Dimension <= 0 {
		return nil, apperr.Invalid("embedding.dimension", "must be positive, got %d", cfg.Dimension)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	e := &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return e, nil
}

// embeddingsRequest represents the request payload for embeddings API.
type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type embeddingsResponse struct {
	Data []embeddingData `json:"data"`
}

// Spec reports the collection this embedder writes to.
func (e *HTTPEmbedder) Spec() domain.EmbeddingSpec {
	return domain.EmbeddingSpec{
		Provider:  HTTPProvider,
		Model:     e.cfg.Model,
		Dimension: e.cfg.Dimension,
	}
}

// Embed embeds a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) (domain.Vector, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return domain.Vector{}, err
	}
	return vectors[0], nil
}

// EmbedAll embeds texts in batches with bounded concurrency.
func (e *HTTPEmbedder) EmbedAll(ctx context.Context, texts []string) ([]domain.Vector, error) {
	return EmbedInBatches(ctx, texts, e.cfg.BatchSize, e.cfg.Workers, e.embedBatch)
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(texts) == 0 {
		return nil, apperr.Invalid("texts", "empty input array")
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(embeddingsRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		logger.ErrorContext(ctx, "embedding request failed", "model", e.cfg.Model, "error", err)
		return nil, fmt.Errorf("%w: failed to send request: %v", apperr.ErrExternalService, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.ErrorContext(ctx, "embedding request returned bad status", "status", resp.StatusCode, "model", e.cfg.Model)
		return nil, fmt.Errorf("%w: bad status %d: %s", apperr.ErrExternalService, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", apperr.ErrExternalService, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", apperr.ErrExternalService, len(texts), len(parsed.Data))
	}

	byIndex := indexedResponse(parsed.Data)
	out := make([]domain.Vector, len(texts))
	for i, data := range parsed.Data {
		pos := i
		if byIndex {
			pos = data.Index
		}
		if len(data.Embedding) != e.cfg.Dimension {
			return nil, apperr.DimensionMismatch(e.cfg.Dimension, len(data.Embedding))
		}
		values := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			values[j] = float32(v)
		}
		out[pos] = domain.Vector{Values: values}
	}
	return out, nil
}

// indexedResponse reports whether the index fields form a permutation of the
// input positions. Servers that omit them are read positionally.
func indexedResponse(data []embeddingData) bool {
	seen := make([]bool, len(data))
	for _, d := range data {
		if d.Index < 0 || d.Index >= len(data) || seen[d.Index] {
			return false
		}
		seen[d.Index] = true
	}
	return true
}

func errBatchSize(want, got int) error {
	return fmt.Errorf("%w: expected %d embeddings, got %d", apperr.ErrExternalService, want, got)
}
