package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"citerag/internal/apperr"
	"citerag/internal/contextutil"
	"citerag/internal/domain"
)

const (
	collectionPrefix = "citerag_"

	payloadDocumentID = "document_id"
	payloadText       = "text"
	payloadMetadata   = "metadata"
)

// pointNamespace seeds the deterministic point IDs.
var pointNamespace = uuid.MustParse("6f1c1c3e-5b0a-4d55-9a43-2f4c8a8e7d21")

// QdrantStore implements VectorStore using Qdrant. Each CollectionSpec maps
// to its own Qdrant collection.
type QdrantStore struct {
	client *qdrant.Client
}

var _ VectorStore = (*QdrantStore)(nil)

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	host, port, err := grpcAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func grpcAddress(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is HTTP port + 1
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// collectionName turns a CollectionSpec into a Qdrant-safe collection name.
func collectionName(spec domain.CollectionSpec) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				return r
			case r >= 'A' && r <= 'Z':
				return r + ('a' - 'A')
			default:
				return '_'
			}
		}, s)
	}
	return fmt.Sprintf("%s%s_%s_%d", collectionPrefix, clean(spec.Provider), clean(spec.Model), spec.Dimension)
}

// pointID derives a stable UUID from the (documentID, chunkIndex) key so
// re-indexing overwrites instead of duplicating.
func pointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(documentID+"#"+strconv.Itoa(chunkIndex))).String()
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocumentID, documentID)},
	}
}

func metadataFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conditions = append(conditions, qdrant.NewMatch(payloadMetadata+"."+k, v))
	}
	return &qdrant.Filter{Must: conditions}
}

func chunkPayload(documentID string, chunk domain.TextChunk) map[string]*qdrant.Value {
	meta := make(map[string]any, len(chunk.Metadata))
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	return qdrant.NewValueMap(map[string]any{
		payloadDocumentID: documentID,
		payloadText:       chunk.Text,
		payloadMetadata:   meta,
	})
}

func matchFromPayload(payload map[string]*qdrant.Value, score float32) domain.SearchMatch {
	m := domain.SearchMatch{Score: clamp01(float64(score))}
	if v, ok := payload[payloadDocumentID]; ok {
		m.DocumentID = v.GetStringValue()
	}
	if v, ok := payload[payloadText]; ok {
		m.Chunk.Text = v.GetStringValue()
	}
	if v, ok := payload[payloadMetadata]; ok && v.GetStructValue() != nil {
		fields := v.GetStructValue().GetFields()
		m.Chunk.Metadata = make(map[string]string, len(fields))
		for k, f := range fields {
			m.Chunk.Metadata[k] = f.GetStringValue()
		}
	}
	return m
}

// Upsert replaces the document's points in the collection, creating the
// collection on first use.
func (s *QdrantStore) Upsert(ctx context.Context, collection domain.CollectionSpec, documentID string, entries []Entry) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(documentID) == "" {
		return 0, apperr.Invalid("document_id", "cannot be blank")
	}
	if collection.Dimension <= 0 {
		return 0, apperr.Invalid("collection.dimension", "must be positive, got %d", collection.Dimension)
	}
	for _, e := range entries {
		if e.Vector.Dim() != collection.Dimension {
			return 0, apperr.DimensionMismatch(collection.Dimension, e.Vector.Dim())
		}
	}

	name := collectionName(collection)
	if err := s.ensureCollection(ctx, name, collection.Dimension); err != nil {
		return 0, err
	}

	wait := true
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
	}); err != nil {
		logger.ErrorContext(ctx, "failed to clear document points", "collection", name, "document_id", documentID, "error", err)
		return 0, fmt.Errorf("failed to clear document points: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for pos, e := range entries {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(documentID, e.Chunk.IndexOr(pos))),
			Vectors: qdrant.NewVectors(e.Vector.Values...),
			Payload: chunkPayload(documentID, e.Chunk),
		})
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", name, "count", len(points), "error", err)
		return 0, fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "collection", name, "document_id", documentID, "count", len(points))
	return len(points), nil
}

// Search queries the collection. Qdrant cosine scores are clamped to [0,1]
// and re-sorted so ties follow the canonical order.
func (s *QdrantStore) Search(ctx context.Context, collection domain.CollectionSpec, query domain.Vector, topK int, filter map[string]string) ([]domain.SearchMatch, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if topK <= 0 {
		topK = 1
	}
	name := collectionName(collection)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, nil
	}
	if query.Dim() != collection.Dimension {
		return nil, apperr.DimensionMismatch(collection.Dimension, query.Dim())
	}

	limit := uint64(topK)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(query.Values...),
		Limit:          &limit,
		Filter:         metadataFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", name, "k", topK, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	matches := make([]domain.SearchMatch, 0, len(scored))
	for _, p := range scored {
		matches = append(matches, matchFromPayload(p.GetPayload(), p.GetScore()))
	}
	domain.SortMatches(matches)

	logger.DebugContext(ctx, "search completed", "collection", name, "k", topK, "results", len(matches))
	return matches, nil
}

// DeleteByDocumentID removes the document from every citerag collection.
func (s *QdrantStore) DeleteByDocumentID(ctx context.Context, documentID string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list collections: %w", err)
	}

	exact := true
	wait := true
	var removed int
	for _, name := range names {
		if !strings.HasPrefix(name, collectionPrefix) {
			continue
		}
		n, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: name,
			Filter:         documentFilter(documentID),
			Exact:          &exact,
		})
		if err != nil {
			return removed, fmt.Errorf("failed to count points: %w", err)
		}
		if n == 0 {
			continue
		}
		if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: name,
			Wait:           &wait,
			Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
		}); err != nil {
			logger.ErrorContext(ctx, "failed to delete points", "collection", name, "document_id", documentID, "error", err)
			return removed, fmt.Errorf("failed to delete points: %w", err)
		}
		removed += int(n)
	}

	if removed > 0 {
		logger.InfoContext(ctx, "deleted points", "document_id", documentID, "count", removed)
	}
	return removed, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection domain.CollectionSpec) (int, error) {
	name := collectionName(collection)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return 0, nil
	}
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// ensureCollection creates the collection when missing, or validates its
// vector size when it exists.
func (s *QdrantStore) ensureCollection(ctx context.Context, name string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", name, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	var actual uint64
	if cfg := info.GetConfig(); cfg != nil && cfg.GetParams() != nil {
		if params := cfg.GetParams().GetVectorsConfig().GetParams(); params != nil {
			actual = params.GetSize()
		}
	}
	if actual == 0 {
		return fmt.Errorf("could not determine vector size of collection %s", name)
	}
	if int(actual) != vectorSize {
		return apperr.DimensionMismatch(vectorSize, int(actual))
	}
	return nil
}
