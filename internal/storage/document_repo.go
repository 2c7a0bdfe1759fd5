package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks citerag/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"citerag/internal/apperr"
)

// ErrNotFound is returned when a record is not found. It matches apperr.ErrNotFound.
var ErrNotFound = fmt.Errorf("record %w", apperr.ErrNotFound)

// DocumentStore defines the interface for document catalog operations.
type DocumentStore interface {
	// Get returns a document by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)
	// List returns every document ordered by ID.
	List(ctx context.Context) ([]*Document, error)
	// Upsert inserts a document or replaces the existing one with the same ID.
	Upsert(ctx context.Context, doc *Document) error
	// Delete removes a document and its chunks. It reports whether a row existed.
	Delete(ctx context.Context, id string) (bool, error)
	// DocumentTitle returns the stored title of a document.
	DocumentTitle(ctx context.Context, id string) (string, error)
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

var _ DocumentStore = (*DocumentRepo)(nil)

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = "id, title, source, hash, chunk_count, metadata, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var metadata, updatedAt string
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Source, &doc.Hash, &doc.ChunkCount, &metadata, &updatedAt); err != nil {
		return nil, err
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", doc.ID, err)
		}
	}
	t, err := parseTimestamp(updatedAt)
	if err != nil {
		return nil, err
	}
	doc.UpdatedAt = t
	return &doc, nil
}

// parseTimestamp accepts both layouts the sqlite3 driver produces.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse updated_at timestamp %q", s)
}

// Get returns a document by ID. Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*Document, error) {
	doc, err := scanDocument(r.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

// List returns every document ordered by ID.
// Returns an empty slice if the catalog is empty (not an error).
func (r *DocumentRepo) List(ctx context.Context) ([]*Document, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := []*Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// Upsert inserts a document or updates title, source, hash, chunk count and
// metadata of the existing one.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		return apperr.Invalid("id", "cannot be blank")
	}
	metadata := []byte("{}")
	if len(doc.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(doc.Metadata); err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, source, hash, chunk_count, metadata, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (id) DO UPDATE SET
		 title = excluded.title, source = excluded.source, hash = excluded.hash,
		 chunk_count = excluded.chunk_count, metadata = excluded.metadata,
		 updated_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.Title, doc.Source, doc.Hash, doc.ChunkCount, string(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Delete removes a document. Its chunks go with it through the cascade.
func (r *DocumentRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// DocumentTitle returns the stored title of a document.
func (r *DocumentRepo) DocumentTitle(ctx context.Context, id string) (string, error) {
	var title string
	err := r.db.QueryRowContext(ctx, "SELECT title FROM documents WHERE id = ?", id).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query document title: %w", err)
	}
	return title, nil
}
