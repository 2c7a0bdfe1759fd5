package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"

	"citerag/internal/domain"
)

// BatchFunc embeds one batch of texts, returning one vector per text.
type BatchFunc func(ctx context.Context, texts []string) ([]domain.Vector, error)

// EmbedInBatches splits texts into batches of batchSize and runs fn on up to
// workers batches at once. Results are written by position so input order is
// kept; the first failure cancels the remaining batches and is returned.
func EmbedInBatches(ctx context.Context, texts []string, batchSize, workers int, fn BatchFunc) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	if workers <= 0 {
		workers = 1
	}

	out := make([]domain.Vector, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vectors, err := fn(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vectors) != end-start {
				return errBatchSize(end-start, len(vectors))
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
