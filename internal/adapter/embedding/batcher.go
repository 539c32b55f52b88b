package embedding

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
)

const DefaultBatchSize = 100

type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// embedBatches splits texts into batches of at most size, embeds up to
// concurrency batches at a time and returns vectors aligned with texts.
// Any batch failure fails the whole call and no vectors are returned.
func embedBatches(ctx context.Context, texts []string, size, concurrency int, fn batchFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vectors, err := fn(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			if len(vectors) != end-start {
				return fmt.Errorf("batch %d-%d: got %d vectors", start, end, len(vectors))
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d: %w: %d vs %d", i, domain.ErrDimensionMismatch, len(v), dim)
		}
	}
	return out, nil
}

func wrapServiceError(model string, err error) error {
	var svcErr *domain.EmbeddingServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return &domain.EmbeddingServiceError{Model: model, Err: err}
}
