// Package batch splits work into fixed size chunks and runs one operation per chunk.
package batch

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/orgpurge/internal/apperr"
	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// Operation processes one chunk.
type Operation[T, R any] func(ctx context.Context, chunk []T) (R, error)

// Chunk splits items into consecutive chunks of at most size elements.
// Order is preserved and only the final chunk may be shorter.
func Chunk[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, apperr.Validationf("chunk size must be greater than zero, got %d", size)
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}

	return chunks, nil
}

// Dispatch runs op once per chunk of items, all chunks concurrently.
//
// Results are returned in chunk order. If any chunk fails the first error is
// returned and no results are; the other chunks still run to completion, so
// callers must assume any subset of chunks took effect.
func Dispatch[T, R any](ctx context.Context, items []T, size int, op Operation[T, R]) ([]R, error) {
	chunks, err := Chunk(items, size)
	if err != nil {
		return nil, err
	}

	results := make([]R, len(chunks))
	if len(chunks) == 0 {
		return results, nil
	}

	metrics := telemetry.GetMetrics()
	metrics.ChunksDispatchedTotal.Add(ctx, int64(len(chunks)))

	logger := zerolog.Ctx(ctx)
	logger.Debug().Int("items", len(items)).Int("chunks", len(chunks)).Int("chunk_size", size).Msg("Dispatching chunks")

	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			logger.Info().Msgf("Processing chunk %d of %d of %d items", i+1, len(chunks), len(chunk))

			res, err := op(ctx, chunk)
			if err != nil {
				metrics.ChunksFailedTotal.Add(ctx, 1)
				logger.Error().Err(err).Int("chunk", i+1).Msg("Chunk operation failed")
				return err
			}

			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
